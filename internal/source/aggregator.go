package source

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/ports"
)

// Aggregator fans a fetch out to every adapter and merges the results.
// A failing adapter costs its own items only; the rest of the batch
// still goes through.
type Aggregator struct {
	adapters     []Adapter
	maxPerSource int
	logger       *slog.Logger
}

var _ ports.CandidateSource = (*Aggregator)(nil)

// NewAggregator wires the configured adapters.
func NewAggregator(adapters []Adapter, maxPerSource int, logger *slog.Logger) *Aggregator {
	if maxPerSource <= 0 {
		maxPerSource = 10
	}
	return &Aggregator{adapters: adapters, maxPerSource: maxPerSource, logger: logger}
}

// FetchAll queries every adapter concurrently and returns the combined
// batch sorted newest first. Batches are concatenated in adapter order
// before the stable sort, so timestamp ties resolve the same way on
// every run.
func (a *Aggregator) FetchAll(ctx context.Context) []domain.CandidateItem {
	batches := make([][]domain.CandidateItem, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter Adapter) {
			defer wg.Done()

			items, err := adapter.Fetch(ctx, a.maxPerSource)
			if err != nil {
				a.warn("source fetch failed",
					"source", adapter.Name(),
					"kind", string(adapter.Kind()),
					"error", err)
				return
			}
			if len(items) > a.maxPerSource {
				items = items[:a.maxPerSource]
			}
			batches[i] = items
		}(i, adapter)
	}
	wg.Wait()

	var combined []domain.CandidateItem
	for _, batch := range batches {
		combined = append(combined, batch...)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].PublishedAt.After(combined[j].PublishedAt)
	})

	a.debug("sources combined", "adapters", len(a.adapters), "items", len(combined))
	return combined
}

func (a *Aggregator) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

func (a *Aggregator) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
