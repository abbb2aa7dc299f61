package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ChannelRelay/internal/ports"
)

// Maintenance purges ledger rows past the retention window on a cron
// schedule, keeping the fingerprint table from growing forever.
type Maintenance struct {
	cron          *cron.Cron
	spec          string
	retentionDays int
	store         ports.DedupStore
	logger        *slog.Logger
}

// NewMaintenance wires the purge job; Start arms it.
func NewMaintenance(spec string, retentionDays int, store ports.DedupStore, logger *slog.Logger) *Maintenance {
	return &Maintenance{
		cron:          cron.New(),
		spec:          spec,
		retentionDays: retentionDays,
		store:         store,
		logger:        logger,
	}
}

// Start registers the purge on the configured schedule. A retention of
// zero or less disables maintenance entirely.
func (m *Maintenance) Start() error {
	if m.retentionDays <= 0 {
		m.info("ledger retention disabled")
		return nil
	}
	if _, err := m.cron.AddFunc(m.spec, m.purge); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", m.spec, err)
	}
	m.cron.Start()
	m.info("ledger maintenance armed", "spec", m.spec, "retention_days", m.retentionDays)
	return nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := m.store.Purge(ctx, m.retentionDays)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("ledger purge failed", "error", err)
		}
		return
	}
	m.info("ledger purged", "removed", removed, "retention_days", m.retentionDays)
}

func (m *Maintenance) info(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}
