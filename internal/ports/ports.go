package ports

import (
	"context"
	"time"

	"ChannelRelay/internal/domain"
)

// CandidateSource aggregates fresh items across every configured upstream.
type CandidateSource interface {
	FetchAll(ctx context.Context) []domain.CandidateItem
}

// DedupStore is the persistent publication ledger.
type DedupStore interface {
	Exists(ctx context.Context, fp domain.Fingerprint) (bool, error)
	Record(ctx context.Context, rec domain.PublishedRecord) (int64, error)
	ByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.PublishedRecord, error)
	Recent(ctx context.Context, limit int) ([]domain.PublishedRecord, error)
	UpdateReactions(ctx context.Context, messageID int64, count int) error
	Stats(ctx context.Context) (domain.StoreStats, error)
	Purge(ctx context.Context, olderThanDays int) (int64, error)
	Close() error
}

// Rewriter turns source text into channel-ready text.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Publisher delivers the final text (optionally with an image) to the
// broadcast channel and returns the platform message id.
type Publisher interface {
	Publish(ctx context.Context, text, imagePath string) (int64, error)
}

// Enricher may replace a thin candidate body with richer text before
// rewriting. The second return value reports whether anything changed.
type Enricher interface {
	Enrich(ctx context.Context, item domain.CandidateItem) (string, bool)
}

// Scheduler controls when workflow ticks execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
