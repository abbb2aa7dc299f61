package source

import (
	"context"

	"ChannelRelay/internal/domain"
)

// Adapter pulls recent items from one configured upstream. The two
// implementations live under internal/infrastructure: feed readers and
// channel preview scrapers.
type Adapter interface {
	Name() string
	Kind() domain.SourceKind
	Fetch(ctx context.Context, limit int) ([]domain.CandidateItem, error)
}
