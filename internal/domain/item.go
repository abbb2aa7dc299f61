package domain

import "time"

// SourceKind tells which kind of upstream produced a candidate.
type SourceKind string

const (
	SourceFeed    SourceKind = "feed"
	SourceChannel SourceKind = "channel"
)

// MediaHint marks media attached to the original message.
type MediaHint string

const (
	MediaNone  MediaHint = ""
	MediaPhoto MediaHint = "photo"
	MediaVideo MediaHint = "video"
)

// CandidateItem is one piece of harvested content, normalized across
// source kinds so the rest of the pipeline never cares where it came from.
type CandidateItem struct {
	Title       string
	Body        string
	Locator     string // canonical URL of the origin, empty when unknown
	Kind        SourceKind
	SourceName  string
	PublishedAt time.Time
	MediaHint   MediaHint
}

// PublishedRecord is one row of the publication ledger.
type PublishedRecord struct {
	ID          int64
	Fingerprint Fingerprint
	Locator     string
	Kind        SourceKind
	Title       string
	PublishedAt time.Time
	MessageID   int64
	Reactions   int
}

// StoreStats aggregates ledger counters for the stats surfaces.
type StoreStats struct {
	Total    int
	ByKind   map[SourceKind]int
	LastWeek int
}
