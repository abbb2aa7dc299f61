package domain

import "time"

// Stage enumerates workflow milestones.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageDeduping   Stage = "deduping"
	StageSelecting  Stage = "selecting"
	StageRewriting  Stage = "rewriting"
	StagePublishing Stage = "publishing"
	StageRecording  Stage = "recording"
	StageDone       Stage = "done"
)

// TickStatus is the overall outcome of one workflow run.
type TickStatus string

const (
	// TickIdle means the sources produced nothing at all.
	TickIdle TickStatus = "idle"
	// TickNoCandidates means everything fetched was already published.
	TickNoCandidates TickStatus = "no_candidates"
	TickPublished    TickStatus = "published"
	TickFailed       TickStatus = "failed"
)

// TickResult is the value every workflow run comes back with. Failures
// ride along in Err instead of bubbling up, so one bad tick never takes
// the scheduling process down.
type TickResult struct {
	RunID       string
	Status      TickStatus
	Stage       Stage // last stage reached
	Candidates  int   // items fetched
	Fresh       int   // items surviving dedup
	Title       string
	Fingerprint Fingerprint
	RecordID    int64
	MessageID   int64
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall time the tick took.
func (r TickResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunnerStatus is a point-in-time snapshot of the daemon scheduler.
type RunnerStatus struct {
	Running      bool
	Busy         bool
	Interval     time.Duration
	StartedAt    time.Time
	LastTick     *TickResult
	TicksStarted int
	TicksSkipped int
}
