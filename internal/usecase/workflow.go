package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/ports"
)

// WorkflowDeps wires all driven adapters into the publishing workflow.
type WorkflowDeps struct {
	Source    ports.CandidateSource
	Store     ports.DedupStore
	Rewriter  ports.Rewriter
	Publisher ports.Publisher
	Enricher  ports.Enricher
	Logger    *slog.Logger
}

// Workflow implements one harvest-rewrite-publish tick.
type Workflow struct {
	source    ports.CandidateSource
	store     ports.DedupStore
	rewriter  ports.Rewriter
	publisher ports.Publisher
	enricher  ports.Enricher
	logger    *slog.Logger
}

// NewWorkflow constructs the orchestration component.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	return &Workflow{
		source:    deps.Source,
		store:     deps.Store,
		rewriter:  deps.Rewriter,
		publisher: deps.Publisher,
		enricher:  deps.Enricher,
		logger:    deps.Logger,
	}
}

// Run executes one tick and reports what happened. Failures come back
// inside the result rather than as an error, so callers that loop never
// have to decide whether an error is fatal; the ledger is only written
// after a successful publish, which keeps an unpublished item eligible
// for the next tick.
func (w *Workflow) Run(ctx context.Context) (result domain.TickResult) {
	result = domain.TickResult{
		RunID:     uuid.NewString(),
		Status:    domain.TickFailed,
		Stage:     domain.StageFetching,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			result.Status = domain.TickFailed
			result.Err = fmt.Errorf("workflow panic at %s: %v", result.Stage, r)
			w.error("workflow panicked", "run_id", result.RunID, "stage", result.Stage, "panic", r)
		}
		result.FinishedAt = time.Now().UTC()
	}()

	if w.source == nil || w.store == nil || w.rewriter == nil || w.publisher == nil {
		result.Err = fmt.Errorf("workflow misconfigured")
		return result
	}

	candidates := w.source.FetchAll(ctx)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		result.Status = domain.TickIdle
		result.Stage = domain.StageDone
		w.info("tick idle, sources returned nothing", "run_id", result.RunID)
		return result
	}

	result.Stage = domain.StageDeduping
	type freshItem struct {
		item domain.CandidateItem
		fp   domain.Fingerprint
	}
	var fresh []freshItem
	for _, item := range candidates {
		fp := domain.FingerprintOf(item.Body, item.Locator)
		seen, err := w.store.Exists(ctx, fp)
		if err != nil {
			result.Err = fmt.Errorf("ledger lookup: %w", err)
			w.error("tick aborted, ledger unavailable", "run_id", result.RunID, "error", err)
			return result
		}
		if seen {
			continue
		}
		fresh = append(fresh, freshItem{item: item, fp: fp})
	}
	result.Fresh = len(fresh)
	if len(fresh) == 0 {
		result.Status = domain.TickNoCandidates
		result.Stage = domain.StageDone
		w.info("tick done, every candidate already published",
			"run_id", result.RunID, "candidates", result.Candidates)
		return result
	}

	// The batch arrives newest first, so the head is the freshest story.
	result.Stage = domain.StageSelecting
	pick := fresh[0]
	result.Title = pick.item.Title
	result.Fingerprint = pick.fp

	// Enrichment happens after fingerprinting so a flaky article page
	// cannot change what dedup sees from run to run.
	body := pick.item.Body
	if w.enricher != nil {
		if text, ok := w.enricher.Enrich(ctx, pick.item); ok {
			body = text
		}
	}

	result.Stage = domain.StageRewriting
	sourceText := composeSource(pick.item.Title, body)
	text, err := w.rewriter.Rewrite(ctx, sourceText)
	if err != nil {
		w.warn("rewrite failed, publishing original text", "run_id", result.RunID, "error", err)
		text = sourceText
	}

	result.Stage = domain.StagePublishing
	messageID, err := w.publisher.Publish(ctx, text, "")
	if err != nil {
		result.Err = fmt.Errorf("publish: %w", err)
		w.error("publish failed, item stays eligible", "run_id", result.RunID, "title", pick.item.Title, "error", err)
		return result
	}
	result.MessageID = messageID

	result.Stage = domain.StageRecording
	id, err := w.store.Record(ctx, domain.PublishedRecord{
		Fingerprint: pick.fp,
		Locator:     pick.item.Locator,
		Kind:        pick.item.Kind,
		Title:       pick.item.Title,
		PublishedAt: time.Now().UTC(),
		MessageID:   messageID,
	})
	if err != nil {
		result.Err = fmt.Errorf("record after publish: %w", err)
		w.error("message published but not recorded, a duplicate is possible next tick",
			"run_id", result.RunID, "message_id", messageID, "fingerprint", pick.fp, "error", err)
		return result
	}
	result.RecordID = id

	result.Stage = domain.StageDone
	result.Status = domain.TickPublished
	w.info("post published",
		"run_id", result.RunID,
		"title", pick.item.Title,
		"source", pick.item.SourceName,
		"message_id", messageID,
		"took", time.Since(result.StartedAt).Round(time.Millisecond))
	return result
}

// composeSource is the text handed to the rewriter: title and body, or
// whichever of the two the item actually has.
func composeSource(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

func (w *Workflow) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Workflow) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

func (w *Workflow) error(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Error(msg, args...)
	}
}
