package storage

import (
	"context"
	"testing"
	"time"

	"ChannelRelay/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testRecord(fp domain.Fingerprint, kind domain.SourceKind, publishedAt time.Time) domain.PublishedRecord {
	return domain.PublishedRecord{
		Fingerprint: fp,
		Locator:     "https://example.org/post",
		Kind:        kind,
		Title:       "a post",
		PublishedAt: publishedAt,
		MessageID:   100,
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	fp := domain.FingerprintOf("body text", "https://example.org/post")

	first, err := st.Record(ctx, testRecord(fp, domain.SourceFeed, time.Now()))
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	second, err := st.Record(ctx, testRecord(fp, domain.SourceFeed, time.Now()))
	if err != nil {
		t.Fatalf("second record: %v", err)
	}

	if first != second {
		t.Fatalf("duplicate record must return the original id: %d vs %d", first, second)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected exactly one row, got %d", stats.Total)
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	fp := domain.FingerprintOf("fresh", "")

	seen, err := st.Exists(ctx, fp)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if seen {
		t.Fatalf("empty store must not contain %s", fp)
	}

	if _, err := st.Record(ctx, testRecord(fp, domain.SourceChannel, time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}

	seen, err = st.Exists(ctx, fp)
	if err != nil {
		t.Fatalf("exists after record: %v", err)
	}
	if !seen {
		t.Fatalf("recorded fingerprint must be found")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, age := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		rec := testRecord(domain.FingerprintOf("body", string(rune('a'+i))), domain.SourceFeed, now.Add(-age))
		rec.Title = age.String()
		if _, err := st.Record(ctx, rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	records, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "1h0m0s" || records[1].Title != "2h0m0s" {
		t.Fatalf("wrong order: %s, %s", records[0].Title, records[1].Title)
	}
}

func TestStatsByKindAndWindow(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	fixtures := []struct {
		kind domain.SourceKind
		at   time.Time
	}{
		{domain.SourceFeed, now},
		{domain.SourceFeed, now.AddDate(0, 0, -10)},
		{domain.SourceChannel, now.Add(-time.Hour)},
	}
	for i, f := range fixtures {
		rec := testRecord(domain.FingerprintOf("stats", string(rune('a'+i))), f.kind, f.at)
		if _, err := st.Record(ctx, rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.ByKind[domain.SourceFeed] != 2 || stats.ByKind[domain.SourceChannel] != 1 {
		t.Fatalf("unexpected kind split: %v", stats.ByKind)
	}
	if stats.LastWeek != 2 {
		t.Fatalf("expected 2 within the week, got %d", stats.LastWeek)
	}
}

func TestPurgeFreesFingerprints(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	oldFp := domain.FingerprintOf("old", "")
	newFp := domain.FingerprintOf("new", "")

	if _, err := st.Record(ctx, testRecord(oldFp, domain.SourceFeed, time.Now().AddDate(0, 0, -120))); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if _, err := st.Record(ctx, testRecord(newFp, domain.SourceFeed, time.Now())); err != nil {
		t.Fatalf("record new: %v", err)
	}

	removed, err := st.Purge(ctx, 90)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged row, got %d", removed)
	}

	seen, err := st.Exists(ctx, oldFp)
	if err != nil {
		t.Fatalf("exists old: %v", err)
	}
	if seen {
		t.Fatalf("purged fingerprint must be publishable again")
	}
	seen, err = st.Exists(ctx, newFp)
	if err != nil {
		t.Fatalf("exists new: %v", err)
	}
	if !seen {
		t.Fatalf("recent fingerprint must survive the purge")
	}
}

func TestUpdateReactionsAndLookup(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()
	fp := domain.FingerprintOf("engagement", "https://example.org/42")

	rec := testRecord(fp, domain.SourceChannel, time.Now())
	rec.MessageID = 4242
	if _, err := st.Record(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := st.UpdateReactions(ctx, 4242, 17); err != nil {
		t.Fatalf("update reactions: %v", err)
	}

	got, err := st.ByFingerprint(ctx, fp)
	if err != nil {
		t.Fatalf("by fingerprint: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a record")
	}
	if got.Reactions != 17 {
		t.Fatalf("expected 17 reactions, got %d", got.Reactions)
	}
	if got.MessageID != 4242 {
		t.Fatalf("expected message id 4242, got %d", got.MessageID)
	}

	missing, err := st.ByFingerprint(ctx, domain.FingerprintOf("nope", ""))
	if err != nil {
		t.Fatalf("by fingerprint missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("unknown fingerprint must return nil")
	}
}
