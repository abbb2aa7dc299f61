package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ChannelRelay/internal/domain"
	"ChannelRelay/internal/ports"
)

const timeFmt = "2006-01-02T15:04:05Z"

// Error marks any failure coming out of the ledger so callers can tell
// storage trouble apart from upstream service errors.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS published_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL UNIQUE,
		source_url TEXT NOT NULL DEFAULT '',
		source_kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL,
		message_id INTEGER NOT NULL DEFAULT 0,
		reactions INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_published_posts_fingerprint ON published_posts(fingerprint)`,
	`CREATE INDEX IF NOT EXISTS idx_published_posts_published_at ON published_posts(published_at)`,
}

// Store is the sqlite-backed publication ledger.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.DedupStore = (*Store)(nil)

// Open opens (creating when needed) the ledger database at path. The
// special path ":memory:" yields an ephemeral store for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, wrap("mkdir", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", err)
	}

	// One connection keeps sqlite's single writer happy and keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, wrap("set WAL mode", err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, wrap("migrate", err)
		}
	}

	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction that is always either committed
// or rolled back before withTx returns.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Exists reports whether the fingerprint is already in the ledger.
func (s *Store) Exists(ctx context.Context, fp domain.Fingerprint) (bool, error) {
	query, args, err := s.sb.Select("1").
		From("published_posts").
		Where(sq.Eq{"fingerprint": string(fp)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, wrap("exists", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("exists", err)
	}
	return true, nil
}

// Record inserts the publication exactly once. When the fingerprint is
// already present the stored row id comes back instead of a new one.
func (s *Store) Record(ctx context.Context, rec domain.PublishedRecord) (int64, error) {
	publishedAt := rec.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		insert, insertArgs, err := s.sb.Insert("published_posts").
			Options("OR IGNORE").
			Columns("fingerprint", "source_url", "source_kind", "title", "published_at", "message_id", "reactions").
			Values(
				string(rec.Fingerprint),
				rec.Locator,
				string(rec.Kind),
				rec.Title,
				publishedAt.UTC().Format(timeFmt),
				rec.MessageID,
				rec.Reactions,
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		res, err := tx.ExecContext(ctx, insert, insertArgs...)
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("last insert id: %w", err)
			}
			return nil
		}

		// The row was ignored, so the fingerprint is already recorded.
		query, queryArgs, err := s.sb.Select("id").
			From("published_posts").
			Where(sq.Eq{"fingerprint": string(rec.Fingerprint)}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, queryArgs...).Scan(&id); err != nil {
			return fmt.Errorf("select existing: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, wrap("record", err)
	}
	return id, nil
}

// ByFingerprint returns the matching record, or nil when none exists.
func (s *Store) ByFingerprint(ctx context.Context, fp domain.Fingerprint) (*domain.PublishedRecord, error) {
	query, args, err := s.selectRecords().
		Where(sq.Eq{"fingerprint": string(fp)}).
		ToSql()
	if err != nil {
		return nil, wrap("by fingerprint", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("by fingerprint", err)
	}
	return &rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.PublishedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := s.selectRecords().
		OrderBy("published_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, wrap("recent", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("recent", err)
	}

	var records []domain.PublishedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, wrap("recent", err)
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, wrap("recent", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, wrap("recent", closeErr)
	}

	return records, nil
}

// UpdateReactions stores the engagement counter for a published message.
func (s *Store) UpdateReactions(ctx context.Context, messageID int64, count int) error {
	query, args, err := s.sb.Update("published_posts").
		Set("reactions", count).
		Where(sq.Eq{"message_id": messageID}).
		ToSql()
	if err != nil {
		return wrap("update reactions", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return wrap("update reactions", err)
	}
	return nil
}

// Stats aggregates ledger counters: total, per source kind, and the
// count published within the last seven days.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	stats := domain.StoreStats{ByKind: map[domain.SourceKind]int{}}

	query, args, err := s.sb.Select("COUNT(*)").From("published_posts").ToSql()
	if err != nil {
		return stats, wrap("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total); err != nil {
		return stats, wrap("stats", err)
	}

	query, args, err = s.sb.Select("source_kind", "COUNT(*)").
		From("published_posts").
		GroupBy("source_kind").
		ToSql()
	if err != nil {
		return stats, wrap("stats", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, wrap("stats", err)
	}
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			_ = rows.Close()
			return stats, wrap("stats", err)
		}
		stats.ByKind[domain.SourceKind(kind)] = count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return stats, wrap("stats", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return stats, wrap("stats", closeErr)
	}

	weekAgo := time.Now().Add(-7 * 24 * time.Hour).UTC().Format(timeFmt)
	query, args, err = s.sb.Select("COUNT(*)").
		From("published_posts").
		Where(sq.GtOrEq{"published_at": weekAgo}).
		ToSql()
	if err != nil {
		return stats, wrap("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stats.LastWeek); err != nil {
		return stats, wrap("stats", err)
	}

	return stats, nil
}

// Purge removes records older than the retention window and returns
// how many went away. Purged content becomes publishable again.
func (s *Store) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 90
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UTC().Format(timeFmt)

	query, args, err := s.sb.Delete("published_posts").
		Where(sq.Lt{"published_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, wrap("purge", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrap("purge", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("purge", err)
	}
	return removed, nil
}

func (s *Store) selectRecords() sq.SelectBuilder {
	return s.sb.Select(
		"id", "fingerprint", "source_url", "source_kind",
		"title", "published_at", "message_id", "reactions",
	).From("published_posts")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.PublishedRecord, error) {
	var (
		rec         domain.PublishedRecord
		fingerprint string
		kind        string
		publishedAt string
	)
	err := row.Scan(
		&rec.ID, &fingerprint, &rec.Locator, &kind,
		&rec.Title, &publishedAt, &rec.MessageID, &rec.Reactions,
	)
	if err != nil {
		return domain.PublishedRecord{}, err
	}

	rec.Fingerprint = domain.Fingerprint(fingerprint)
	rec.Kind = domain.SourceKind(kind)
	for _, layout := range []string{timeFmt, "2006-01-02 15:04:05", time.RFC3339} {
		if ts, parseErr := time.Parse(layout, publishedAt); parseErr == nil {
			rec.PublishedAt = ts
			break
		}
	}
	return rec, nil
}
