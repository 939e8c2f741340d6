package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sauna-briefing/internal/model"
	"sauna-briefing/internal/storage/migrations"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver
)

const timeLayout = time.RFC3339

// SQLiteStore keeps ingested emails, their artifacts, and newsletter usage.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)
	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Email is a raw ingested message.
type Email struct {
	ID      string
	Sender  string
	Subject string
	Date    time.Time
	Body    string
}

// SaveEmail stores an email and, when given, its artifact in one transaction.
// Re-saving an already stored email is a no-op.
func (s *SQLiteStore) SaveEmail(ctx context.Context, e Email, a *model.EmailArtifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeLayout)
	q, args, err := sq.Insert("emails").
		Columns("email_id", "sender", "subject", "email_date", "body", "created_at").
		Values(e.ID, e.Sender, e.Subject, e.Date.UTC().Format(timeLayout), e.Body, now).
		Suffix("ON CONFLICT (email_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("insert email %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 || a == nil {
		return tx.Commit()
	}

	q, args, err = sq.Insert("email_artifacts").
		Columns("artifact_id", "email_id", "compressed_content", "summary", "confidence_score", "is_relevant", "created_at").
		Values(a.ArtifactID, e.ID, a.CompressedContent, a.Summary, a.ConfidenceScore, a.IsRelevant, now).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert artifact %s: %w", a.ArtifactID, err)
	}
	return tx.Commit()
}

// HasEmail reports whether a message id was already ingested.
func (s *SQLiteStore) HasEmail(ctx context.Context, id string) (bool, error) {
	q, args, err := sq.Select("1").From("emails").Where(sq.Eq{"email_id": id}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// LatestEmailDate returns the newest stored email date.
func (s *SQLiteStore) LatestEmailDate(ctx context.Context) (time.Time, bool, error) {
	var v sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(email_date) FROM emails").Scan(&v); err != nil {
		return time.Time{}, false, err
	}
	if !v.Valid || v.String == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse email date %q: %w", v.String, err)
	}
	return t, true, nil
}

const watermarkKey = "email_watermark"

// Watermark returns the date up to which every message has been ingested.
func (s *SQLiteStore) Watermark(ctx context.Context) (time.Time, bool, error) {
	q, args, err := sq.Select("value").From("ingest_state").Where(sq.Eq{"name": watermarkKey}).ToSql()
	if err != nil {
		return time.Time{}, false, err
	}
	var v string
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse watermark %q: %w", v, err)
	}
	return t, true, nil
}

// SetWatermark records the ingest resume point.
func (s *SQLiteStore) SetWatermark(ctx context.Context, t time.Time) error {
	q, args, err := sq.Insert("ingest_state").
		Columns("name", "value", "updated_at").
		Values(watermarkKey, t.UTC().Format(timeLayout), time.Now().UTC().Format(timeLayout)).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

// ArtifactQuery filters the email artifacts handed to the gather pipeline.
type ArtifactQuery struct {
	MinConfidence float64
	Since         time.Time
	Limit         int
}

// UnusedArtifacts returns relevant artifacts not yet used by any published run,
// most confident first, then newest.
func (s *SQLiteStore) UnusedArtifacts(ctx context.Context, f ArtifactQuery) ([]model.EmailArtifact, error) {
	b := sq.Select("a.artifact_id", "a.email_id", "a.compressed_content", "a.summary", "a.confidence_score",
		"a.is_relevant", "e.sender", "e.subject", "e.email_date").
		From("email_artifacts a").
		Join("emails e ON e.email_id = a.email_id").
		Where(sq.Eq{"a.is_relevant": true}).
		Where(sq.GtOrEq{"a.confidence_score": f.MinConfidence}).
		Where("a.artifact_id NOT IN (SELECT artifact_id FROM newsletter_usage)").
		OrderBy("a.confidence_score DESC", "e.email_date DESC")
	if !f.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"e.email_date": f.Since.UTC().Format(timeLayout)})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []model.EmailArtifact
	for rows.Next() {
		var a model.EmailArtifact
		var date string
		if err := rows.Scan(&a.ArtifactID, &a.EmailID, &a.CompressedContent, &a.Summary, &a.ConfidenceScore,
			&a.IsRelevant, &a.Sender, &a.Subject, &date); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, date); err == nil {
			a.EmailDate = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordUsage inserts usage records; pairs already present are skipped.
// It returns how many new rows were written.
func (s *SQLiteStore) RecordUsage(ctx context.Context, recs []model.UsageRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	inserted := 0
	for _, r := range recs {
		used := r.UsedAt
		if used.IsZero() {
			used = time.Now()
		}
		q, args, err := sq.Insert("newsletter_usage").
			Columns("artifact_id", "run_id", "used_at").
			Values(r.ArtifactID, r.RunID, used.UTC().Format(timeLayout)).
			Suffix("ON CONFLICT (artifact_id, run_id) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("record usage %s/%s: %w", r.ArtifactID, r.RunID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// UsageForRun lists artifact ids recorded against a run.
func (s *SQLiteStore) UsageForRun(ctx context.Context, runID string) ([]string, error) {
	q, args, err := sq.Select("artifact_id").From("newsletter_usage").
		Where(sq.Eq{"run_id": runID}).OrderBy("artifact_id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
