package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"filescleaner/internal/inventory"
)

// CleanupRecord is one stored cleanup pass.
type CleanupRecord struct {
	ID           int64
	Directory    string
	StartedAt    time.Time
	Attempted    int
	TargetBytes  int64
	BytesFreed   int64
	FailureCount int
	Shortfall    bool
	TotalBefore  int64
	TotalAfter   int64
}

// FailureRecord is a file a cleanup pass could not delete.
type FailureRecord struct {
	CleanupID int64
	Path      string
	Size      int64
	Error     string
}

// Store is the SQLite-backed cleanup history.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger database at path, creating it and applying
// migrations as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordCleanup stores a pass over directory together with its failures in a
// single transaction. totalBefore is the directory size when the pass began.
func (s *Store) RecordCleanup(ctx context.Context, directory string, startedAt time.Time, totalBefore int64, report inventory.EvictionReport) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO cleanups (
            directory, started_at, attempted, target_bytes, bytes_freed,
            failure_count, shortfall, total_before, total_after
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		directory,
		formatTime(startedAt),
		report.Attempted,
		report.TargetBytes,
		report.BytesFreed,
		len(report.Failures),
		boolToInt(report.Shortfall()),
		totalBefore,
		totalBefore-report.BytesFreed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert cleanup: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, failure := range report.Failures {
		message := ""
		if failure.Err != nil {
			message = failure.Err.Error()
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO cleanup_failures (cleanup_id, path, size, error) VALUES (?, ?, ?, ?)`,
			id, failure.Path, failure.Size, message,
		); err != nil {
			return 0, fmt.Errorf("insert cleanup failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return id, nil
}

// Recent returns up to limit passes, newest first. An empty directory
// matches every directory.
func (s *Store) Recent(ctx context.Context, directory string, limit int) ([]CleanupRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT id, directory, started_at, attempted, target_bytes, bytes_freed,
        failure_count, shortfall, total_before, total_after FROM cleanups`)
	if directory != "" {
		query.WriteString(" WHERE directory = ?")
		args = append(args, directory)
	}
	query.WriteString(" ORDER BY started_at DESC, id DESC LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query cleanups: %w", err)
	}
	defer rows.Close()

	var records []CleanupRecord
	for rows.Next() {
		var (
			rec       CleanupRecord
			startedAt string
			shortfall int
		)
		if err := rows.Scan(
			&rec.ID, &rec.Directory, &startedAt, &rec.Attempted, &rec.TargetBytes, &rec.BytesFreed,
			&rec.FailureCount, &shortfall, &rec.TotalBefore, &rec.TotalAfter,
		); err != nil {
			return nil, fmt.Errorf("scan cleanup: %w", err)
		}
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		rec.Shortfall = shortfall != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleanups: %w", err)
	}
	return records, nil
}

// Failures returns the files a pass could not delete.
func (s *Store) Failures(ctx context.Context, cleanupID int64) ([]FailureRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cleanup_id, path, size, error FROM cleanup_failures WHERE cleanup_id = ? ORDER BY id`,
		cleanupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []FailureRecord
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.CleanupID, &f.Path, &f.Size, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}

// Prune deletes passes that started before olderThan and returns how many
// were removed. Their failures go with them.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cleanups WHERE started_at < ?`, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune cleanups: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime uses a fixed-width layout so stored timestamps sort as text.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
