package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/battsim/internal/models"
)

// SQLiteRunCatalog implements RunCatalog on a SQLite database file.
type SQLiteRunCatalog struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunCatalog opens (creating if needed) the catalog at dbPath.
func NewSQLiteRunCatalog(ctx context.Context, dbPath string) (*SQLiteRunCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunCatalog{db: db, dbPath: dbPath}, nil
}

// Path returns the database file location.
func (s *SQLiteRunCatalog) Path() string {
	return s.dbPath
}

// RecordRun inserts or replaces a run and its label counts.
func (s *SQLiteRunCatalog) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, batch_id, domain, seed, samples, format, path, checksum, bytes,
			status, stage, error, archive_path, object_key, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			batch_id = excluded.batch_id,
			domain = excluded.domain,
			seed = excluded.seed,
			samples = excluded.samples,
			format = excluded.format,
			path = excluded.path,
			checksum = excluded.checksum,
			bytes = excluded.bytes,
			status = excluded.status,
			stage = excluded.stage,
			error = excluded.error,
			archive_path = excluded.archive_path,
			object_key = excluded.object_key,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		run.ID, run.BatchID, string(run.Domain), run.Seed, run.Samples, run.Format,
		run.Path, run.Checksum, run.Bytes,
		string(run.Status), run.Stage, run.Error, run.ArchivePath, run.ObjectKey,
		formatTime(run.StartedAt), formatTimePtr(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_labels WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear label counts: %w", err)
	}
	for label, count := range run.LabelCounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_labels (run_id, label, count) VALUES (?, ?, ?)`,
			run.ID, label, count); err != nil {
			return fmt.Errorf("failed to record label counts: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, batch_id, domain, seed, samples, format, path, checksum, bytes,
	status, stage, error, archive_path, object_key, started_at, finished_at`

// GetRun returns a run by ID, or nil if not found.
func (s *SQLiteRunCatalog) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	counts, err := s.labelCounts(ctx, []string{run.ID})
	if err != nil {
		return nil, err
	}
	run.LabelCounts = counts[run.ID]
	return run, nil
}

// ListRuns returns runs matching filter, newest first.
func (s *SQLiteRunCatalog) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if filter.Domain != "" {
		where = append(where, "domain = ?")
		args = append(args, string(filter.Domain))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, filter.BatchID)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	var ids []string
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
		ids = append(ids, run.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	counts, err := s.labelCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].LabelCounts = counts[runs[i].ID]
	}
	return runs, nil
}

// DeleteRun removes a run; its label counts cascade.
func (s *SQLiteRunCatalog) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// Validate runs the SQLite integrity checks.
func (s *SQLiteRunCatalog) Validate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ValidateIntegrity(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteRunCatalog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteRunCatalog) labelCounts(ctx context.Context, ids []string) (map[string][]int, error) {
	out := make(map[string][]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, label, count FROM run_labels WHERE run_id IN (`+placeholders+`) ORDER BY run_id, label`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load label counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var label, count int
		if err := rows.Scan(&id, &label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts := out[id]
		for len(counts) <= label {
			counts = append(counts, 0)
		}
		counts[label] = count
		out[id] = counts
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var domain, status, startedAt string
	var path, checksum, stage, errMsg, archivePath, objectKey, finishedAt sql.NullString
	var bytes sql.NullInt64

	err := row.Scan(&run.ID, &run.BatchID, &domain, &run.Seed, &run.Samples, &run.Format,
		&path, &checksum, &bytes, &status, &stage, &errMsg, &archivePath, &objectKey,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Domain = models.Domain(domain)
	run.Status = RunStatus(status)
	run.Path = path.String
	run.Checksum = checksum.String
	run.Bytes = bytes.Int64
	run.Stage = stage.String
	run.Error = errMsg.String
	run.ArchivePath = archivePath.String
	run.ObjectKey = objectKey.String

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
