// Package history keeps a SQLite record of processed sync logs.
//
// Each processed log is one run with its file records and the outcome of
// every sink. The latest run doubles as the persistent "last result" used
// by the clipboard export, so it survives restarts of the watcher.
//
// The database is a single file opened through the embedded SQLite driver
// in WAL mode, so a CLI invocation can read while the watcher writes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/syncsentinel/syncsentinel/internal/pipeline"
	"github.com/syncsentinel/syncsentinel/internal/record"
	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// Store is the run history database.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path and makes
// sure its schema exists.
//
// The caller must call Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint history WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close history database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables if they do not exist. It is idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		sync_name TEXT NOT NULL DEFAULT '',
		run_date TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL DEFAULT '',
		items_processed INTEGER,
		total_size TEXT,
		total_time TEXT,
		comparison_items INTEGER,
		comparison_time TEXT,
		file_count INTEGER NOT NULL DEFAULT 0,
		processed_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		section TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sink_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		sink TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_processed ON runs(processed_at);
	CREATE INDEX IF NOT EXISTS idx_records_name ON records(file_name);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}

	// Databases created before the comparison summary was stored.
	for _, col := range []struct{ name, typ string }{
		{"comparison_items", "INTEGER"},
		{"comparison_time", "TEXT"},
	} {
		if err := s.ensureColumn(ctx, "runs", col.name, col.typ); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds column to table unless it already exists.
func (s *Store) ensureColumn(ctx context.Context, table, column, typ string) error {
	rows, err := s.conn.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}

	// #nosec G202 - identifiers are constants
	if _, err := s.conn.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+column+" "+typ); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// RecordRun stores a processed result. It implements pipeline.Store.
func (s *Store) RecordRun(ctx context.Context, r *pipeline.Result) (err error) {
	if r == nil || r.Run == nil {
		return errors.New("cannot record a run without a parsed log")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (
		id, path, format, sync_name, run_date, start_time,
		items_processed, total_size, total_time,
		comparison_items, comparison_time, file_count,
		processed_at, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.Path,
		r.Format.String(),
		r.Run.SyncName,
		r.Run.Date,
		r.Run.StartTime,
		nullInt(r.Run.ItemsProcessed),
		nullString(r.Run.TotalSize),
		nullString(r.Run.TotalTime),
		nullInt(r.Run.ComparisonItems),
		nullString(r.Run.ComparisonTime),
		r.Run.FileCount(),
		r.ProcessedAt.UTC().Format(timeLayout),
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, rec := range r.Records {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO records (run_id, position, file_name, file_type, section, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID.String(), i, rec.FileName, string(rec.FileType), rec.Section, rec.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.FileName, err)
		}
	}

	for i, o := range r.Sinks {
		var msg sql.NullString
		if o.Err != nil {
			msg = sql.NullString{String: o.Err.Error(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO sink_results (run_id, position, sink, row_count, error)
		VALUES (?, ?, ?, ?, ?)`,
			r.ID.String(), i, o.Sink, o.Rows, msg)
		if err != nil {
			return fmt.Errorf("failed to insert sink result %s: %w", o.Sink, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID          uuid.UUID
	Path        string
	SyncName    string
	Date        string
	Files       int
	Records     int
	FailedSinks int
	ProcessedAt time.Time
	Duration    time.Duration
}

// ListFilter configures ListRuns.
type ListFilter struct {
	// Since keeps runs processed at or after this time (zero = all).
	Since time.Time
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]RunSummary, error) {
	query := `
	SELECT r.id, r.path, r.sync_name, r.run_date, r.file_count,
	       (SELECT COUNT(*) FROM records WHERE run_id = r.id),
	       (SELECT COUNT(*) FROM sink_results WHERE run_id = r.id AND error IS NOT NULL),
	       r.processed_at, r.duration_ms
	FROM runs r
	WHERE r.processed_at >= ?
	ORDER BY r.processed_at DESC
	`
	since := ""
	if !filter.Since.IsZero() {
		since = filter.Since.UTC().Format(timeLayout)
	}
	args := []any{since}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum        RunSummary
			id, when   string
			durationMS int64
		)
		if err := rows.Scan(&id, &sum.Path, &sum.SyncName, &sum.Date, &sum.Files,
			&sum.Records, &sum.FailedSinks, &when, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.ID, _ = uuid.Parse(id)
		sum.ProcessedAt, _ = time.Parse(timeLayout, when)
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LastRun rebuilds the most recently processed result. Returns ErrNoRuns
// when the history is empty.
//
// Only the run header fields are restored; operations are not stored.
func (s *Store) LastRun(ctx context.Context) (*pipeline.Result, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, path, format, sync_name, run_date, start_time,
	       items_processed, total_size, total_time,
	       comparison_items, comparison_time, processed_at, duration_ms
	FROM runs
	ORDER BY processed_at DESC
	LIMIT 1`)

	var (
		id, format, when string
		items, compItems sql.NullInt64
		size, total      sql.NullString
		compTime         sql.NullString
		durationMS       int64
		run              synclog.SyncRun
		res              pipeline.Result
	)
	err := row.Scan(&id, &res.Path, &format, &run.SyncName, &run.Date, &run.StartTime,
		&items, &size, &total, &compItems, &compTime, &when, &durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}

	res.ID, _ = uuid.Parse(id)
	res.Format = synclog.FormatForPath("x." + format)
	res.ProcessedAt, _ = time.Parse(timeLayout, when)
	res.Duration = time.Duration(durationMS) * time.Millisecond
	if items.Valid {
		n := int(items.Int64)
		run.ItemsProcessed = &n
	}
	if size.Valid {
		run.TotalSize = &size.String
	}
	if total.Valid {
		run.TotalTime = &total.String
	}
	if compItems.Valid {
		n := int(compItems.Int64)
		run.ComparisonItems = &n
	}
	if compTime.Valid {
		run.ComparisonTime = &compTime.String
	}
	run.Operations = []synclog.SyncOperation{}
	res.Run = &run

	if res.Records, err = s.records(ctx, id); err != nil {
		return nil, err
	}
	if res.Sinks, err = s.sinkResults(ctx, id); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Store) records(ctx context.Context, runID string) ([]record.FileRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT file_name, file_type, section, timestamp
	FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	out := []record.FileRecord{}
	for rows.Next() {
		var rec record.FileRecord
		var typ string
		if err := rows.Scan(&rec.FileName, &typ, &rec.Section, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.FileType = record.FileType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) sinkResults(ctx context.Context, runID string) ([]pipeline.SinkOutcome, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT sink, row_count, error
	FROM sink_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sink results: %w", err)
	}
	defer rows.Close()

	var out []pipeline.SinkOutcome
	for rows.Next() {
		var o pipeline.SinkOutcome
		var msg sql.NullString
		if err := rows.Scan(&o.Sink, &o.Rows, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan sink result: %w", err)
		}
		if msg.Valid {
			o.Err = errors.New(msg.String)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
