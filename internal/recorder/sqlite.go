package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calculation_runs (
			id          TEXT PRIMARY KEY,
			created_at  INTEGER NOT NULL,
			pipeline    TEXT NOT NULL,
			snapshot_id TEXT,
			status      TEXT NOT NULL,
			price       TEXT,
			warnings    TEXT,
			error       TEXT,
			row_count   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pipeline_ts ON calculation_runs(pipeline, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON calculation_runs(created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	warnings, err := json.Marshal(run.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`INSERT INTO calculation_runs
		(id, created_at, pipeline, snapshot_id, status, price, warnings, error, row_count)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Pipeline, run.SnapshotID, run.Status,
		run.Price.String(), string(warnings), run.Error, run.RowCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecentRuns(pipeline string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, created_at, pipeline, snapshot_id, status, price, warnings, error, row_count
		FROM calculation_runs WHERE pipeline = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, pipeline, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			ts       int64
			price    string
			warnings string
		)
		if err := rows.Scan(&run.ID, &ts, &run.Pipeline, &run.SnapshotID, &run.Status,
			&price, &warnings, &run.Error, &run.RowCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(ts)
		if run.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("run %s: parse price: %w", run.ID, err)
		}
		if warnings != "" {
			if err := json.Unmarshal([]byte(warnings), &run.Warnings); err != nil {
				return nil, fmt.Errorf("run %s: decode warnings: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Prune(before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`DELETE FROM calculation_runs WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("pruned run history", zap.Int64("deleted", n), zap.Time("before", before))
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
