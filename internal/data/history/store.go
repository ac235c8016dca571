// Package history records one snapshot of graph and staleness metrics per
// run in a local sqlite database, so trends survive between invocations.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Snapshot is one recorded run.
type Snapshot struct {
	RunID           string    `json:"runId"`
	ProjectKey      string    `json:"projectKey"`
	Timestamp       time.Time `json:"timestamp"`
	FileCount       int       `json:"fileCount"`
	ModuleCount     int       `json:"moduleCount"`
	EdgeCount       int       `json:"edgeCount"`
	CycleCount      int       `json:"cycleCount"`
	DirectStale     int       `json:"directStale"`
	PropagatedStale int       `json:"propagatedStale"`
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveSnapshot inserts one run record. A missing run id or timestamp is
// filled in here so callers only supply the metrics.
func (s *Store) SaveSnapshot(snapshot Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.RunID == "" {
		snapshot.RunID = uuid.NewString()
	}
	if snapshot.ProjectKey == "" {
		snapshot.ProjectKey = "default"
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO runs (
  run_id, project_key, ts_utc, file_count, module_count, edge_count,
  cycle_count, direct_stale, propagated_stale
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err := s.withRetry("save snapshot", func() error {
		_, err := s.db.Exec(
			query,
			snapshot.RunID,
			snapshot.ProjectKey,
			snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
			snapshot.FileCount,
			snapshot.ModuleCount,
			snapshot.EdgeCount,
			snapshot.CycleCount,
			snapshot.DirectStale,
			snapshot.PropagatedStale,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return snapshot.RunID, nil
}

// LoadSnapshots returns snapshots for a project ordered oldest first,
// optionally restricted to runs at or after since.
func (s *Store) LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(projectKey) == "" {
		projectKey = "default"
	}

	query := `
SELECT run_id, project_key, ts_utc, file_count, module_count, edge_count,
  cycle_count, direct_stale, propagated_stale
FROM runs
WHERE project_key = ?
`
	args := []any{projectKey}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, run_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw    string
			snapshot Snapshot
		)
		if err := rows.Scan(
			&snapshot.RunID,
			&snapshot.ProjectKey,
			&tsRaw,
			&snapshot.FileCount,
			&snapshot.ModuleCount,
			&snapshot.EdgeCount,
			&snapshot.CycleCount,
			&snapshot.DirectStale,
			&snapshot.PropagatedStale,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
