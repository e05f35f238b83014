package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-enricher/internal/directory"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS place_cache (
	id         TEXT PRIMARY KEY,
	lookup_key TEXT NOT NULL UNIQUE,
	found      INTEGER NOT NULL,
	candidate  TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_place_cache_expires_at ON place_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedPlace(ctx context.Context, key string) (*CachedPlace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lookup_key, found, candidate, cached_at, expires_at FROM place_cache
		 WHERE lookup_key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	)

	var cp CachedPlace
	var candidateJSON string
	err := row.Scan(&cp.Key, &cp.Found, &candidateJSON, &cp.CachedAt, &cp.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached place")
	}
	if err := json.Unmarshal([]byte(candidateJSON), &cp.Candidate); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached place")
	}
	return &cp, nil
}

func (s *SQLiteStore) SetCachedPlace(ctx context.Context, key string, found bool, c directory.Candidate, ttl time.Duration) error {
	now := time.Now().UTC()

	candidateJSON, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal place")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO place_cache (id, lookup_key, found, candidate, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (lookup_key) DO UPDATE SET found = excluded.found, candidate = excluded.candidate,
		 cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), key, found, string(candidateJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached place")
}

func (s *SQLiteStore) DeleteExpiredPlaces(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM place_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired places")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, command, input, output string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Command:   command,
		Input:     input,
		Output:    output,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, input, output, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, command, input, output, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status RunStatus, stats any) error {
	statsJSON, err := marshalStats(stats)
	if err != nil {
		return err
	}

	var statsArg any
	if statsJSON != nil {
		statsArg = string(statsJSON)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, finished_at = ? WHERE id = ?`,
		string(status), statsArg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, input, output, status, stats, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		defaultLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var stats sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Command, &r.Input, &r.Output, &r.Status, &stats, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if stats.Valid {
			r.Stats = json.RawMessage(stats.String)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
