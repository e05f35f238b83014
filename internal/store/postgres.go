package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/directory"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a small connection pool. Runs are
// sequential so a handful of connections is plenty.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	command     TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS place_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lookup_key TEXT NOT NULL UNIQUE,
	found      BOOLEAN NOT NULL,
	candidate  JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_place_cache_expires_at ON place_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedPlace(ctx context.Context, key string) (*CachedPlace, error) {
	var cp CachedPlace
	var candidateJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT lookup_key, found, candidate, cached_at, expires_at FROM place_cache
		 WHERE lookup_key = $1 AND expires_at > now()`,
		key,
	).Scan(&cp.Key, &cp.Found, &candidateJSON, &cp.CachedAt, &cp.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached place")
	}
	if err := json.Unmarshal(candidateJSON, &cp.Candidate); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached place")
	}
	return &cp, nil
}

func (s *PostgresStore) SetCachedPlace(ctx context.Context, key string, found bool, c directory.Candidate, ttl time.Duration) error {
	now := time.Now().UTC()

	candidateJSON, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal place")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO place_cache (id, lookup_key, found, candidate, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (lookup_key) DO UPDATE SET found = $3, candidate = $4, cached_at = $5, expires_at = $6`,
		uuid.New().String(), key, found, candidateJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached place")
}

func (s *PostgresStore) DeleteExpiredPlaces(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM place_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired places")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, command, input, output string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Command:   command,
		Input:     input,
		Output:    output,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, command, input, output, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, command, input, output, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status RunStatus, stats any) error {
	statsJSON, err := marshalStats(stats)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, finished_at = $3 WHERE id = $4`,
		string(status), statsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, command, input, output, status, stats, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		defaultLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var stats []byte
		if err := rows.Scan(&r.ID, &r.Command, &r.Input, &r.Output, &status, &stats, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if stats != nil {
			r.Stats = json.RawMessage(stats)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
