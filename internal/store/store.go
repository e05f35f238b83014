// Package store persists the directory lookup cache and the run ledger.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/directory"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// CachedPlace is a remembered full lookup. Found is false when the directory
// confirmed no match.
type CachedPlace struct {
	Key       string
	Found     bool
	Candidate directory.Candidate
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Run is one ledger entry.
type Run struct {
	ID         string
	Command    string
	Input      string
	Output     string
	Status     RunStatus
	Stats      json.RawMessage
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store defines the persistence interface for enrichment runs.
type Store interface {
	// Lookup cache
	GetCachedPlace(ctx context.Context, key string) (*CachedPlace, error)
	SetCachedPlace(ctx context.Context, key string, found bool, c directory.Candidate, ttl time.Duration) error
	DeleteExpiredPlaces(ctx context.Context) (int, error)

	// Runs
	CreateRun(ctx context.Context, command, input, output string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus, stats any) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the store named by cfg.Driver and migrates it. It returns
// nil for the "none" driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func marshalStats(stats any) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	b, err := json.Marshal(stats)
	return b, eris.Wrap(err, "store: marshal stats")
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
