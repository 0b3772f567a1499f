package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	ModeNone     = "none"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"

	defaultListLimit = 20
	maxListLimit     = 100
)

var ErrNotFound = errors.New("not found")

// Service stores finished adventure runs and their event tapes.
type Service interface {
	Close() error
	RecordRun(ctx context.Context, run Run) error
	ListRecent(ctx context.Context, limit int) ([]RunSummary, error)
	ListByPlayer(ctx context.Context, player string, limit int) ([]RunSummary, error)
	GetRunEvents(ctx context.Context, runID string) ([]EventItem, error)
}

// Run is one finished adventure.
type Run struct {
	ID          string
	AdventureID int
	Adventure   string
	Outcome     string
	StartedAt   time.Time
	EndedAt     time.Time
	Members     []string
	Summary     map[string]any
	Events      []EventItem
}

type RunSummary struct {
	RunID       string         `json:"run_id"`
	AdventureID int            `json:"adventure_id"`
	Adventure   string         `json:"adventure"`
	Outcome     string         `json:"outcome"`
	Members     []string       `json:"members"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     time.Time      `json:"ended_at"`
	Summary     map[string]any `json:"summary"`
}

// EventItem is one stored event. EnvelopeB64 holds the protobuf envelope.
type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  int64  `json:"server_ts_ms"`
}

type noopService struct{}

func (n *noopService) Close() error { return nil }

func (n *noopService) RecordRun(context.Context, Run) error { return nil }

func (n *noopService) ListRecent(context.Context, int) ([]RunSummary, error) {
	return []RunSummary{}, nil
}

func (n *noopService) ListByPlayer(context.Context, string, int) ([]RunSummary, error) {
	return []RunSummary{}, nil
}

func (n *noopService) GetRunEvents(context.Context, string) ([]EventItem, error) {
	return nil, ErrNotFound
}

// NewService builds the backend for mode. sqliteDB is used in sqlite mode and
// dsn in postgres mode.
func NewService(mode string, sqliteDB *sql.DB, dsn string) (Service, error) {
	switch mode {
	case ModeNone, "":
		return &noopService{}, nil
	case ModeSQLite:
		if sqliteDB == nil {
			return nil, fmt.Errorf("ledger mode %s needs a database", ModeSQLite)
		}
		return NewSQLiteService(sqliteDB)
	case ModePostgres:
		return NewPostgresService(dsn)
	default:
		return nil, fmt.Errorf("invalid ledger mode %q (supported: %s, %s, %s)", mode, ModeNone, ModeSQLite, ModePostgres)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
