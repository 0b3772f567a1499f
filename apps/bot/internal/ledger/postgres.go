package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/MaraKorvus/lobotjr/player"
)

// PostgresService stores runs in a shared Postgres database.
type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(dsn string) (*PostgresService, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &PostgresService{db: db}, nil
}

func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresService) RecordRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	summary := run.Summary
	if summary == nil {
		summary = map[string]any{}
	}
	summaryRaw, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO adventure_runs (
    run_id, adventure_id, adventure, outcome, started_at, ended_at, summary_json
)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
ON CONFLICT (run_id) DO NOTHING
`, run.ID, run.AdventureID, run.Adventure, run.Outcome, run.StartedAt.UTC(), run.EndedAt.UTC(), string(summaryRaw)); err != nil {
		return err
	}
	for i, m := range run.Members {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO adventure_run_members (run_id, player_key, player_name, position)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, player_key) DO NOTHING
`, run.ID, player.NormalizeName(m), m, i); err != nil {
			return err
		}
	}
	for _, e := range run.Events {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO adventure_run_events (run_id, seq, event_type, envelope_b64, server_ts_ms)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (run_id, seq) DO NOTHING
`, run.ID, int64(e.Seq), e.EventType, e.EnvelopeB64, e.ServerTsMs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const postgresRunColumns = `
r.run_id, r.adventure_id, r.adventure, r.outcome, r.started_at, r.ended_at, r.summary_json,
ARRAY(SELECT m.player_name FROM adventure_run_members AS m WHERE m.run_id = r.run_id ORDER BY m.position)::text[]
`

func (s *PostgresService) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.listRuns(ctx, `
SELECT `+postgresRunColumns+`
FROM adventure_runs AS r
ORDER BY r.ended_at DESC, r.run_id DESC
LIMIT $1
`, clampLimit(limit))
}

func (s *PostgresService) ListByPlayer(ctx context.Context, name string, limit int) ([]RunSummary, error) {
	return s.listRuns(ctx, `
SELECT `+postgresRunColumns+`
FROM adventure_runs AS r
WHERE EXISTS (
    SELECT 1 FROM adventure_run_members AS p WHERE p.run_id = r.run_id AND p.player_key = $1
)
ORDER BY r.ended_at DESC, r.run_id DESC
LIMIT $2
`, player.NormalizeName(name), clampLimit(limit))
}

func (s *PostgresService) listRuns(ctx context.Context, query string, args ...any) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []RunSummary{}
	for rows.Next() {
		var item RunSummary
		var summaryRaw []byte
		var members pq.StringArray
		if err := rows.Scan(&item.RunID, &item.AdventureID, &item.Adventure, &item.Outcome,
			&item.StartedAt, &item.EndedAt, &summaryRaw, &members); err != nil {
			return nil, err
		}
		item.Members = []string(members)
		item.Summary = map[string]any{}
		if len(summaryRaw) > 0 {
			_ = json.Unmarshal(summaryRaw, &item.Summary)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresService) GetRunEvents(ctx context.Context, runID string) ([]EventItem, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM adventure_runs WHERE run_id = $1)
`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM adventure_run_events
WHERE run_id = $1
ORDER BY seq
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []EventItem{}
	for rows.Next() {
		var e EventItem
		var seq int64
		if err := rows.Scan(&seq, &e.EventType, &e.EnvelopeB64, &e.ServerTsMs); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		events = append(events, e)
	}
	return events, rows.Err()
}

func ensurePostgresLedgerSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS adventure_runs (
    run_id TEXT PRIMARY KEY,
    adventure_id INTEGER NOT NULL,
    adventure TEXT NOT NULL,
    outcome TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    summary_json JSONB NOT NULL DEFAULT '{}'::jsonb
)`,
		`CREATE INDEX IF NOT EXISTS idx_adventure_runs_ended ON adventure_runs(ended_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS adventure_run_members (
    run_id TEXT NOT NULL REFERENCES adventure_runs(run_id) ON DELETE CASCADE,
    player_key TEXT NOT NULL,
    player_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (run_id, player_key)
)`,
		`CREATE INDEX IF NOT EXISTS idx_adventure_run_members_player ON adventure_run_members(player_key)`,
		`
CREATE TABLE IF NOT EXISTS adventure_run_events (
    run_id TEXT NOT NULL REFERENCES adventure_runs(run_id) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL,
    server_ts_ms BIGINT NOT NULL,
    PRIMARY KEY (run_id, seq)
)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
