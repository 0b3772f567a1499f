package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MaraKorvus/lobotjr/apps/bot/internal/sqlitedb"
	"github.com/MaraKorvus/lobotjr/player"
)

// SQLiteService stores runs in the shared local database.
type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteService(db *sql.DB) (*SQLiteService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLiteService{db: db}, nil
}

// Close is a no-op: the handle belongs to the caller.
func (s *SQLiteService) Close() error { return nil }

func (s *SQLiteService) RecordRun(ctx context.Context, run Run) error {
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
    run_id, adventure_id, adventure, outcome, started_at_ms, ended_at_ms, summary_json
)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.AdventureID, run.Adventure, run.Outcome,
		run.StartedAt.UTC().UnixMilli(), run.EndedAt.UTC().UnixMilli(), string(summaryRaw)); err != nil {
		return err
	}
	for i, m := range run.Members {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO adventure_run_members (run_id, player_key, player_name, position)
VALUES (?, ?, ?, ?)
`, run.ID, player.NormalizeName(m), m, i); err != nil {
			return err
		}
	}
	for _, e := range run.Events {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO adventure_run_events (run_id, seq, event_type, envelope_b64, server_ts_ms)
VALUES (?, ?, ?, ?, ?)
`, run.ID, e.Seq, e.EventType, e.EnvelopeB64, e.ServerTsMs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteService) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.listRuns(ctx, `
SELECT run_id, adventure_id, adventure, outcome, started_at_ms, ended_at_ms, summary_json
FROM adventure_runs
ORDER BY ended_at_ms DESC, run_id DESC
LIMIT ?
`, clampLimit(limit))
}

func (s *SQLiteService) ListByPlayer(ctx context.Context, name string, limit int) ([]RunSummary, error) {
	return s.listRuns(ctx, `
SELECT r.run_id, r.adventure_id, r.adventure, r.outcome, r.started_at_ms, r.ended_at_ms, r.summary_json
FROM adventure_runs AS r
JOIN adventure_run_members AS m ON m.run_id = r.run_id
WHERE m.player_key = ?
ORDER BY r.ended_at_ms DESC, r.run_id DESC
LIMIT ?
`, player.NormalizeName(name), clampLimit(limit))
}

func (s *SQLiteService) listRuns(ctx context.Context, query string, args ...any) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var items []RunSummary
	for rows.Next() {
		var item RunSummary
		var startedMs, endedMs int64
		var summaryRaw string
		if err := rows.Scan(&item.RunID, &item.AdventureID, &item.Adventure, &item.Outcome, &startedMs, &endedMs, &summaryRaw); err != nil {
			rows.Close()
			return nil, err
		}
		item.StartedAt = time.UnixMilli(startedMs).UTC()
		item.EndedAt = time.UnixMilli(endedMs).UTC()
		item.Summary = map[string]any{}
		if summaryRaw != "" {
			_ = json.Unmarshal([]byte(summaryRaw), &item.Summary)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Members are read after the run rows are closed: the pool has one connection.
	for i := range items {
		members, err := s.members(ctx, items[i].RunID)
		if err != nil {
			return nil, err
		}
		items[i].Members = members
	}
	if items == nil {
		items = []RunSummary{}
	}
	return items, nil
}

func (s *SQLiteService) members(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT player_name FROM adventure_run_members WHERE run_id = ? ORDER BY position
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	members := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		members = append(members, name)
	}
	return members, rows.Err()
}

func (s *SQLiteService) GetRunEvents(ctx context.Context, runID string) ([]EventItem, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM adventure_runs WHERE run_id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM adventure_run_events
WHERE run_id = ?
ORDER BY seq
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []EventItem{}
	for rows.Next() {
		var e EventItem
		if err := rows.Scan(&e.Seq, &e.EventType, &e.EnvelopeB64, &e.ServerTsMs); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	return sqlitedb.Exec(ctx, db,
		`
CREATE TABLE IF NOT EXISTS adventure_runs (
    run_id TEXT PRIMARY KEY,
    adventure_id INTEGER NOT NULL,
    adventure TEXT NOT NULL,
    outcome TEXT NOT NULL,
    started_at_ms INTEGER NOT NULL,
    ended_at_ms INTEGER NOT NULL,
    summary_json TEXT NOT NULL DEFAULT '{}'
)`,
		`CREATE INDEX IF NOT EXISTS idx_adventure_runs_ended ON adventure_runs(ended_at_ms DESC)`,
		`
CREATE TABLE IF NOT EXISTS adventure_run_members (
    run_id TEXT NOT NULL,
    player_key TEXT NOT NULL,
    player_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (run_id, player_key),
    FOREIGN KEY(run_id) REFERENCES adventure_runs(run_id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_adventure_run_members_player ON adventure_run_members(player_key)`,
		`
CREATE TABLE IF NOT EXISTS adventure_run_events (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL,
    server_ts_ms INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY(run_id) REFERENCES adventure_runs(run_id) ON DELETE CASCADE
)`,
	)
}
