package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MaraKorvus/lobotjr/apps/bot/internal/sqlitedb"
	"github.com/MaraKorvus/lobotjr/player"
)

// Store persists player records keyed by normalized name.
type Store interface {
	Load(ctx context.Context, key string) (player.Record, bool, error)
	Save(ctx context.Context, rec player.Record) error
	Keys(ctx context.Context) ([]string, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]player.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]player.Record)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (player.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[key]
	return rec, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, rec player.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[player.NormalizeName(rec.Name)] = rec
	return nil
}

func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.recs))
	for k := range s.recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SQLiteStore keeps one JSON record per player in the shared database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sqlitedb.Exec(ctx, db, `
CREATE TABLE IF NOT EXISTS players (
    player_key TEXT PRIMARY KEY,
    player_id TEXT NOT NULL,
    name TEXT NOT NULL,
    record_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`)
	if err != nil {
		return nil, fmt.Errorf("roster schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (player.Record, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record_json FROM players WHERE player_key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return player.Record{}, false, nil
		}
		return player.Record{}, false, err
	}
	var rec player.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return player.Record{}, false, fmt.Errorf("decode player %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec player.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO players (player_key, player_id, name, record_json, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (player_key) DO UPDATE
SET record_json = excluded.record_json,
    name = excluded.name,
    updated_at_ms = excluded.updated_at_ms
`, player.NormalizeName(rec.Name), rec.ID, rec.Name, string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_key FROM players ORDER BY player_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
