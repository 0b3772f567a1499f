package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/auth"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/codec"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/sqlitedb"
	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

func newSQLiteService(t *testing.T) *SQLiteService {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	svc, err := NewSQLiteService(db)
	require.NoError(t, err)
	return svc
}

func newParty(t *testing.T, names ...string) (*party.Party, []*player.Player) {
	t.Helper()
	pool := party.NewPool(nil)
	var members []*player.Player
	for i, n := range names {
		p := player.New(string(rune('a'+i)), n, 0)
		p.AddCoins(100)
		members = append(members, p)
	}
	pt, err := pool.CreateSolo(members[0], len(members))
	require.NoError(t, err)
	for _, m := range members[1:] {
		require.True(t, pool.Add(pt, m))
	}
	return pt, members
}

func crypt() *adventure.Definition {
	return &adventure.Definition{
		ID: 7, Name: "Crypt", MinLevel: 1, MaxLevel: 5, PartySize: 2, RewardModifier: 1,
		Encounters: []adventure.Encounter{{Index: 0, Text: "a"}, {Index: 1, Text: "b"}},
	}
}

func TestRecorder_StoresSuccessfulRun(t *testing.T) {
	svc := newSQLiteService(t)
	rec := NewRecorder(svc)
	clock := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	pt, members := newParty(t, "Alice", "Bob")
	rec.OnStart(pt, crypt())
	members[0].AddCoins(25)
	members[0].AddXP(40)
	sword := &player.Item{ID: 1, Name: "Sword"}
	rec.OnSuccess(pt, 2, map[*player.Player][]*player.Item{members[1]: {sword}}, "Victory!")

	ctx := context.Background()
	recent, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	run := recent[0]
	assert.Equal(t, "Crypt", run.Adventure)
	assert.Equal(t, 7, run.AdventureID)
	assert.Equal(t, "SUCCESSFULLY_COMPLETED", run.Outcome)
	assert.Equal(t, []string{"Alice", "Bob"}, run.Members)
	assert.True(t, run.EndedAt.After(run.StartedAt))
	rewards := run.Summary["rewards"].(map[string]any)
	assert.Equal(t, map[string]any{"xp": 40.0, "coins": 25.0}, rewards["Alice"])

	byBob, err := svc.ListByPlayer(ctx, "BOB", 10)
	require.NoError(t, err)
	require.Len(t, byBob, 1)
	assert.Equal(t, run.RunID, byBob[0].RunID)

	events, err := svc.GetRunEvents(ctx, run.RunID)
	require.NoError(t, err)
	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.EventType)
	}
	assert.Equal(t, []string{codec.KindStart, codec.KindEncounter, codec.KindEncounter, codec.KindSuccess}, kinds)
	assert.Equal(t, uint64(4), events[3].Seq)

	_, err = svc.GetRunEvents(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecorder_StoresFailure(t *testing.T) {
	svc := newSQLiteService(t)
	rec := NewRecorder(svc)
	pt, members := newParty(t, "Alice", "Bob")

	rec.OnStart(pt, crypt())
	rec.OnFailure(pt, 1, []*player.Player{members[0]}, map[*player.Player]*player.Item{}, "Defeat.")
	// A second outcome without a start is ignored.
	rec.OnFailure(pt, 0, nil, nil, "again")

	recent, err := svc.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "UNSUCCESSFULLY_COMPLETED", recent[0].Outcome)

	events, err := svc.GetRunEvents(context.Background(), recent[0].RunID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, codec.KindFailure, events[3].EventType)
}

func TestHTTPHandler(t *testing.T) {
	svc := newSQLiteService(t)
	rec := NewRecorder(svc)
	pt, _ := newParty(t, "Alice")
	rec.OnStart(pt, crypt())
	rec.OnSuccess(pt, 2, nil, "Victory!")

	authSvc := auth.NewManager(0, nil)
	_, token, err := authSvc.Register("mara_01", "secret12")
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHTTPHandler(authSvc, svc).RegisterRoutes(mux)

	get := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/audit/runs/recent", "").Code)

	w := get("/api/audit/players/alice/runs", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []RunSummary `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)

	w = get("/api/audit/runs/"+list.Items[0].RunID, token)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Events []struct {
			EventType string         `json:"event_type"`
			Envelope  map[string]any `json:"envelope"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Events, 4)
	assert.Equal(t, "start", detail.Events[0].Envelope["kind"])
	data := detail.Events[0].Envelope["data"].(map[string]any)
	assert.Equal(t, "Crypt", data["adventure"])

	assert.Equal(t, http.StatusNotFound, get("/api/audit/runs/nope", token).Code)
}

func TestNewService_Modes(t *testing.T) {
	svc, err := NewService(ModeNone, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.RecordRun(context.Background(), Run{ID: "x"}))

	_, err = NewService(ModeSQLite, nil, "")
	assert.Error(t, err)
	_, err = NewService("redis", nil, "")
	assert.Error(t, err)
}
