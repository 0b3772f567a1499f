package adventure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

// scriptedRoller returns its values in order, clamped to [0, n). Once the
// script runs out it returns n-1.
type scriptedRoller struct {
	vals []int
	i    int
}

func (s *scriptedRoller) Intn(n int) int {
	if s.i >= len(s.vals) {
		return n - 1
	}
	v := s.vals[s.i]
	s.i++
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

type fixedRoller int

func (f fixedRoller) Intn(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sent struct {
	partyID uint64
	to      string
	text    string
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) SendToParty(p *party.Party, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{partyID: p.ID, text: text})
}

func (r *recorder) SendToIndividual(name, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: name, text: text})
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.text)
	}
	return out
}

func newPlayer(t *testing.T, name string, class player.ClassType, level, coins int) *player.Player {
	t.Helper()
	p := player.New(name, name, 20)
	p.SetClass(class, player.Stats{})
	p.AddXP(player.XPForLevel(level) - p.XP())
	p.AddCoins(coins)
	require.Equal(t, level, p.Level())
	return p
}

func newDef(id int, name string, minLevel, maxLevel, cost, size int) *Definition {
	return &Definition{
		ID:              id,
		Name:            name,
		MinLevel:        minLevel,
		MaxLevel:        maxLevel,
		Cost:            cost,
		PartySize:       size,
		BaseSuccessRate: 100,
		RewardModifier:  1,
		Encounters: []Encounter{
			{Index: 0, Text: "A goblin blocks the path.", SuccessText: "The goblin flees."},
		},
		Success: "Victory!",
		Failure: "Defeat.",
	}
}

type harness struct {
	pool  *party.Pool
	queue *WorkQueue
	gf    *GroupFinder
	msgs  *recorder
	clock *fakeClock
}

func newHarness(t *testing.T, rng Roller, defs ...*Definition) *harness {
	t.Helper()
	catalog, err := NewMemoryCatalog(defs...)
	require.NoError(t, err)
	h := &harness{
		msgs:  &recorder{},
		clock: newFakeClock(),
		queue: NewWorkQueue(16),
	}
	h.pool = party.NewPool(h.msgs)
	h.gf, err = NewGroupFinder(DefaultConfig(), h.pool, catalog, h.queue, h.msgs, WithClock(h.clock), WithRoller(rng))
	require.NoError(t, err)
	return h
}

func (h *harness) take(t *testing.T) WorkItem {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := h.queue.Take(ctx)
	require.NoError(t, err)
	return item
}
