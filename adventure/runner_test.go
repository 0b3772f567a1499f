package adventure

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

func newTestRunner(t *testing.T, queue *WorkQueue, msgs party.Messenger, rng Roller) *Runner {
	t.Helper()
	r, err := NewRunner(DefaultConfig(), queue, msgs, WithRoller(rng))
	require.NoError(t, err)
	return r
}

func TestSoloAdventureSucceeds(t *testing.T) {
	h := newHarness(t, nil, newDef(1, "Goblin Cave", 1, 10, 50, 1))
	hero := newPlayer(t, "hero", player.ClassWarrior, 5, 200)
	xpBefore := hero.XP()

	h.gf.Queue(hero)
	require.Equal(t, 0, h.gf.Pending())
	require.Equal(t, 1, h.queue.Len())

	runner := newTestRunner(t, h.queue, h.msgs, rand.New(rand.NewSource(7)))
	res := runner.Resolve(h.take(t))

	require.Equal(t, SuccessfullyCompleted, res.Progress)
	assert.Equal(t, 1, res.Encounter)
	assert.GreaterOrEqual(t, res.XP, 5)
	assert.GreaterOrEqual(t, res.Coins, 5)
	assert.Equal(t, 200-50+res.Coins, hero.Coins())
	assert.Equal(t, xpBefore+res.XP, hero.XP())
	assert.Contains(t, h.msgs.texts(), "Loading information for... Goblin Cave. 50 coins have been removed from each member.")
	assert.Contains(t, h.msgs.texts(), res.Message)
	assert.Contains(t, res.Message, "Goblin Cave has been completed!")
}

func TestResolve_CancelsWhenMemberCannotAfford(t *testing.T) {
	msgs := &recorder{}
	pool := party.NewPool(msgs)
	broke := newPlayer(t, "broke", player.ClassWarrior, 5, 10)
	pt, err := pool.CreateSolo(broke, 1)
	require.NoError(t, err)
	pt.SetBusy(true)

	runner := newTestRunner(t, NewWorkQueue(1), msgs, fixedRoller(0))
	started := false
	runner.Subscribe(ObserverFuncs{Start: func(*party.Party, *Definition) { started = true }})

	res := runner.Resolve(WorkItem{Party: pt, Adventure: newDef(1, "Goblin Cave", 1, 10, 50, 1)})
	assert.Equal(t, NotStarted, res.Progress)
	assert.Equal(t, "broke can no longer afford Goblin Cave, the adventure has been cancelled.", res.Message)
	assert.Equal(t, 10, broke.Coins())
	assert.False(t, pt.Busy())
	assert.False(t, started)
}

func TestResolve_AbortsOnBrokenItem(t *testing.T) {
	pool := party.NewPool(nil)
	pt, err := pool.CreateSolo(newPlayer(t, "a", player.ClassWarrior, 5, 100), 1)
	require.NoError(t, err)
	runner := newTestRunner(t, NewWorkQueue(1), nil, fixedRoller(0))

	assert.Equal(t, NotStarted, runner.Resolve(WorkItem{Party: pt}).Progress)
	empty := newDef(1, "Void", 1, 10, 0, 1)
	empty.Encounters = nil
	assert.Equal(t, NotStarted, runner.Resolve(WorkItem{Party: pt, Adventure: empty}).Progress)
	assert.Equal(t, NotStarted, runner.Resolve(WorkItem{Adventure: newDef(2, "Cave", 1, 10, 0, 1)}).Progress)
}

func TestRewardFloor(t *testing.T) {
	for level := 1; level <= 20; level++ {
		for _, raw := range []int{0, 1, 3, 50} {
			for _, mod := range []float64{0, 0.05, 1} {
				v := scaleReward(fixedRoller(0), level, raw, mod)
				assert.GreaterOrEqual(t, v, 5, "level=%d raw=%d mod=%v", level, raw, mod)
			}
		}
	}

	pool := party.NewPool(nil)
	a := newPlayer(t, "a", player.ClassWarrior, 3, 0)
	pt, err := pool.CreateSolo(a, 1)
	require.NoError(t, err)
	adv := newDef(1, "Cheap Run", 1, 10, 0, 1)
	adv.RewardModifier = 0

	res := newTestRunner(t, NewWorkQueue(1), nil, fixedRoller(0)).Resolve(WorkItem{Party: pt, Adventure: adv})
	require.Equal(t, SuccessfullyCompleted, res.Progress)
	assert.Equal(t, 5, res.XP)
	assert.Equal(t, 5, res.Coins)
}

func TestSuccessChance(t *testing.T) {
	adv := newDef(1, "Cave", 1, 10, 0, 3)
	adv.BaseSuccessRate = 60
	enc := Encounter{Difficulty: 5}

	// 20*5/10 = 10 is below the 15 floor; 60 * 2/3 = 40.
	got := SuccessChance(player.Stats{SuccessChance: 20}, 5, 2, 3, adv, enc)
	assert.InDelta(t, 50, got, 1e-9)

	got = SuccessChance(player.Stats{SuccessChance: 20}, 10, 5, 3, adv, enc)
	assert.InDelta(t, 75, got, 1e-9)
}

func deathsFor(t *testing.T, preventDeath float64) int {
	t.Helper()
	pool := party.NewPool(nil)
	w := newPlayer(t, "w", player.ClassWarrior, 5, 0)
	m := newPlayer(t, "m", player.ClassMage, 5, 0)
	c := newPlayer(t, "c", player.ClassCleric, 5, 0)
	c.SetClass(player.ClassCleric, player.Stats{PreventDeath: preventDeath})
	pt, err := pool.CreateFromMembers([]*player.Player{w, m, c})
	require.NoError(t, err)

	adv := newDef(1, "Deathtrap", 1, 10, 0, 3)
	adv.BaseSuccessRate = 0
	adv.Encounters[0].Difficulty = 100

	rng := &scriptedRoller{vals: []int{50, 10, 20, 30}}
	res := newTestRunner(t, NewWorkQueue(1), nil, rng).Resolve(WorkItem{Party: pt, Adventure: adv})
	require.Equal(t, UnsuccessfullyCompleted, res.Progress)
	assert.Equal(t, 0, res.Encounter)
	return len(res.Dead)
}

func TestDeathsNeverIncreaseWithPreventDeath(t *testing.T) {
	prev := -1
	for i, pd := range []float64{0, 5, 10, 15, 20, 30, 100} {
		n := deathsFor(t, pd)
		if i > 0 {
			assert.LessOrEqual(t, n, prev, "prevent death %v", pd)
		}
		prev = n
	}
	assert.Equal(t, 2, deathsFor(t, 0))
	assert.Equal(t, 0, deathsFor(t, 30))
}

func TestFailure_DeadMemberLosesEquippedItem(t *testing.T) {
	msgs := &recorder{}
	pool := party.NewPool(msgs)
	sword := &player.Item{ID: 1, Name: "Rusty Sword", Slot: player.SlotWeapon, ForClasses: []player.ClassType{player.ClassWarrior}}
	w := newPlayer(t, "w", player.ClassWarrior, 5, 0)
	w.AddItem(sword)
	_, err := w.Equip(sword)
	require.NoError(t, err)
	pt, err := pool.CreateSolo(w, 1)
	require.NoError(t, err)

	adv := newDef(1, "Deathtrap", 1, 10, 0, 1)
	adv.BaseSuccessRate = 0
	adv.Encounters[0].Difficulty = 100

	// encounter roll, death roll, equipment loss roll, item pick
	rng := &scriptedRoller{vals: []int{50, 0, 0, 0}}
	res := newTestRunner(t, NewWorkQueue(1), msgs, rng).Resolve(WorkItem{Party: pt, Adventure: adv})

	require.Equal(t, UnsuccessfullyCompleted, res.Progress)
	assert.Equal(t, []*player.Player{w}, res.Dead)
	assert.Same(t, sword, res.Lost[w])
	assert.False(t, w.HasItem(sword))
	assert.Equal(t, "Defeat. Failed to complete Deathtrap! w has died! w lost their Rusty Sword. ", res.Message)
	assert.Contains(t, msgs.texts(), res.Message)
}

func TestSuccess_AwardsLoot(t *testing.T) {
	pool := party.NewPool(nil)
	gem := &player.Item{ID: 9, Name: "Gem", Slot: player.SlotTrinket}
	finder := newPlayer(t, "finder", player.ClassRogue, 5, 0)
	finder.SetClass(player.ClassRogue, player.Stats{ItemFind: 100})
	pt, err := pool.CreateSolo(finder, 1)
	require.NoError(t, err)

	adv := newDef(1, "Vault", 1, 10, 0, 1)
	adv.Loot = []*player.Item{gem}

	res := newTestRunner(t, NewWorkQueue(1), nil, fixedRoller(0)).Resolve(WorkItem{Party: pt, Adventure: adv})
	require.Equal(t, SuccessfullyCompleted, res.Progress)
	assert.Equal(t, []*player.Item{gem}, res.Loot[finder])
	assert.True(t, finder.HasItem(gem))
	assert.Contains(t, res.Message, "finder has found the following items: Gem ")
}

func TestObservers_OrderAndPanicIsolation(t *testing.T) {
	pool := party.NewPool(nil)
	pt, err := pool.CreateSolo(newPlayer(t, "a", player.ClassWarrior, 5, 0), 1)
	require.NoError(t, err)
	runner := newTestRunner(t, NewWorkQueue(1), nil, fixedRoller(0))

	var calls []string
	runner.Subscribe(ObserverFuncs{
		Start:   func(*party.Party, *Definition) { calls = append(calls, "first:start") },
		Success: func(*party.Party, int, map[*player.Player][]*player.Item, string) { calls = append(calls, "first:success") },
	})
	bad := runner.Subscribe(ObserverFuncs{
		Start: func(*party.Party, *Definition) { panic("boom") },
	})
	runner.Subscribe(ObserverFuncs{
		Start:   func(*party.Party, *Definition) { calls = append(calls, "third:start") },
		Success: func(*party.Party, int, map[*player.Player][]*player.Item, string) { calls = append(calls, "third:success") },
	})

	res := runner.Resolve(WorkItem{Party: pt, Adventure: newDef(1, "Cave", 1, 10, 0, 1)})
	require.Equal(t, SuccessfullyCompleted, res.Progress)
	assert.Equal(t, []string{"first:start", "third:start", "first:success", "third:success"}, calls)

	assert.True(t, runner.Unsubscribe(bad))
	assert.False(t, runner.Unsubscribe(bad))
}

func TestRun_StopsOnCloseAndCancel(t *testing.T) {
	queue := NewWorkQueue(4)
	runner := newTestRunner(t, queue, nil, fixedRoller(0))

	pool := party.NewPool(nil)
	a := newPlayer(t, "a", player.ClassWarrior, 5, 100)
	pt, err := pool.CreateSolo(a, 1)
	require.NoError(t, err)

	var finished []Progress
	runner.Subscribe(ObserverFuncs{
		Success: func(*party.Party, int, map[*player.Player][]*player.Item, string) {
			finished = append(finished, SuccessfullyCompleted)
		},
	})
	require.NoError(t, queue.Push(WorkItem{Party: pt, Adventure: newDef(1, "Cave", 1, 10, 10, 1)}))
	queue.Close()
	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, []Progress{SuccessfullyCompleted}, finished)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, newTestRunner(t, NewWorkQueue(1), nil, fixedRoller(0)).Run(ctx))
}
