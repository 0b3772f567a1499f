package lobby

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/roster"
	"github.com/MaraKorvus/lobotjr/content"
	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

const testContent = `
items:
  - {id: 1, name: Rusty Sword, description: Pitted, slot: weapon, rarity: 1, classes: [warrior], stats: {success_chance: 2}}
  - {id: 2, name: Iron Sword, slot: weapon, rarity: 1, classes: [warrior], stats: {success_chance: 4}}
  - {id: 3, name: Wand, slot: weapon, rarity: 1, classes: [mage]}
classes:
  - {name: warrior, stats: {success_chance: 10}}
  - {name: mage, stats: {success_chance: 10}}
adventures:
  - {id: 1, name: Cellar, min_level: 1, max_level: 5, cost: 0, party_size: 2, base_success_rate: 50, encounters: [{text: rats}]}
`

type recordingMessenger struct {
	mu       sync.Mutex
	whispers map[string][]string
	party    []string
}

func (m *recordingMessenger) SendToParty(pt *party.Party, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.party = append(m.party, text)
}

func (m *recordingMessenger) SendToIndividual(name, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whispers[name] = append(m.whispers[name], text)
}

func (m *recordingMessenger) last(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.whispers[name]
	if len(w) == 0 {
		return ""
	}
	return w[len(w)-1]
}

func (m *recordingMessenger) lastParty() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.party) == 0 {
		return ""
	}
	return m.party[len(m.party)-1]
}

type harness struct {
	lobby  *Lobby
	roster *roster.Roster
	pool   *party.Pool
	finder *adventure.GroupFinder
	queue  *adventure.WorkQueue
	msgs   *recordingMessenger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := content.Parse([]byte(testContent))
	require.NoError(t, err)
	catalog, err := c.Catalog()
	require.NoError(t, err)

	msgs := &recordingMessenger{whispers: make(map[string][]string)}
	r := roster.New(roster.NewMemoryStore(), c.Items, c, player.DefaultLevelCap)
	pool := party.NewPool(msgs)
	queue := adventure.NewWorkQueue(4)
	cfg := adventure.DefaultConfig()
	cfg.Seed = 1
	finder, err := adventure.NewGroupFinder(cfg, pool, catalog, queue, msgs)
	require.NoError(t, err)

	return &harness{
		lobby:  New(Config{PartySizeLimit: 3, ClassChoiceLevel: 3}, r, pool, finder, msgs),
		roster: r,
		pool:   pool,
		finder: finder,
		queue:  queue,
		msgs:   msgs,
	}
}

func (h *harness) player(t *testing.T, name string) *player.Player {
	t.Helper()
	p, err := h.roster.GetOrCreate(name)
	require.NoError(t, err)
	return p
}

func (h *harness) premade(t *testing.T, leader, member string) *party.Party {
	t.Helper()
	h.player(t, member)
	h.lobby.HandleWhisper(leader, "!createparty")
	h.lobby.HandleWhisper(leader, "!add "+member)
	h.lobby.HandleWhisper(member, "!party accept")
	pt, ok := h.pool.PartyOf(h.player(t, leader))
	require.True(t, ok)
	require.Equal(t, 2, pt.Size())
	return pt
}

func TestLobby_PartyLifecycle(t *testing.T) {
	h := newHarness(t)

	h.lobby.HandleWhisper("Alice", "!createparty")
	assert.Equal(t, fmt.Sprintf(msgPartyCreated, 2), h.msgs.last("Alice"))
	h.lobby.HandleWhisper("Alice", "!createparty")
	assert.Equal(t, msgAlreadyInParty, h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!add Bob")
	assert.Equal(t, "Bob user could not be found!", h.msgs.last("Alice"))

	bob := h.player(t, "Bob")
	h.lobby.HandleWhisper("Bob", "!party accept")
	assert.Equal(t, msgNoInvite, h.msgs.last("Bob"))

	h.lobby.HandleWhisper("Alice", "!add bob")
	assert.Equal(t, fmt.Sprintf(msgInvited, "Alice"), h.msgs.last("Bob"))
	assert.Equal(t, "You have invited Bob to your party!", h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Bob", "!party accept")
	assert.Equal(t, "Bob has joined the party", h.msgs.lastParty())
	pt, ok := h.pool.PartyOf(bob)
	require.True(t, ok)
	assert.Equal(t, 2, pt.Size())

	h.lobby.HandleWhisper("Bob", "!queue")
	assert.Equal(t, msgNotLeaderQueue, h.msgs.last("Bob"))
	h.lobby.HandleWhisper("Bob", "!add Alice")
	assert.Equal(t, "You have to be in a party and be the party leader to use !add command!", h.msgs.last("Bob"))

	h.player(t, "Carol")
	h.lobby.HandleWhisper("Alice", "!kick Carol")
	assert.Equal(t, "You cannot kick Carol as they are not in your party!", h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!promote Bob")
	assert.Equal(t, msgPromoted, h.msgs.last("Bob"))
	assert.Equal(t, "You have promoted Bob to leader of the party!", h.msgs.last("Alice"))
	assert.True(t, pt.IsLeader(bob))

	h.lobby.HandleWhisper("Bob", "!kick Alice")
	assert.Equal(t, msgKicked, h.msgs.last("Alice"))
	assert.Equal(t, "You have kicked Alice from the party!", h.msgs.last("Bob"))
	assert.Equal(t, "Alice has left the party!", h.msgs.lastParty())
	assert.Equal(t, []*player.Player{bob}, pt.Members())

	h.lobby.HandleWhisper("Alice", "!leaveparty")
	assert.Equal(t, msgNotInParty, h.msgs.last("Alice"))
	h.lobby.HandleWhisper("Bob", "!leaveparty")
	assert.Equal(t, msgLeftParty, h.msgs.last("Bob"))
	assert.True(t, pt.Disbanded())
}

func TestLobby_DeclineInvite(t *testing.T) {
	h := newHarness(t)
	h.player(t, "Bob")
	h.lobby.HandleWhisper("Alice", "!createparty")
	h.lobby.HandleWhisper("Alice", "!add Bob")
	h.lobby.HandleWhisper("Bob", "!party decline")
	assert.Equal(t, msgDeclined, h.msgs.last("Bob"))
	assert.Equal(t, "Bob has declined the invite", h.msgs.last("Alice"))
	h.lobby.HandleWhisper("Bob", "!party decline")
	assert.Equal(t, msgNoInvite, h.msgs.last("Bob"))
}

func TestLobby_LeaderQueuesPremadeParty(t *testing.T) {
	h := newHarness(t)
	pt := h.premade(t, "Alice", "Bob")

	h.lobby.HandleWhisper("Alice", "!queue 7")
	assert.Equal(t, msgUnknownAdv, h.msgs.last("Alice"))
	h.lobby.HandleWhisper("Alice", "!queue one")
	assert.Equal(t, msgBadIDs, h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!queue 1")
	assert.Contains(t, h.msgs.lastParty(), "Your party has joined the adventure queue for Cellar")
	assert.Equal(t, 1, h.queue.Len())
	assert.True(t, pt.Busy())

	h.lobby.HandleWhisper("Bob", "!leaveparty")
	assert.Equal(t, msgPartyAdventure, h.msgs.last("Bob"))
	assert.True(t, pt.Has(h.player(t, "Bob")))
}

func TestLobby_SoloQueueAndCreateParty(t *testing.T) {
	h := newHarness(t)
	alice := h.player(t, "Alice")

	h.lobby.HandleWhisper("Alice", "!queue")
	assert.Contains(t, h.msgs.last("Alice"), "You have joined the group finder!")
	assert.True(t, h.finder.IsQueued(alice))

	h.lobby.HandleWhisper("Alice", "!queuetime")
	assert.Contains(t, h.msgs.last("Alice"), "Cellar")

	h.lobby.HandleWhisper("Alice", "!createparty")
	assert.False(t, h.finder.IsQueued(alice))
	_, ok := h.pool.PartyOf(alice)
	assert.True(t, ok)

	h.lobby.HandleWhisper("Alice", "!leavequeue")
	assert.Contains(t, h.msgs.last("Alice"), "You are not currently queued")
}

func TestLobby_ClassChoice(t *testing.T) {
	h := newHarness(t)
	alice := h.player(t, "Alice")

	h.lobby.HandleWhisper("Alice", "!class mage")
	assert.Equal(t, "You must be level 3 to choose a class!", h.msgs.last("Alice"))

	alice.AddXP(player.XPForLevel(3))
	h.lobby.HandleWhisper("Alice", "!class wizard")
	assert.Equal(t, fmt.Sprintf(msgClassUnknown, "wizard"), h.msgs.last("Alice"))
	h.lobby.HandleWhisper("Alice", "!class deprived")
	assert.Equal(t, fmt.Sprintf(msgClassUnknown, "deprived"), h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!class MAGE")
	assert.Equal(t, "You have chosen the path of the Mage!", h.msgs.last("Alice"))
	assert.Equal(t, player.ClassMage, alice.Class())
	assert.Equal(t, 10.0, alice.Stats().SuccessChance)

	h.lobby.HandleWhisper("Alice", "!class warrior")
	assert.Equal(t, "You are already a Mage!", h.msgs.last("Alice"))
}

func TestLobby_ReleasesPartiesAfterRun(t *testing.T) {
	h := newHarness(t)
	cellar := &adventure.Definition{ID: 1, Name: "Cellar"}

	premade := h.premade(t, "Alice", "Bob")
	require.True(t, h.pool.LevelSync(premade, 1))
	h.lobby.OnStart(premade, cellar)
	h.lobby.OnFailure(premade, 0, nil, nil, "lost")
	assert.False(t, premade.Disbanded())
	assert.False(t, premade.IsSynced())

	carol := h.player(t, "Carol")
	dave := h.player(t, "Dave")
	require.NoError(t, h.roster.SetClass(dave, player.ClassWarrior))
	found, err := h.pool.CreateFromMembers([]*player.Player{carol, dave})
	require.NoError(t, err)

	h.lobby.OnStart(found, cellar)
	carol.AddXP(player.XPForLevel(3))
	dave.AddXP(player.XPForLevel(3))
	h.lobby.OnSuccess(found, 1, nil, "won")

	assert.Equal(t, msgClassNotice, h.msgs.last("Carol"))
	assert.Empty(t, h.msgs.last("Dave"))
	assert.Equal(t, msgFinderDisbanded, h.msgs.lastParty())
	assert.True(t, found.Disbanded())
	_, ok := h.pool.PartyOf(carol)
	assert.False(t, ok)
}

func TestLobby_IgnoresChatterAndHintsUnknownCommands(t *testing.T) {
	h := newHarness(t)
	h.lobby.HandleWhisper("Alice", "hello there")
	assert.Empty(t, h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!dance")
	assert.Equal(t, "Unknown command !dance. Use !help to see the available commands.", h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!stats")
	assert.Equal(t, "You are a level 1 Deprived with 54 xp (28 xp to next level) and 0 coins.", h.msgs.last("Alice"))

	h.lobby.HandleWhisper("Alice", "!start")
	assert.Equal(t, "You have to be in a party and be the party leader to use !start command!", h.msgs.last("Alice"))
}

func TestLobby_InventoryAndEquipment(t *testing.T) {
	h := newHarness(t)
	dave := h.player(t, "Dave")
	carol := h.player(t, "Carol")
	require.NoError(t, h.roster.SetClass(dave, player.ClassWarrior))
	require.NoError(t, h.roster.SetClass(carol, player.ClassMage))

	h.lobby.HandleWhisper("Dave", "!inventory")
	assert.Equal(t, msgNoItems+fmt.Sprintf(msgInventoryWorn, "nothing"), h.msgs.last("Dave"))

	for _, id := range []int64{1, 2, 3} {
		item, ok := h.roster.Item(id)
		require.True(t, ok)
		dave.AddItem(item)
	}
	h.lobby.HandleWhisper("Dave", "!item 1")
	assert.Equal(t, "Rusty Sword (Weapon) Pitted Bonus: 2 Success Chance 0 Item Find 0 Coin Bonus 0 Xp Bonus 0 Prevent Death Bonus For: Warrior", h.msgs.last("Dave"))
	h.lobby.HandleWhisper("Dave", "!item 99")
	assert.Equal(t, msgNoItem, h.msgs.last("Dave"))
	h.lobby.HandleWhisper("Dave", "!item sword")
	assert.Equal(t, msgNoItem, h.msgs.last("Dave"))

	pt, err := h.pool.CreateFromMembers([]*player.Player{dave, carol})
	require.NoError(t, err)
	require.Equal(t, 20.0, pt.Stats().SuccessChance)

	h.lobby.HandleWhisper("Dave", "!equip 3")
	assert.Equal(t, "Wand cannot be equipped by a Warrior.", h.msgs.last("Dave"))
	h.lobby.HandleWhisper("Carol", "!equip 1")
	assert.Equal(t, "You cannot equip Rusty Sword as you do not have this item.", h.msgs.last("Carol"))

	h.lobby.HandleWhisper("Dave", "!equip 1")
	assert.Equal(t, "Rusty Sword has been equipped in the Weapon slot.", h.msgs.last("Dave"))
	assert.Equal(t, 22.0, pt.Stats().SuccessChance)
	h.lobby.HandleWhisper("Dave", "!equip 1")
	assert.Equal(t, "Rusty Sword is already equipped!", h.msgs.last("Dave"))

	h.lobby.HandleWhisper("Dave", "!equip 2")
	assert.Equal(t, "Iron Sword has been equipped in the Weapon slot. Rusty Sword has been unequipped and returned to your inventory.", h.msgs.last("Dave"))
	assert.Equal(t, 24.0, pt.Stats().SuccessChance)

	h.lobby.HandleWhisper("Dave", "!inventory")
	assert.Equal(t, "You currently have these items in your inventory: 3 Wand, 1 Rusty Sword and you have these items equipped: Weapon: 2 Iron Sword", h.msgs.last("Dave"))

	h.lobby.HandleWhisper("Dave", "!unequip 1")
	assert.Equal(t, msgSlotEmpty, h.msgs.last("Dave"))
	h.lobby.HandleWhisper("Dave", "!unequip armor")
	assert.Equal(t, msgSlotEmpty, h.msgs.last("Dave"))
	h.lobby.HandleWhisper("Dave", "!unequip weapon")
	assert.Equal(t, "Iron Sword has been unequipped from the Weapon slot.", h.msgs.last("Dave"))
	assert.Equal(t, 20.0, pt.Stats().SuccessChance)

	pt.SetBusy(true)
	h.lobby.HandleWhisper("Dave", "!equip 1")
	assert.Equal(t, msgPartyAdventure, h.msgs.last("Dave"))
	assert.Nil(t, dave.Equipped(player.SlotWeapon))
	assert.Equal(t, 20.0, pt.Stats().SuccessChance)
}

func TestLobby_ClassChangeRefreshesPartyStats(t *testing.T) {
	h := newHarness(t)
	pt := h.premade(t, "Alice", "Bob")
	alice := h.player(t, "Alice")
	bob := h.player(t, "Bob")
	alice.AddXP(player.XPForLevel(3))
	bob.AddXP(player.XPForLevel(3))
	require.Equal(t, 0.0, pt.Stats().SuccessChance)

	h.lobby.HandleWhisper("Alice", "!class mage")
	assert.Equal(t, "You have chosen the path of the Mage!", h.msgs.last("Alice"))
	assert.Equal(t, 10.0, pt.Stats().SuccessChance)

	pt.SetBusy(true)
	h.lobby.HandleWhisper("Bob", "!class warrior")
	assert.Equal(t, msgPartyAdventure, h.msgs.last("Bob"))
	assert.Equal(t, player.ClassDeprived, bob.Class())
	assert.Equal(t, 10.0, pt.Stats().SuccessChance)
}

func TestLobby_DailyBonus(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.lobby.now = func() time.Time { return now }
	cellar := &adventure.Definition{ID: 1, Name: "Cellar"}

	carol := h.player(t, "Carol")
	dave := h.player(t, "Dave")
	require.NoError(t, h.roster.SetClass(dave, player.ClassWarrior))
	dave.SetLastDailyGroupFinder(now.Add(-time.Hour))

	h.lobby.HandleWhisper("Carol", "!daily")
	assert.Equal(t, msgDailyReady, h.msgs.last("Carol"))

	found, err := h.pool.CreateFromMembers([]*player.Player{carol, dave})
	require.NoError(t, err)
	h.lobby.OnStart(found, cellar)
	for _, m := range []*player.Player{carol, dave} {
		m.AddXP(10)
		m.AddCoins(5)
	}
	carolXP, daveXP := carol.XP(), dave.XP()
	h.lobby.OnSuccess(found, 1, nil, "won")

	assert.Equal(t, fmt.Sprintf(msgDailyBonus, 10, 5), h.msgs.last("Carol"))
	assert.Equal(t, carolXP+10, carol.XP())
	assert.Equal(t, 10, carol.Coins())
	assert.Equal(t, now, carol.LastDailyGroupFinder())
	assert.Equal(t, daveXP, dave.XP())
	assert.Equal(t, 5, dave.Coins())

	now = now.Add(90 * time.Minute)
	h.lobby.HandleWhisper("Carol", "!daily")
	assert.Equal(t, "22:30 until your next daily bonus!", h.msgs.last("Carol"))

	premade := h.premade(t, "Alice", "Bob")
	alice := h.player(t, "Alice")
	h.lobby.OnStart(premade, cellar)
	alice.AddCoins(5)
	h.lobby.OnSuccess(premade, 1, nil, "won")
	assert.Equal(t, 5, alice.Coins())
	assert.True(t, alice.LastDailyGroupFinder().IsZero())
}
