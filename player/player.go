package player

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Player is a chat participant. Numeric state is guarded so the group finder
// can read levels and balances while the runner applies rewards.
type Player struct {
	mu sync.RWMutex

	id       string
	name     string
	class    ClassType
	base     Stats
	xp       int
	levelCap int
	coins    int

	items    []*Item
	equipped map[Slot]*Item
	effects  []Stats

	lastDailyGroupFinder time.Time
}

// New creates a level 1 Deprived player with no coins.
func New(id, name string, levelCap int) *Player {
	if levelCap <= 0 {
		levelCap = DefaultLevelCap
	}
	return &Player{
		id:       id,
		name:     strings.TrimSpace(name),
		class:    ClassDeprived,
		xp:       XPForLevel(1),
		levelCap: levelCap,
		equipped: make(map[Slot]*Item),
	}
}

// NormalizeName is the lookup key used for player names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (p *Player) ID() string   { return p.id }
func (p *Player) Name() string { return p.name }
func (p *Player) Key() string  { return NormalizeName(p.name) }

func (p *Player) Class() ClassType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.class
}

// SetClass changes the class and its base stats.
func (p *Player) SetClass(c ClassType, base Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.class = c
	p.base = base
}

// Level is the natural level derived from xp. Level sync never changes it.
func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return LevelForXP(p.xp)
}

func (p *Player) XP() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.xp
}

func (p *Player) LevelCap() int {
	return p.levelCap
}

// AddXP adds (or removes) xp, capped at the level cap and floored at the
// level 1 threshold. It returns the level before and after.
func (p *Player) AddXP(xp int) (before, after int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	before = LevelForXP(p.xp)
	p.xp += xp
	if limit := XPForLevel(p.levelCap); p.xp > limit {
		p.xp = limit
	}
	if floor := XPForLevel(1); p.xp < floor {
		p.xp = floor
	}
	return before, LevelForXP(p.xp)
}

func (p *Player) Coins() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.coins
}

func (p *Player) AddCoins(coins int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coins += coins
}

func (p *Player) CanAfford(cost int) bool {
	return cost <= p.Coins()
}

// AddItem puts item into the inventory.
func (p *Player) AddItem(item *Item) {
	if item == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, item)
}

// RemoveItem discards one copy of item, unequipping it first if worn. It
// reports whether the player held the item.
func (p *Player) RemoveItem(item *Item) bool {
	if item == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for slot, eq := range p.equipped {
		if eq == item {
			delete(p.equipped, slot)
			return true
		}
	}
	for i, it := range p.items {
		if it == item {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return true
		}
	}
	return false
}

// HasItem reports whether item is in the inventory or equipped.
func (p *Player) HasItem(item *Item) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, eq := range p.equipped {
		if eq == item {
			return true
		}
	}
	for _, it := range p.items {
		if it == item {
			return true
		}
	}
	return false
}

// Equip moves item from the inventory into its slot. The previously worn item,
// if any, goes back to the inventory and is returned.
func (p *Player) Equip(item *Item) (*Item, error) {
	if item == nil || item.Slot == SlotNone {
		return nil, fmt.Errorf("item cannot be equipped")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !item.CanBeEquippedBy(p.class) {
		return nil, fmt.Errorf("%s cannot equip %s", p.class, item.Name)
	}
	idx := -1
	for i, it := range p.items {
		if it == item {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s is not in the inventory", item.Name)
	}
	p.items = append(p.items[:idx], p.items[idx+1:]...)
	prev := p.equipped[item.Slot]
	p.equipped[item.Slot] = item
	if prev != nil {
		p.items = append(p.items, prev)
	}
	return prev, nil
}

// Unequip moves the item worn in slot back to the inventory. It returns nil
// when the slot is empty.
func (p *Player) Unequip(slot Slot) *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	item := p.equipped[slot]
	if item == nil {
		return nil
	}
	delete(p.equipped, slot)
	p.items = append(p.items, item)
	return item
}

// Equipped returns the item worn in slot, or nil.
func (p *Player) Equipped(slot Slot) *Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equipped[slot]
}

// Items returns a copy of the unequipped inventory.
func (p *Player) Items() []*Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Item(nil), p.items...)
}

// EquippedItems returns worn items ordered by slot.
func (p *Player) EquippedItems() []*Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equippedLocked()
}

func (p *Player) equippedLocked() []*Item {
	slots := make([]Slot, 0, len(p.equipped))
	for s := range p.equipped {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	out := make([]*Item, 0, len(slots))
	for _, s := range slots {
		out = append(out, p.equipped[s])
	}
	return out
}

// Stats is class base + equipped items + status effects.
func (p *Player) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	total := p.base
	for _, it := range p.equipped {
		total = total.Add(it.Stats)
	}
	for _, e := range p.effects {
		total = total.Add(e)
	}
	return total
}

// AddEffect attaches a status effect such as a level sync adjustment.
func (p *Player) AddEffect(effect Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects = append(p.effects, effect)
}

func (p *Player) ClearEffects() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects = nil
}

func (p *Player) EffectCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.effects)
}

func (p *Player) LastDailyGroupFinder() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastDailyGroupFinder
}

func (p *Player) SetLastDailyGroupFinder(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastDailyGroupFinder = t
}
