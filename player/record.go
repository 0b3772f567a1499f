package player

import (
	"fmt"
	"time"
)

// Record is the persisted shape of a player. Items are stored by id and
// resolved against an ItemLookup on restore.
type Record struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Class                ClassType      `json:"class"`
	XP                   int            `json:"xp"`
	LevelCap             int            `json:"level_cap"`
	Coins                int            `json:"coins"`
	Items                []int64        `json:"items"`
	Equipped             map[Slot]int64 `json:"equipped"`
	LastDailyGroupFinder time.Time      `json:"last_daily_group_finder"`
}

// Snapshot captures the persistent state. Status effects are transient and
// not included.
func (p *Player) Snapshot() Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec := Record{
		ID:                   p.id,
		Name:                 p.name,
		Class:                p.class,
		XP:                   p.xp,
		LevelCap:             p.levelCap,
		Coins:                p.coins,
		Items:                make([]int64, 0, len(p.items)),
		Equipped:             make(map[Slot]int64, len(p.equipped)),
		LastDailyGroupFinder: p.lastDailyGroupFinder,
	}
	for _, it := range p.items {
		rec.Items = append(rec.Items, it.ID)
	}
	for slot, it := range p.equipped {
		rec.Equipped[slot] = it.ID
	}
	return rec
}

// FromRecord rebuilds a player. base supplies class stats; items resolves ids.
// An unknown item id is an error: the record and the content are out of sync.
func FromRecord(rec Record, base Stats, items ItemLookup) (*Player, error) {
	p := New(rec.ID, rec.Name, rec.LevelCap)
	p.class = rec.Class
	p.base = base
	if rec.XP > p.xp {
		p.xp = rec.XP
	}
	if limit := XPForLevel(p.levelCap); p.xp > limit {
		p.xp = limit
	}
	p.coins = rec.Coins
	p.lastDailyGroupFinder = rec.LastDailyGroupFinder
	for _, id := range rec.Items {
		it, ok := lookupItem(items, id)
		if !ok {
			return nil, fmt.Errorf("player %s: unknown item %d", rec.Name, id)
		}
		p.items = append(p.items, it)
	}
	for slot, id := range rec.Equipped {
		it, ok := lookupItem(items, id)
		if !ok {
			return nil, fmt.Errorf("player %s: unknown equipped item %d", rec.Name, id)
		}
		p.equipped[slot] = it
	}
	return p, nil
}

func lookupItem(items ItemLookup, id int64) (*Item, bool) {
	if items == nil {
		return nil, false
	}
	return items.Item(id)
}
