package adventure

import (
	"github.com/MaraKorvus/lobotjr/player"
)

// Predicates capture member levels and balances up front so they can run
// under the catalog's read lock without touching player locks.

func levelAndCost(level, coins int) func(*Definition) bool {
	return func(d *Definition) bool {
		return d.Cost <= coins && d.InLevelRange(level)
	}
}

func minCoins(members []*player.Player) int {
	lowest := 0
	for i, m := range members {
		if c := m.Coins(); i == 0 || c < lowest {
			lowest = c
		}
	}
	return lowest
}

func lowestNaturalLevel(members []*player.Player) int {
	lowest := 0
	for i, m := range members {
		if l := m.Level(); i == 0 || l < lowest {
			lowest = l
		}
	}
	return lowest
}

// soloEligible: the participant affords the cost and is within the level range.
func soloEligible(p *player.Player) func(*Definition) bool {
	return levelAndCost(p.Level(), p.Coins())
}

// partyEligible: every member affords the cost and the party level is within
// the range.
func partyEligible(members []*player.Player, level int) func(*Definition) bool {
	return levelAndCost(level, minCoins(members))
}

// exactSize narrows pred to adventures built for size members.
func exactSize(size int, pred func(*Definition) bool) func(*Definition) bool {
	return func(d *Definition) bool {
		return d.PartySize == size && pred(d)
	}
}

// minimumLevelOnly skips the maximum level: the minimum must not exceed the
// lowest natural member level, and every member affords the cost.
func minimumLevelOnly(members []*player.Player) func(*Definition) bool {
	lowest := lowestNaturalLevel(members)
	coins := minCoins(members)
	return func(d *Definition) bool {
		return d.MinLevel <= lowest && d.Cost <= coins
	}
}

// resolveIDs looks up ids in catalog order, dropping repeats. An unknown id
// is an error.
func resolveIDs(c Catalog, ids []int) ([]*Definition, error) {
	seen := make(map[int]bool, len(ids))
	var out []*Definition
	for _, id := range ids {
		d, err := c.GetByID(id)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, d)
	}
	sortDefinitions(out)
	return out, nil
}

func filter(defs []*Definition, pred func(*Definition) bool) []*Definition {
	var out []*Definition
	for _, d := range defs {
		if pred(d) {
			out = append(out, d)
		}
	}
	return out
}
