package adventure

import (
	"time"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

// ticket is one pending queue entry: a participant or a partial party.
type ticket struct {
	seq        uint64
	arrived    time.Time
	members    []*player.Player
	adventures []*Definition
	// origin is the premade party the ticket came from, if any.
	origin    *party.Party
	syncLevel int
}

func (t *ticket) has(p *player.Player) bool {
	for _, m := range t.members {
		if m == p {
			return true
		}
	}
	return false
}

func (t *ticket) lists(adv *Definition) bool {
	for _, a := range t.adventures {
		if a == adv {
			return true
		}
	}
	return false
}

func (t *ticket) sharesClass(classes map[player.ClassType]bool) bool {
	for _, m := range t.members {
		if classes[m.Class()] {
			return true
		}
	}
	return false
}

func (t *ticket) addClasses(classes map[player.ClassType]bool) {
	for _, m := range t.members {
		classes[m.Class()] = true
	}
}

func (t *ticket) hasDuplicateClass() bool {
	return hasDuplicateClass(t.members)
}

func hasDuplicateClass(members []*player.Player) bool {
	seen := make(map[player.ClassType]bool, len(members))
	for _, m := range members {
		c := m.Class()
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}
