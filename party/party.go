package party

import (
	"sync"

	"github.com/MaraKorvus/lobotjr/player"
)

// Messenger is the send-message capability provided by the chat transport.
// Delivery is fire-and-forget.
type Messenger interface {
	SendToParty(p *Party, text string)
	SendToIndividual(name, text string)
}

// Party is a group of players created and destroyed by a Pool. Membership is
// only changed through the pool; readers here are safe for concurrent use.
type Party struct {
	ID uint64

	mu              sync.RWMutex
	members         []*player.Player
	leader          *player.Player
	capacity        int
	invites         []*player.Player
	syncLevel       int
	stats           player.Stats
	usedGroupFinder bool
	busy            bool
	disbanded       bool
}

func newParty(id uint64, capacity int, members []*player.Player, fromFinder bool) *Party {
	p := &Party{
		ID:              id,
		capacity:        capacity,
		members:         append([]*player.Player(nil), members...),
		usedGroupFinder: fromFinder,
	}
	if len(p.members) > 0 {
		p.leader = p.members[0]
	}
	p.recomputeLocked()
	return p
}

// Members returns the members in join order.
func (p *Party) Members() []*player.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*player.Player(nil), p.members...)
}

func (p *Party) Leader() *player.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader
}

func (p *Party) IsLeader(pl *player.Player) bool {
	return pl != nil && p.Leader() == pl
}

func (p *Party) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}

func (p *Party) Capacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity
}

// IsReady reports whether the party is full.
func (p *Party) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members) == p.capacity
}

func (p *Party) Has(pl *player.Player) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexLocked(pl) >= 0
}

// Level is the synced level, or the lowest natural member level.
func (p *Party) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.syncLevel > 0 {
		return p.syncLevel
	}
	return lowestLevel(p.members)
}

func (p *Party) IsSynced() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.syncLevel > 0
}

// Stats are the aggregate bonuses as of the last membership or sync change.
func (p *Party) Stats() player.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// UsedGroupFinder reports whether the matcher assembled this party.
func (p *Party) UsedGroupFinder() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usedGroupFinder
}

// Busy is true between dispatch and the end of the adventure run.
func (p *Party) Busy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.busy
}

// SetBusy is called by the group finder on dispatch and by the runner once
// the run reaches a terminal state.
func (p *Party) SetBusy(busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = busy
}

func (p *Party) Disbanded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.disbanded
}

func (p *Party) PendingInvites() []*player.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*player.Player(nil), p.invites...)
}

// LowestLevelMember returns the member with the lowest natural level, first
// in join order on ties.
func (p *Party) LowestLevelMember() *player.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var lowest *player.Player
	for _, m := range p.members {
		if lowest == nil || m.Level() < lowest.Level() {
			lowest = m
		}
	}
	return lowest
}

// Classes returns the member class types in join order.
func (p *Party) Classes() []player.ClassType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]player.ClassType, 0, len(p.members))
	for _, m := range p.members {
		out = append(out, m.Class())
	}
	return out
}

func (p *Party) indexLocked(pl *player.Player) int {
	for i, m := range p.members {
		if m == pl {
			return i
		}
	}
	return -1
}

// recomputeLocked sums member stats, halving any member whose class type was
// already counted earlier in join order.
func (p *Party) recomputeLocked() {
	var total player.Stats
	seen := make(map[player.ClassType]bool, len(p.members))
	for _, m := range p.members {
		s := m.Stats()
		c := m.Class()
		if seen[c] {
			s = s.Halve()
		}
		seen[c] = true
		total = total.Add(s)
	}
	p.stats = total
}

func lowestLevel(members []*player.Player) int {
	level := 0
	for _, m := range members {
		if l := m.Level(); level == 0 || l < level {
			level = l
		}
	}
	return level
}
