package party

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/MaraKorvus/lobotjr/player"
)

var (
	ErrAlreadyInParty = errors.New("player already in a party")
	ErrNoMembers      = errors.New("party needs at least one member")
	ErrDuplicate      = errors.New("player listed twice")
)

// Pool is the only authority that creates and destroys parties.
type Pool struct {
	mu        sync.Mutex
	nextID    uint64
	parties   map[uint64]*Party
	byMember  map[*player.Player]*Party
	messenger Messenger
}

func NewPool(messenger Messenger) *Pool {
	return &Pool{
		parties:   make(map[uint64]*Party),
		byMember:  make(map[*player.Player]*Party),
		messenger: messenger,
	}
}

// CreateSolo starts a party led by p.
func (pl *Pool) CreateSolo(p *player.Player, capacity int) (*Party, error) {
	if p == nil {
		return nil, ErrNoMembers
	}
	if capacity < 1 {
		return nil, fmt.Errorf("invalid party capacity %d", capacity)
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.byMember[p]; ok {
		return nil, ErrAlreadyInParty
	}
	pt := pl.registerLocked(capacity, []*player.Player{p}, false)
	log.Printf("[Pool] party %d created by %s", pt.ID, p.Name())
	return pt, nil
}

// CreateFromMembers assembles a full party from matched players. Members are
// detached from any party they were in; a detached member of a synced party
// loses its sync effects, and emptied parties are disbanded.
func (pl *Pool) CreateFromMembers(members []*player.Player) (*Party, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	seen := make(map[*player.Player]bool, len(members))
	for _, m := range members {
		if m == nil || seen[m] {
			return nil, ErrDuplicate
		}
		seen[m] = true
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()
	for _, m := range members {
		if old, ok := pl.byMember[m]; ok {
			pl.detachLocked(old, m)
		}
	}
	pt := pl.registerLocked(len(members), members, true)
	log.Printf("[Pool] party %d assembled with %d members", pt.ID, len(members))
	return pt, nil
}

func (pl *Pool) registerLocked(capacity int, members []*player.Player, fromFinder bool) *Party {
	pl.nextID++
	pt := newParty(pl.nextID, capacity, members, fromFinder)
	pl.parties[pt.ID] = pt
	for _, m := range members {
		pl.byMember[m] = pt
	}
	return pt
}

func (pl *Pool) detachLocked(pt *Party, m *player.Player) {
	pt.mu.Lock()
	idx := pt.indexLocked(m)
	if idx >= 0 {
		pt.members = append(pt.members[:idx], pt.members[idx+1:]...)
		if pt.syncLevel > 0 {
			m.ClearEffects()
		}
		if pt.leader == m && len(pt.members) > 0 {
			pt.leader = pt.members[0]
		}
		pt.recomputeLocked()
	}
	empty := len(pt.members) == 0
	pt.mu.Unlock()
	delete(pl.byMember, m)
	if empty {
		pl.disbandLocked(pt)
	}
}

// Add joins p to pt. It fails if the party is full, busy or disbanded, or if
// p already belongs to a party. Joining clears any level sync.
func (pl *Pool) Add(pt *Party, p *player.Player) bool {
	if pt == nil || p == nil {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.byMember[p]; ok {
		return false
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.disbanded || pt.busy || len(pt.members) >= pt.capacity {
		return false
	}
	pt.removeInviteLocked(p)
	if pt.syncLevel > 0 {
		pt.unsyncLocked()
	}
	pt.members = append(pt.members, p)
	pt.recomputeLocked()
	pl.byMember[p] = pt
	return true
}

// Remove takes p out of pt and tells the remaining members.
func (pl *Pool) Remove(pt *Party, p *player.Player) bool {
	if pt == nil || p == nil {
		return false
	}
	pl.mu.Lock()
	pt.mu.RLock()
	ok := !pt.busy && pt.indexLocked(p) >= 0
	pt.mu.RUnlock()
	if !ok {
		pl.mu.Unlock()
		return false
	}
	pl.detachLocked(pt, p)
	remaining := !pt.Disbanded()
	pl.mu.Unlock()

	if remaining && pl.messenger != nil {
		pl.messenger.SendToParty(pt, fmt.Sprintf("%s has left the party!", p.Name()))
	}
	return true
}

// Disband destroys pt. Busy parties cannot be disbanded.
func (pl *Pool) Disband(pt *Party) bool {
	if pt == nil {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pt.Busy() || pt.Disbanded() {
		return false
	}
	pl.disbandLocked(pt)
	return true
}

func (pl *Pool) disbandLocked(pt *Party) {
	pt.mu.Lock()
	if pt.syncLevel > 0 {
		pt.unsyncLocked()
	}
	for _, m := range pt.members {
		if pl.byMember[m] == pt {
			delete(pl.byMember, m)
		}
	}
	pt.members = nil
	pt.invites = nil
	pt.leader = nil
	pt.disbanded = true
	pt.stats = player.Stats{}
	pt.mu.Unlock()
	delete(pl.parties, pt.ID)
	log.Printf("[Pool] party %d disbanded", pt.ID)
}

// LevelSync fixes the party level. The level must be at least 1 and may not
// exceed any member's natural level.
func (pl *Pool) LevelSync(pt *Party, level int) bool {
	if pt == nil || level < 1 {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.disbanded || len(pt.members) == 0 || level > lowestLevel(pt.members) {
		return false
	}
	if pt.syncLevel > 0 {
		pt.unsyncLocked()
	}
	for _, m := range pt.members {
		if effect := SyncEffect(m, level); !effect.IsZero() {
			m.AddEffect(effect)
		}
	}
	pt.syncLevel = level
	pt.recomputeLocked()
	return true
}

// UnsyncLevel drops the synced level and clears member sync effects.
func (pl *Pool) UnsyncLevel(pt *Party) {
	if pt == nil {
		return
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.unsyncLocked()
}

func (pt *Party) unsyncLocked() {
	if pt.syncLevel > 0 {
		for _, m := range pt.members {
			m.ClearEffects()
		}
	}
	pt.syncLevel = 0
	pt.recomputeLocked()
}

// Promote makes p the leader of pt.
func (pl *Pool) Promote(pt *Party, p *player.Player) bool {
	if pt == nil || p == nil {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.indexLocked(p) < 0 {
		return false
	}
	pt.leader = p
	return true
}

// Refresh recomputes the stats of p's party after p changed class or gear.
// It reports whether p is in a party.
func (pl *Pool) Refresh(p *player.Player) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pt, ok := pl.byMember[p]
	if !ok {
		return false
	}
	pt.mu.Lock()
	pt.recomputeLocked()
	pt.mu.Unlock()
	return true
}

// PartyOf returns the party p belongs to.
func (pl *Pool) PartyOf(p *player.Player) (*Party, bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pt, ok := pl.byMember[p]
	return pt, ok
}

// All returns live parties ordered by id.
func (pl *Pool) All() []*Party {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]*Party, 0, len(pl.parties))
	for _, pt := range pl.parties {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Invite records a pending invite. It fails if p is already in a party, is
// already invited, or the party is full.
func (pl *Pool) Invite(pt *Party, p *player.Player) bool {
	if pt == nil || p == nil {
		return false
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.byMember[p]; ok {
		return false
	}
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if pt.disbanded || len(pt.members) >= pt.capacity {
		return false
	}
	for _, inv := range pt.invites {
		if inv == p {
			return false
		}
	}
	pt.invites = append(pt.invites, p)
	return true
}

// HasInvite reports whether any party is waiting on p.
func (pl *Pool) HasInvite(p *player.Player) bool {
	return pl.invitingParty(p) != nil
}

// AcceptInvite joins p to the first party that invited it.
func (pl *Pool) AcceptInvite(p *player.Player) (*Party, bool) {
	pt := pl.invitingParty(p)
	if pt == nil {
		return nil, false
	}
	if !pl.Add(pt, p) {
		pl.mu.Lock()
		pt.mu.Lock()
		pt.removeInviteLocked(p)
		pt.mu.Unlock()
		pl.mu.Unlock()
		return pt, false
	}
	return pt, true
}

// DeclineInvite drops p's invite and tells the party leader.
func (pl *Pool) DeclineInvite(p *player.Player) bool {
	pt := pl.invitingParty(p)
	if pt == nil {
		return false
	}
	pl.mu.Lock()
	pt.mu.Lock()
	removed := pt.removeInviteLocked(p)
	leader := pt.leader
	pt.mu.Unlock()
	pl.mu.Unlock()
	if removed && leader != nil && pl.messenger != nil {
		pl.messenger.SendToIndividual(leader.Name(), fmt.Sprintf("%s has declined the invite", p.Name()))
	}
	return removed
}

func (pl *Pool) invitingParty(p *player.Player) *Party {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	ids := make([]uint64, 0, len(pl.parties))
	for id := range pl.parties {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		pt := pl.parties[id]
		pt.mu.RLock()
		invited := false
		for _, inv := range pt.invites {
			if inv == p {
				invited = true
				break
			}
		}
		pt.mu.RUnlock()
		if invited {
			return pt
		}
	}
	return nil
}

func (pt *Party) removeInviteLocked(p *player.Player) bool {
	for i, inv := range pt.invites {
		if inv == p {
			pt.invites = append(pt.invites[:i], pt.invites[i+1:]...)
			return true
		}
	}
	return false
}
