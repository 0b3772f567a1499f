package adventure

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

const (
	msgAlreadyQueued     = "You are already queued..."
	msgLevelRequirements = "You do not meet the level requirements needed to run a dungeon!"
	msgInParty           = "You are in a party, ask your party leader to queue the party."
	msgJoined            = "You have joined the group finder! The estimated waiting time is %d mins"
	msgNotQueued         = "You are not currently queued for any Adventures in the Group Finder, Use !Queue command to join Group Finder"
	msgLeftQueue         = "You have successfully left the Group Finder queue."
	msgPartyLeftQueue    = "%s has left the Group Finder queue, your party is no longer queued."
	msgWaiting           = "You have been waiting %d min(s) for the following Adventures: "

	msgAutoSync        = "Automatically Level syncing to lowest level player (%s) and finding dungeons based on this level. "
	msgPartyNoMatch    = "The party does not match the requirements for any dungeons currently available!"
	msgPartyDispatched = "Your party has joined the adventure queue for %s, which will start shortly."
	msgPartyBusy       = "Your party is already on an adventure!"
	msgPartyDupClass   = "Your party has more than one member of the same class, so it can only run adventures made for exactly %d players."
	msgDispatchFailed  = "The adventure could not be started, please queue again."

	msgIgnoredDispatched    = "Your party has joined the adventure queue for %s, which will start shortly. Maximum level requirements have been ignored, Xp is capped at the adventures maximum level (%d). "
	msgIgnoredDispatchedFor = "Your party has joined the adventure queue for %s, which will start shortly. Maximum level requirements have been ignored."
	msgIgnoredNoMatch       = "A member in your party is either too low a level or cannot afford any dungeons!"
	msgIgnoredNoMatchFor    = "A member in your party is too low a level to Queue."
)

// maxWaitSamples bounds the rolling wait history.
const maxWaitSamples = 50

// GroupFinder holds pending tickets and matches them into parties. One mutex
// guards all matchmaking state.
type GroupFinder struct {
	cfg       Config
	pool      *party.Pool
	catalog   Catalog
	queue     *WorkQueue
	messenger party.Messenger
	clock     Clock

	mu      sync.Mutex
	rng     Roller
	seq     uint64
	pending []*ticket
	waits   []time.Duration
}

func NewGroupFinder(cfg Config, pool *party.Pool, catalog Catalog, queue *WorkQueue, messenger party.Messenger, opts ...Option) (*GroupFinder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if pool == nil || catalog == nil || queue == nil {
		return nil, errors.New("group finder needs a pool, a catalog and a work queue")
	}
	o := buildOptions(cfg, opts)
	return &GroupFinder{
		cfg:       cfg,
		pool:      pool,
		catalog:   catalog,
		queue:     queue,
		messenger: messenger,
		clock:     o.clock,
		rng:       o.rng,
	}, nil
}

type notice struct {
	party *party.Party
	to    string
	text  string
}

// outbox collects the side effects of one call. Work items are pushed before
// the mutex is released so the runner sees parties in formation order;
// notices wait until after the unlock.
type outbox struct {
	items   []WorkItem
	notices []notice
}

// pushLocked hands formed parties to the runner. A party that cannot be
// handed off is released: finder parties are disbanded and each member is
// told, premade parties are told as a whole.
func (gf *GroupFinder) pushLocked(out *outbox) {
	for _, item := range out.items {
		err := gf.queue.Push(item)
		if err == nil {
			continue
		}
		pt := item.Party
		log.Printf("[GroupFinder] dispatch party %d to %s failed: %v", pt.ID, item.Adventure.Name, err)
		pt.SetBusy(false)
		if !pt.UsedGroupFinder() {
			out.notices = append(out.notices, notice{party: pt, text: msgDispatchFailed})
			continue
		}
		members := pt.Members()
		gf.pool.Disband(pt)
		for _, m := range members {
			out.notices = append(out.notices, notice{to: m.Name(), text: msgDispatchFailed})
		}
	}
}

func (gf *GroupFinder) notify(notices []notice) {
	if gf.messenger == nil {
		return
	}
	for _, n := range notices {
		if n.party != nil {
			gf.messenger.SendToParty(n.party, n.text)
		} else {
			gf.messenger.SendToIndividual(n.to, n.text)
		}
	}
}

func (gf *GroupFinder) locked(fn func(out *outbox) (string, error)) (string, error) {
	var out outbox
	gf.mu.Lock()
	reply, err := fn(&out)
	gf.pushLocked(&out)
	gf.mu.Unlock()
	gf.notify(out.notices)
	return reply, err
}

// Queue enters p for every adventure it qualifies for.
func (gf *GroupFinder) Queue(p *player.Player) string {
	reply, _ := gf.QueueFor(p, nil)
	return reply
}

// QueueFor enters p for the given adventure ids, or for every qualifying
// adventure when ids is empty. Unknown ids return ErrNotFound.
func (gf *GroupFinder) QueueFor(p *player.Player, ids []int) (string, error) {
	return gf.locked(func(out *outbox) (string, error) {
		if t := gf.ticketOfLocked(p); t != nil {
			return msgAlreadyQueued + gf.waitingTextLocked(t), nil
		}
		if _, ok := gf.pool.PartyOf(p); ok {
			return msgInParty, nil
		}
		var adventures []*Definition
		if len(ids) == 0 {
			adventures = gf.catalog.Get(soloEligible(p))
		} else {
			requested, err := resolveIDs(gf.catalog, ids)
			if err != nil {
				return "", err
			}
			adventures = filter(requested, soloEligible(p))
		}
		if len(adventures) == 0 {
			return msgLevelRequirements, nil
		}
		gf.enqueueLocked(&ticket{members: []*player.Player{p}, adventures: adventures}, out)
		return fmt.Sprintf(msgJoined, gf.averageMinutesLocked()), nil
	})
}

// QueueParty syncs pt to its lowest member if needed, then dispatches it
// directly when an adventure fits its size or queues it as one ticket.
func (gf *GroupFinder) QueueParty(pt *party.Party) string {
	reply, _ := gf.QueuePartyFor(pt, nil)
	return reply
}

// QueuePartyFor restricts QueueParty to ids and additionally requires an
// exact party size match.
func (gf *GroupFinder) QueuePartyFor(pt *party.Party, ids []int) (string, error) {
	return gf.locked(func(out *outbox) (string, error) {
		if pt == nil || pt.Disbanded() {
			return msgPartyNoMatch, nil
		}
		if pt.Busy() {
			return msgPartyBusy, nil
		}
		var requested []*Definition
		if len(ids) > 0 {
			var err error
			if requested, err = resolveIDs(gf.catalog, ids); err != nil {
				return "", err
			}
		}
		members := pt.Members()
		gf.unqueueMembersLocked(members)

		var b strings.Builder
		if !pt.IsSynced() {
			if lowest := pt.LowestLevelMember(); lowest != nil && gf.pool.LevelSync(pt, lowest.Level()) {
				fmt.Fprintf(&b, msgAutoSync, lowest.Name())
			}
		}
		level := pt.Level()
		pred := partyEligible(members, level)

		// A party holding two of a class can never be merged, so it may only
		// run an adventure sized exactly for it.
		dup := hasDuplicateClass(members)
		if len(ids) > 0 || dup {
			pred = exactSize(len(members), pred)
		}
		var adventures []*Definition
		if len(ids) == 0 {
			adventures = gf.catalog.Get(pred)
		} else {
			adventures = filter(requested, pred)
		}
		if len(adventures) == 0 {
			if dup {
				fmt.Fprintf(&b, msgPartyDupClass, len(members))
			} else {
				b.WriteString(msgPartyNoMatch)
			}
			return b.String(), nil
		}

		if sized := filter(adventures, func(d *Definition) bool { return d.PartySize == len(members) }); len(sized) > 0 {
			adv := sized[gf.rng.Intn(len(sized))]
			gf.dispatchPartyLocked(pt, adv, out)
			fmt.Fprintf(&b, msgPartyDispatched, adv.Name)
			return b.String(), nil
		}

		t := &ticket{members: members, adventures: adventures, origin: pt}
		if pt.IsSynced() {
			t.syncLevel = level
		}
		gf.enqueueLocked(t, out)
		fmt.Fprintf(&b, msgJoined, gf.averageMinutesLocked())
		return b.String(), nil
	})
}

// QueueIgnoringRequirements dispatches pt directly to a random adventure whose
// minimum level its lowest member meets and that every member affords. Class
// uniqueness is not checked.
func (gf *GroupFinder) QueueIgnoringRequirements(pt *party.Party) string {
	reply, _ := gf.queueIgnoring(pt, nil)
	return reply
}

// QueueIgnoringRequirementsFor restricts QueueIgnoringRequirements to ids.
func (gf *GroupFinder) QueueIgnoringRequirementsFor(pt *party.Party, ids []int) (string, error) {
	return gf.queueIgnoring(pt, ids)
}

func (gf *GroupFinder) queueIgnoring(pt *party.Party, ids []int) (string, error) {
	explicit := len(ids) > 0
	noMatch := msgIgnoredNoMatch
	if explicit {
		noMatch = msgIgnoredNoMatchFor
	}
	return gf.locked(func(out *outbox) (string, error) {
		if pt == nil || pt.Disbanded() {
			return noMatch, nil
		}
		if pt.Busy() {
			return msgPartyBusy, nil
		}
		var requested []*Definition
		if explicit {
			var err error
			if requested, err = resolveIDs(gf.catalog, ids); err != nil {
				return "", err
			}
		}
		members := pt.Members()
		gf.unqueueMembersLocked(members)

		pred := minimumLevelOnly(members)
		var adventures []*Definition
		if explicit {
			adventures = filter(requested, pred)
		} else {
			adventures = gf.catalog.Get(pred)
		}
		if len(adventures) == 0 {
			return noMatch, nil
		}
		adv := adventures[gf.rng.Intn(len(adventures))]
		gf.dispatchPartyLocked(pt, adv, out)
		if explicit {
			return fmt.Sprintf(msgIgnoredDispatchedFor, adv.Name), nil
		}
		return fmt.Sprintf(msgIgnoredDispatched, adv.Name, adv.MaxLevel), nil
	})
}

// UnQueue drops the whole ticket holding p. Party members are told when a
// multi-member ticket is broken up.
func (gf *GroupFinder) UnQueue(p *player.Player) string {
	reply, _ := gf.locked(func(out *outbox) (string, error) {
		t := gf.ticketOfLocked(p)
		if t == nil {
			return msgNotQueued, nil
		}
		gf.removeTicketLocked(t)
		log.Printf("[GroupFinder] ticket %d withdrawn by %s", t.seq, p.Name())
		if len(t.members) > 1 {
			if pt, ok := gf.pool.PartyOf(p); ok {
				out.notices = append(out.notices, notice{party: pt, text: fmt.Sprintf(msgPartyLeftQueue, p.Name())})
			}
		}
		return msgLeftQueue, nil
	})
	return reply
}

// Waiting reports how long p has waited and for which adventures.
func (gf *GroupFinder) Waiting(p *player.Player) string {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	t := gf.ticketOfLocked(p)
	if t == nil {
		return msgNotQueued + "."
	}
	return gf.waitingTextLocked(t)
}

func (gf *GroupFinder) IsQueued(p *player.Player) bool {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	return gf.ticketOfLocked(p) != nil
}

// Pending is the number of open tickets.
func (gf *GroupFinder) Pending() int {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	return len(gf.pending)
}

// AverageWait is the mean of recorded waits, or 0 without history.
func (gf *GroupFinder) AverageWait() time.Duration {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	return gf.averageWaitLocked()
}

// TicketInfo describes one pending ticket.
type TicketInfo struct {
	Members    []string      `json:"members"`
	Adventures []string      `json:"adventures"`
	Waiting    time.Duration `json:"waiting_ns"`
	Synced     int           `json:"synced_level,omitempty"`
}

// Tickets lists pending tickets in arrival order.
func (gf *GroupFinder) Tickets() []TicketInfo {
	gf.mu.Lock()
	defer gf.mu.Unlock()
	now := gf.clock.Now()
	out := make([]TicketInfo, 0, len(gf.pending))
	for _, t := range gf.pending {
		info := TicketInfo{Waiting: now.Sub(t.arrived), Synced: t.syncLevel}
		for _, m := range t.members {
			info.Members = append(info.Members, m.Name())
		}
		for _, a := range t.adventures {
			info.Adventures = append(info.Adventures, a.Name)
		}
		out = append(out, info)
	}
	return out
}

func (gf *GroupFinder) ticketOfLocked(p *player.Player) *ticket {
	for _, t := range gf.pending {
		if t.has(p) {
			return t
		}
	}
	return nil
}

func (gf *GroupFinder) removeTicketLocked(t *ticket) {
	for i, pt := range gf.pending {
		if pt == t {
			gf.pending = append(gf.pending[:i], gf.pending[i+1:]...)
			return
		}
	}
}

func (gf *GroupFinder) unqueueMembersLocked(members []*player.Player) {
	for _, m := range members {
		if t := gf.ticketOfLocked(m); t != nil {
			gf.removeTicketLocked(t)
		}
	}
}

func (gf *GroupFinder) waitingTextLocked(t *ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, msgWaiting, int(gf.clock.Now().Sub(t.arrived).Minutes()))
	for _, a := range t.adventures {
		b.WriteString(a.Name)
		b.WriteString(" ")
	}
	return b.String()
}

func (gf *GroupFinder) recordWaitLocked(d time.Duration) {
	if d < 0 {
		d = 0
	}
	gf.waits = append(gf.waits, d)
	if len(gf.waits) > maxWaitSamples {
		gf.waits = gf.waits[len(gf.waits)-maxWaitSamples:]
	}
}

func (gf *GroupFinder) averageWaitLocked() time.Duration {
	if len(gf.waits) == 0 {
		return 0
	}
	var total time.Duration
	for _, w := range gf.waits {
		total += w
	}
	return total / time.Duration(len(gf.waits))
}

func (gf *GroupFinder) averageMinutesLocked() int {
	return int(gf.averageWaitLocked().Minutes())
}

func (gf *GroupFinder) enqueueLocked(t *ticket, out *outbox) {
	gf.seq++
	t.seq = gf.seq
	t.arrived = gf.clock.Now()
	gf.pending = append(gf.pending, t)
	log.Printf("[GroupFinder] ticket %d queued: members=%d adventures=%d", t.seq, len(t.members), len(t.adventures))
	gf.matchLocked(out)
}

func (gf *GroupFinder) targetSize(adv *Definition) int {
	if adv.PartySize > 0 {
		return adv.PartySize
	}
	return gf.cfg.PartySizeLimit
}

// matchLocked runs the greedy matcher until it stops dispatching. Pivots are
// taken oldest first; for each pivot adventure, younger tickets that list it,
// share no class with the forming party and fit the target are merged in.
// Tickets holding two of a class never take part.
func (gf *GroupFinder) matchLocked(out *outbox) {
	for gf.matchOnceLocked(out) {
	}
}

func (gf *GroupFinder) matchOnceLocked(out *outbox) bool {
	for _, pivot := range gf.pending {
		if pivot.hasDuplicateClass() {
			continue
		}
		for _, adv := range pivot.adventures {
			target := gf.targetSize(adv)
			if len(pivot.members) > target {
				continue
			}
			group := []*ticket{pivot}
			size := len(pivot.members)
			classes := make(map[player.ClassType]bool)
			pivot.addClasses(classes)
			for _, cand := range gf.pending {
				if size == target {
					break
				}
				if cand == pivot || !cand.lists(adv) || size+len(cand.members) > target ||
					cand.hasDuplicateClass() || cand.sharesClass(classes) {
					continue
				}
				group = append(group, cand)
				size += len(cand.members)
				cand.addClasses(classes)
			}
			if size == target {
				gf.dispatchGroupLocked(group, adv, out)
				return true
			}
		}
	}
	return false
}

func (gf *GroupFinder) dispatchGroupLocked(group []*ticket, adv *Definition, out *outbox) {
	now := gf.clock.Now()
	var members []*player.Player
	syncLevel := 0
	for _, t := range group {
		gf.removeTicketLocked(t)
		gf.recordWaitLocked(now.Sub(t.arrived))
		members = append(members, t.members...)
		if t.syncLevel > 0 && (syncLevel == 0 || t.syncLevel < syncLevel) {
			syncLevel = t.syncLevel
		}
	}
	pt, err := gf.pool.CreateFromMembers(members)
	if err != nil {
		log.Printf("[GroupFinder] assemble party for %s failed: %v", adv.Name, err)
		return
	}
	if syncLevel > 0 {
		if lowest := lowestNaturalLevel(members); lowest < syncLevel {
			syncLevel = lowest
		}
		gf.pool.LevelSync(pt, syncLevel)
	}
	pt.SetBusy(true)
	out.items = append(out.items, WorkItem{Party: pt, Adventure: adv, QueuedAt: now})
	log.Printf("[GroupFinder] party %d formed for %s from %d ticket(s)", pt.ID, adv.Name, len(group))
}

func (gf *GroupFinder) dispatchPartyLocked(pt *party.Party, adv *Definition, out *outbox) {
	pt.SetBusy(true)
	out.items = append(out.items, WorkItem{Party: pt, Adventure: adv, QueuedAt: gf.clock.Now()})
	log.Printf("[GroupFinder] party %d dispatched to %s", pt.ID, adv.Name)
}
