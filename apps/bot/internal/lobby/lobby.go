// Package lobby turns whisper lines into party, group finder and character
// commands.
package lobby

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/roster"
	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

const (
	msgClassNotice     = "ATTENTION! You are high enough level to pick a class! You can choose your class by using !class [class name]. The choice of classes are: Warrior, Mage, Rogue, Ranger, Cleric"
	msgClassTooLow     = "You must be level %d to choose a class!"
	msgClassChosen     = "You have chosen the path of the %s!"
	msgClassAlready    = "You are already a %s!"
	msgClassUnknown    = "%s is not a class. The choice of classes are: Warrior, Mage, Rogue, Ranger, Cleric"
	msgClassCurrent    = "You are a %s. The choice of classes are: Warrior, Mage, Rogue, Ranger, Cleric"
	msgNotLeaderQueue  = "You need to be the party leader to queue the party for dungeons."
	msgAlreadyInParty  = "You are already in a party! Use !Leave command to leave then create a new party."
	msgPartyCreated    = "Party created you can invite %d other members using !add <user>"
	msgLeaderOnly      = "You have to be in a party and be the party leader to use %s command!"
	msgPartyFull       = "You are unable to send an invite with a full party!"
	msgUnknownUser     = "%s user could not be found!"
	msgTargetInParty   = "%s is already in a party!"
	msgAlreadyInvited  = "%s already has an invite to your party!"
	msgInvited         = "You have been invited to a party by %s. Use '!party accept' or '!party decline' to accept or decline the invite respectively"
	msgInviteSent      = "You have invited %s to your party!"
	msgCannotKick      = "You cannot kick %s as they are not in your party!"
	msgKicked          = "You have been kicked from the party!"
	msgKickedTarget    = "You have kicked %s from the party!"
	msgCannotPromote   = "You cannot promote %s as they are not in your party!"
	msgPromoted        = "You have been promoted to leader of the party!"
	msgPromotedTarget  = "You have promoted %s to leader of the party!"
	msgNoInvite        = "You do not have an outstanding invite to a party!"
	msgJoinedParty     = "%s has joined the party"
	msgJoinFailed      = "You were unable to join the party! The party may have reached max capacity!"
	msgDeclined        = "You have declined the party invite!"
	msgLeftParty       = "You have left the party!"
	msgNotInParty      = "You are not in a party!"
	msgPartyAdventure  = "Your party is on an adventure, wait until it returns!"
	msgFinderDisbanded = "Your group finder party has disbanded. Use !queue to find another group."
	msgUnknownAdv      = "One or more of the requested adventures do not exist."
	msgBadIDs          = "Adventure ids must be numbers, e.g. !queue 1,2"
	msgUnknownCommand  = "Unknown command %s. Use !help to see the available commands."
	msgUsage           = "Usage: %s"
	msgHelp            = "Commands: !queue [ids], !leavequeue, !queuetime, !createparty, !add <user>, !kick <user>, !promote <user>, !leaveparty, !party accept|decline, !partydata, !start [ids], !class [name], !stats, !inventory, !item <id>, !equip <id>, !unequip <id|slot>, !daily"

	msgNoItems         = "You have no items in your inventory!"
	msgInventory       = "You currently have these items in your inventory: %s"
	msgInventoryWorn   = " and you have these items equipped: %s"
	msgItemInfo        = "%s (%s) %s Bonus: %g Success Chance %d Item Find %d Coin Bonus %d Xp Bonus %g Prevent Death Bonus For: %s"
	msgNoItem          = "No item exists with that ID!"
	msgItemEquipped    = "%s has been equipped in the %s slot."
	msgItemSwapped     = " %s has been unequipped and returned to your inventory."
	msgItemNotOwned    = "You cannot equip %s as you do not have this item."
	msgItemAlreadyWorn = "%s is already equipped!"
	msgItemWrongClass  = "%s cannot be equipped by a %s."
	msgItemUnequipped  = "%s has been unequipped from the %s slot."
	msgSlotEmpty       = "You have nothing equipped in that slot!"
	msgDailyWait       = "%d:%02d until your next daily bonus!"
	msgDailyReady      = "Your daily bonus is ready!"
	msgDailyBonus      = "Daily bonus! You have been awarded an extra %d xp and %d coins."
)

// dailyInterval is how often a group finder run pays the daily bonus.
const dailyInterval = 24 * time.Hour

type Config struct {
	PartySizeLimit   int
	ClassChoiceLevel int
}

// Lobby dispatches whisper commands. It is also a run observer: finder
// parties are disbanded and premade parties unsynced once a run ends, and the
// first successful finder run of the day pays its reward a second time.
type Lobby struct {
	cfg       Config
	roster    *roster.Roster
	pool      *party.Pool
	finder    *adventure.GroupFinder
	messenger party.Messenger

	now func() time.Time

	mu     sync.Mutex
	starts map[*player.Player]runStart
}

// runStart is a member's state after the entry fee was paid.
type runStart struct {
	level int
	xp    int
	coins int
}

func New(cfg Config, r *roster.Roster, pool *party.Pool, finder *adventure.GroupFinder, messenger party.Messenger) *Lobby {
	if cfg.PartySizeLimit <= 0 {
		cfg.PartySizeLimit = 3
	}
	if cfg.ClassChoiceLevel <= 0 {
		cfg.ClassChoiceLevel = 3
	}
	return &Lobby{
		cfg:       cfg,
		roster:    r,
		pool:      pool,
		finder:    finder,
		messenger: messenger,
		now:       time.Now,
		starts:    make(map[*player.Player]runStart),
	}
}

// HandleWhisper runs one command line from user. Lines that are not commands
// are ignored.
func (l *Lobby) HandleWhisper(user, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	p, err := l.roster.GetOrCreate(user)
	if err != nil {
		log.Printf("[Lobby] %s: resolve player failed: %v", user, err)
		return
	}

	switch cmd {
	case "!queue":
		l.handleQueue(p, args)
	case "!leavequeue":
		l.reply(p, l.finder.UnQueue(p))
	case "!queuetime":
		l.reply(p, l.finder.Waiting(p))
	case "!createparty":
		l.handleCreateParty(p)
	case "!add":
		l.withTarget(p, cmd, args, l.handleAdd)
	case "!kick":
		l.withTarget(p, cmd, args, l.handleKick)
	case "!promote":
		l.withTarget(p, cmd, args, l.handlePromote)
	case "!leaveparty":
		l.handleLeaveParty(p)
	case "!party":
		l.handleParty(p, args)
	case "!partydata":
		l.handlePartyData(p)
	case "!start":
		l.handleStart(p, args)
	case "!class":
		l.handleClass(p, args)
	case "!stats":
		l.handleStats(p)
	case "!inventory":
		l.handleInventory(p)
	case "!item":
		l.handleItem(p, args)
	case "!equip":
		l.handleEquip(p, args)
	case "!unequip":
		l.handleUnequip(p, args)
	case "!daily":
		l.handleDaily(p)
	case "!help":
		l.reply(p, msgHelp)
	default:
		l.reply(p, fmt.Sprintf(msgUnknownCommand, fields[0]))
	}
}

func (l *Lobby) reply(p *player.Player, text string) {
	if l.messenger == nil || text == "" {
		return
	}
	l.messenger.SendToIndividual(p.Name(), text)
}

func (l *Lobby) toParty(pt *party.Party, text string) {
	if l.messenger == nil || text == "" {
		return
	}
	l.messenger.SendToParty(pt, text)
}

// leaderParty returns p's party when p leads it.
func (l *Lobby) leaderParty(p *player.Player) (*party.Party, bool) {
	pt, ok := l.pool.PartyOf(p)
	if !ok || !pt.IsLeader(p) {
		return nil, false
	}
	return pt, true
}

func (l *Lobby) handleQueue(p *player.Player, args []string) {
	ids, err := parseIDs(args)
	if err != nil {
		l.reply(p, msgBadIDs)
		return
	}
	pt, inParty := l.pool.PartyOf(p)
	if !inParty {
		reply, err := l.finder.QueueFor(p, ids)
		l.reply(p, queueReply(reply, err))
		return
	}
	if !pt.IsLeader(p) {
		l.reply(p, msgNotLeaderQueue)
		return
	}
	reply, err := l.finder.QueuePartyFor(pt, ids)
	if err != nil {
		l.reply(p, queueReply(reply, err))
		return
	}
	l.toParty(pt, reply)
}

func (l *Lobby) handleStart(p *player.Player, args []string) {
	ids, err := parseIDs(args)
	if err != nil {
		l.reply(p, msgBadIDs)
		return
	}
	pt, ok := l.leaderParty(p)
	if !ok {
		l.reply(p, fmt.Sprintf(msgLeaderOnly, "!start"))
		return
	}
	reply, err := l.finder.QueueIgnoringRequirementsFor(pt, ids)
	if err != nil {
		l.reply(p, queueReply(reply, err))
		return
	}
	l.toParty(pt, reply)
}

func queueReply(reply string, err error) string {
	if errors.Is(err, adventure.ErrNotFound) {
		return msgUnknownAdv
	}
	if err != nil {
		log.Printf("[Lobby] queue failed: %v", err)
		return msgUnknownAdv
	}
	return reply
}

func (l *Lobby) handleCreateParty(p *player.Player) {
	if _, ok := l.pool.PartyOf(p); ok {
		l.reply(p, msgAlreadyInParty)
		return
	}
	if l.finder.IsQueued(p) {
		l.finder.UnQueue(p)
	}
	pt, err := l.pool.CreateSolo(p, l.cfg.PartySizeLimit)
	if err != nil {
		log.Printf("[Lobby] %s: create party failed: %v", p.Name(), err)
		l.reply(p, msgAlreadyInParty)
		return
	}
	l.reply(p, fmt.Sprintf(msgPartyCreated, pt.Capacity()-1))
}

// withTarget resolves the leader's party and the named target before calling fn.
func (l *Lobby) withTarget(p *player.Player, cmd string, args []string, fn func(p, target *player.Player, pt *party.Party)) {
	pt, ok := l.leaderParty(p)
	if !ok {
		l.reply(p, fmt.Sprintf(msgLeaderOnly, cmd))
		return
	}
	if len(args) != 1 {
		l.reply(p, fmt.Sprintf(msgUsage, cmd+" <user>"))
		return
	}
	target, err := l.roster.Get(args[0])
	if err != nil {
		l.reply(p, fmt.Sprintf(msgUnknownUser, args[0]))
		return
	}
	fn(p, target, pt)
}

func (l *Lobby) handleAdd(p, target *player.Player, pt *party.Party) {
	if pt.Size() >= pt.Capacity() {
		l.reply(p, msgPartyFull)
		return
	}
	if _, ok := l.pool.PartyOf(target); ok {
		l.reply(p, fmt.Sprintf(msgTargetInParty, target.Name()))
		return
	}
	if !l.pool.Invite(pt, target) {
		l.reply(p, fmt.Sprintf(msgAlreadyInvited, target.Name()))
		return
	}
	l.reply(target, fmt.Sprintf(msgInvited, p.Name()))
	l.reply(p, fmt.Sprintf(msgInviteSent, target.Name()))
}

func (l *Lobby) handleKick(p, target *player.Player, pt *party.Party) {
	if target == p || !pt.Has(target) {
		l.reply(p, fmt.Sprintf(msgCannotKick, target.Name()))
		return
	}
	if pt.Busy() {
		l.reply(p, msgPartyAdventure)
		return
	}
	if l.finder.IsQueued(target) {
		l.finder.UnQueue(target)
	}
	if !l.pool.Remove(pt, target) {
		l.reply(p, msgPartyAdventure)
		return
	}
	l.reply(target, msgKicked)
	l.reply(p, fmt.Sprintf(msgKickedTarget, target.Name()))
}

func (l *Lobby) handlePromote(p, target *player.Player, pt *party.Party) {
	if !l.pool.Promote(pt, target) {
		l.reply(p, fmt.Sprintf(msgCannotPromote, target.Name()))
		return
	}
	l.reply(target, msgPromoted)
	l.reply(p, fmt.Sprintf(msgPromotedTarget, target.Name()))
}

func (l *Lobby) handleLeaveParty(p *player.Player) {
	pt, ok := l.pool.PartyOf(p)
	if !ok {
		l.reply(p, msgNotInParty)
		return
	}
	if pt.Busy() {
		l.reply(p, msgPartyAdventure)
		return
	}
	if l.finder.IsQueued(p) {
		l.finder.UnQueue(p)
	}
	if !l.pool.Remove(pt, p) {
		l.reply(p, msgPartyAdventure)
		return
	}
	l.reply(p, msgLeftParty)
}

func (l *Lobby) handleParty(p *player.Player, args []string) {
	if len(args) != 1 {
		l.reply(p, fmt.Sprintf(msgUsage, "!party accept|decline"))
		return
	}
	switch strings.ToLower(args[0]) {
	case "accept":
		if !l.pool.HasInvite(p) {
			l.reply(p, msgNoInvite)
			return
		}
		pt, ok := l.pool.AcceptInvite(p)
		if !ok {
			l.reply(p, msgJoinFailed)
			return
		}
		if l.finder.IsQueued(p) {
			l.finder.UnQueue(p)
		}
		// A queued party ticket no longer matches the new roster.
		if leader := pt.Leader(); leader != nil && l.finder.IsQueued(leader) {
			l.finder.UnQueue(leader)
		}
		l.toParty(pt, fmt.Sprintf(msgJoinedParty, p.Name()))
	case "decline":
		if !l.pool.DeclineInvite(p) {
			l.reply(p, msgNoInvite)
			return
		}
		l.reply(p, msgDeclined)
	default:
		l.reply(p, fmt.Sprintf(msgUsage, "!party accept|decline"))
	}
}

func (l *Lobby) handlePartyData(p *player.Player) {
	pt, ok := l.pool.PartyOf(p)
	if !ok {
		l.reply(p, msgNotInParty)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Party %d (%d/%d): ", pt.ID, pt.Size(), pt.Capacity())
	for i, m := range pt.Members() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (Level %d %s)", m.Name(), m.Level(), m.Class())
		if pt.IsLeader(m) {
			b.WriteString(" [Leader]")
		}
	}
	if invites := pt.PendingInvites(); len(invites) > 0 {
		names := make([]string, 0, len(invites))
		for _, m := range invites {
			names = append(names, m.Name())
		}
		fmt.Fprintf(&b, ". Pending invites: %s", strings.Join(names, ", "))
	}
	if pt.IsSynced() {
		fmt.Fprintf(&b, ". Level synced to %d", pt.Level())
	}
	if pt.Busy() {
		b.WriteString(". Currently on an adventure")
	}
	l.reply(p, b.String())
}

func (l *Lobby) handleClass(p *player.Player, args []string) {
	if len(args) == 0 {
		l.reply(p, fmt.Sprintf(msgClassCurrent, p.Class()))
		return
	}
	if p.Level() < l.cfg.ClassChoiceLevel {
		l.reply(p, fmt.Sprintf(msgClassTooLow, l.cfg.ClassChoiceLevel))
		return
	}
	c, ok := player.ParseClass(args[0])
	if !ok || c == player.ClassDeprived {
		l.reply(p, fmt.Sprintf(msgClassUnknown, args[0]))
		return
	}
	if p.Class() != player.ClassDeprived {
		l.reply(p, fmt.Sprintf(msgClassAlready, p.Class()))
		return
	}
	if l.onAdventure(p) {
		l.reply(p, msgPartyAdventure)
		return
	}
	if err := l.roster.SetClass(p, c); err != nil {
		log.Printf("[Lobby] %s: save class failed: %v", p.Name(), err)
	}
	l.pool.Refresh(p)
	l.reply(p, fmt.Sprintf(msgClassChosen, c))
}

// onAdventure reports whether p's party is out on a run. Class and gear are
// frozen until it returns.
func (l *Lobby) onAdventure(p *player.Player) bool {
	pt, ok := l.pool.PartyOf(p)
	return ok && pt.Busy()
}

// gearChanged refreshes party stats and persists p.
func (l *Lobby) gearChanged(p *player.Player) {
	l.pool.Refresh(p)
	if err := l.roster.Save(p); err != nil {
		log.Printf("[Lobby] %s: save gear failed: %v", p.Name(), err)
	}
}

func (l *Lobby) handleInventory(p *player.Player) {
	var b strings.Builder
	items := p.Items()
	if len(items) == 0 {
		b.WriteString(msgNoItems)
	} else {
		names := make([]string, 0, len(items))
		for _, it := range items {
			names = append(names, fmt.Sprintf("%d %s", it.ID, it.Name))
		}
		fmt.Fprintf(&b, msgInventory, strings.Join(names, ", "))
	}
	worn := "nothing"
	if eq := p.EquippedItems(); len(eq) > 0 {
		names := make([]string, 0, len(eq))
		for _, it := range eq {
			names = append(names, fmt.Sprintf("%s: %d %s", it.Slot, it.ID, it.Name))
		}
		worn = strings.Join(names, ", ")
	}
	fmt.Fprintf(&b, msgInventoryWorn, worn)
	l.reply(p, b.String())
}

// itemArg resolves the single item id argument of cmd.
func (l *Lobby) itemArg(p *player.Player, cmd string, args []string) (*player.Item, bool) {
	if len(args) != 1 {
		l.reply(p, fmt.Sprintf(msgUsage, cmd+" <id>"))
		return nil, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		l.reply(p, msgNoItem)
		return nil, false
	}
	item, ok := l.roster.Item(id)
	if !ok {
		l.reply(p, msgNoItem)
		return nil, false
	}
	return item, true
}

func (l *Lobby) handleItem(p *player.Player, args []string) {
	item, ok := l.itemArg(p, "!item", args)
	if !ok {
		return
	}
	classes := make([]string, 0, len(item.ForClasses))
	for _, c := range item.ForClasses {
		classes = append(classes, c.String())
	}
	s := item.Stats
	l.reply(p, fmt.Sprintf(msgItemInfo, item.Name, item.Slot, item.Description,
		s.SuccessChance, s.ItemFind, s.CoinBonus, s.XPBonus, s.PreventDeath, strings.Join(classes, " ")))
}

func (l *Lobby) handleEquip(p *player.Player, args []string) {
	item, ok := l.itemArg(p, "!equip", args)
	if !ok {
		return
	}
	switch {
	case !p.HasItem(item):
		l.reply(p, fmt.Sprintf(msgItemNotOwned, item.Name))
		return
	case p.Equipped(item.Slot) == item:
		l.reply(p, fmt.Sprintf(msgItemAlreadyWorn, item.Name))
		return
	case !item.CanBeEquippedBy(p.Class()):
		l.reply(p, fmt.Sprintf(msgItemWrongClass, item.Name, p.Class()))
		return
	case l.onAdventure(p):
		l.reply(p, msgPartyAdventure)
		return
	}
	prev, err := p.Equip(item)
	if err != nil {
		log.Printf("[Lobby] %s: equip %d failed: %v", p.Name(), item.ID, err)
		l.reply(p, fmt.Sprintf(msgItemNotOwned, item.Name))
		return
	}
	l.gearChanged(p)
	reply := fmt.Sprintf(msgItemEquipped, item.Name, item.Slot)
	if prev != nil {
		reply += fmt.Sprintf(msgItemSwapped, prev.Name)
	}
	l.reply(p, reply)
}

// handleUnequip accepts an item id or a slot name.
func (l *Lobby) handleUnequip(p *player.Player, args []string) {
	if len(args) != 1 {
		l.reply(p, fmt.Sprintf(msgUsage, "!unequip <id|slot>"))
		return
	}
	var (
		slot player.Slot
		ok   bool
	)
	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		item, ok := l.roster.Item(id)
		if !ok {
			l.reply(p, msgNoItem)
			return
		}
		if p.Equipped(item.Slot) != item {
			l.reply(p, msgSlotEmpty)
			return
		}
		slot = item.Slot
	} else if slot, ok = player.ParseSlot(args[0]); !ok {
		l.reply(p, fmt.Sprintf(msgUsage, "!unequip <id|weapon|armor|trinket|other>"))
		return
	}
	if l.onAdventure(p) {
		l.reply(p, msgPartyAdventure)
		return
	}
	item := p.Unequip(slot)
	if item == nil {
		l.reply(p, msgSlotEmpty)
		return
	}
	l.gearChanged(p)
	l.reply(p, fmt.Sprintf(msgItemUnequipped, item.Name, item.Slot))
}

func (l *Lobby) handleDaily(p *player.Player) {
	last := p.LastDailyGroupFinder()
	left := dailyInterval - l.now().Sub(last)
	if last.IsZero() || left <= 0 {
		l.reply(p, msgDailyReady)
		return
	}
	l.reply(p, fmt.Sprintf(msgDailyWait, int(left.Hours()), int(left.Minutes())%60))
}

func (l *Lobby) handleStats(p *player.Player) {
	level := p.Level()
	next := fmt.Sprintf("%d xp to next level", player.XPForLevel(level+1)-p.XP())
	if level >= p.LevelCap() {
		next = "max level"
	}
	l.reply(p, fmt.Sprintf("You are a level %d %s with %d xp (%s) and %d coins.", level, p.Class(), p.XP(), next, p.Coins()))
}

// parseIDs accepts "1,2", "1 2" or a mix of both.
func parseIDs(args []string) ([]int, error) {
	var ids []int
	for _, a := range args {
		for _, raw := range strings.Split(a, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.Atoi(raw)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (l *Lobby) OnStart(pt *party.Party, _ *adventure.Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range pt.Members() {
		l.starts[m] = runStart{level: m.Level(), xp: m.XP(), coins: m.Coins()}
	}
}

func (l *Lobby) OnSuccess(pt *party.Party, _ int, _ map[*player.Player][]*player.Item, _ string) {
	members := pt.Members()
	starts := make(map[*player.Player]runStart, len(members))
	l.mu.Lock()
	for _, m := range members {
		if st, ok := l.starts[m]; ok {
			starts[m] = st
		}
		delete(l.starts, m)
	}
	l.mu.Unlock()

	if pt.UsedGroupFinder() {
		l.payDailyBonus(members, starts)
	}
	for _, m := range members {
		st, ok := starts[m]
		if ok && st.level < l.cfg.ClassChoiceLevel && m.Level() >= l.cfg.ClassChoiceLevel && m.Class() == player.ClassDeprived {
			l.reply(m, msgClassNotice)
		}
	}
	l.release(pt, members)
}

// payDailyBonus repeats the run reward for members whose daily bonus is ready.
func (l *Lobby) payDailyBonus(members []*player.Player, starts map[*player.Player]runStart) {
	now := l.now()
	for _, m := range members {
		st, ok := starts[m]
		last := m.LastDailyGroupFinder()
		if !ok || (!last.IsZero() && now.Sub(last) < dailyInterval) {
			continue
		}
		xp := max(m.XP()-st.xp, 0)
		coins := max(m.Coins()-st.coins, 0)
		m.AddXP(xp)
		m.AddCoins(coins)
		m.SetLastDailyGroupFinder(now)
		if err := l.roster.Save(m); err != nil {
			log.Printf("[Lobby] %s: save daily bonus failed: %v", m.Name(), err)
		}
		l.reply(m, fmt.Sprintf(msgDailyBonus, xp, coins))
	}
}

func (l *Lobby) OnFailure(pt *party.Party, _ int, _ []*player.Player, _ map[*player.Player]*player.Item, _ string) {
	members := pt.Members()
	l.mu.Lock()
	for _, m := range members {
		delete(l.starts, m)
	}
	l.mu.Unlock()
	l.release(pt, members)
}

func (l *Lobby) release(pt *party.Party, members []*player.Player) {
	if !pt.UsedGroupFinder() {
		l.pool.UnsyncLevel(pt)
		return
	}
	l.toParty(pt, msgFinderDisbanded)
	if !l.pool.Disband(pt) {
		log.Printf("[Lobby] party %d could not be disbanded after its run", pt.ID)
		return
	}
	log.Printf("[Lobby] finder party %d released %d member(s)", pt.ID, len(members))
}
