package adventure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

// Progress is the state of one adventure run.
type Progress int

const (
	NotStarted Progress = iota
	InProgress
	SuccessfullyCompleted
	UnsuccessfullyCompleted
)

func (p Progress) String() string {
	switch p {
	case NotStarted:
		return "NOT_STARTED"
	case InProgress:
		return "IN_PROGRESS"
	case SuccessfullyCompleted:
		return "SUCCESSFULLY_COMPLETED"
	case UnsuccessfullyCompleted:
		return "UNSUCCESSFULLY_COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of Resolve.
type Result struct {
	Progress Progress
	// Encounter is the number of cleared encounters on success and the
	// failing encounter index on failure.
	Encounter int
	XP        int
	Coins     int
	Loot      map[*player.Player][]*player.Item
	Dead      []*player.Player
	Lost      map[*player.Player]*player.Item
	Message   string
}

// Runner is the single consumer of the work queue.
type Runner struct {
	cfg       Config
	queue     *WorkQueue
	messenger party.Messenger
	rng       Roller
	observers observerList
}

func NewRunner(cfg Config, queue *WorkQueue, messenger party.Messenger, opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, errors.New("runner needs a work queue")
	}
	o := buildOptions(cfg, opts)
	return &Runner{
		cfg:       cfg,
		queue:     queue,
		messenger: messenger,
		rng:       o.rng,
	}, nil
}

// Subscribe registers o. Observers are called in subscription order.
func (r *Runner) Subscribe(o Observer) SubscriptionID {
	return r.observers.add(o)
}

func (r *Runner) Unsubscribe(id SubscriptionID) bool {
	return r.observers.remove(id)
}

// Run resolves work items until ctx is cancelled or the queue is closed.
// Cancellation is only observed between runs.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("[Runner] started")
	for {
		item, err := r.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || ctx.Err() != nil {
				log.Printf("[Runner] stopped: %v", err)
				return nil
			}
			return err
		}
		r.Resolve(item)
	}
}

func (r *Runner) send(pt *party.Party, text string) {
	if r.messenger == nil || text == "" {
		return
	}
	r.messenger.SendToParty(pt, text)
}

// Resolve drives one work item to a terminal state.
func (r *Runner) Resolve(item WorkItem) Result {
	pt, adv := item.Party, item.Adventure
	if pt == nil || adv == nil || len(adv.Encounters) == 0 {
		log.Printf("[Runner] integrity failure: party set=%v adventure set=%v encounters=%d, run aborted",
			pt != nil, adv != nil, encounterCount(adv))
		if pt != nil {
			pt.SetBusy(false)
		}
		return Result{Progress: NotStarted}
	}
	members := pt.Members()
	if len(members) == 0 {
		log.Printf("[Runner] integrity failure: party %d has no members, run of %s aborted", pt.ID, adv.Name)
		pt.SetBusy(false)
		return Result{Progress: NotStarted}
	}
	for _, m := range members {
		if !m.CanAfford(adv.Cost) {
			msg := fmt.Sprintf("%s can no longer afford %s, the adventure has been cancelled.", m.Name(), adv.Name)
			r.send(pt, msg)
			pt.SetBusy(false)
			return Result{Progress: NotStarted, Message: msg}
		}
	}

	for _, m := range members {
		m.AddCoins(-adv.Cost)
	}
	r.send(pt, fmt.Sprintf("Loading information for... %s. %d coins have been removed from each member.", adv.Name, adv.Cost))
	r.observers.each("start", func(o Observer) { o.OnStart(pt, adv) })
	log.Printf("[Runner] party %d started %s", pt.ID, adv.Name)

	res := Result{Progress: InProgress}
	level := pt.Level()
	stats := pt.Stats()
	failed := -1
	for i, enc := range adv.Encounters {
		r.send(pt, enc.Text)
		if !r.encounterSucceeds(stats, level, len(members), adv, enc) {
			failed = i
			break
		}
		r.send(pt, enc.SuccessText)
	}

	if failed < 0 {
		r.succeed(pt, adv, members, level, stats, &res)
		r.send(pt, res.Message)
		pt.SetBusy(false)
		r.observers.each("success", func(o Observer) { o.OnSuccess(pt, res.Encounter, res.Loot, res.Message) })
	} else {
		r.fail(adv, members, stats, failed, &res)
		r.send(pt, res.Message)
		pt.SetBusy(false)
		r.observers.each("failure", func(o Observer) { o.OnFailure(pt, res.Encounter, res.Dead, res.Lost, res.Message) })
	}
	log.Printf("[Runner] party %d finished %s: %s", pt.ID, adv.Name, res.Progress)
	return res
}

// SuccessChance is the percentage the encounter roll must stay under.
// sizeLimit is the adventure's party size, or the configured limit when the
// adventure has none.
func SuccessChance(stats player.Stats, level, size, sizeLimit int, adv *Definition, enc Encounter) float64 {
	chance := stats.SuccessChance
	if adv.MaxLevel > 0 {
		chance = stats.SuccessChance * float64(level) / float64(adv.MaxLevel)
	}
	if floor := stats.SuccessChance * 0.75; chance < floor {
		chance = floor
	}
	ratio := 1.0
	if sizeLimit > 0 {
		ratio = math.Min(1, float64(size)/float64(sizeLimit))
	}
	chance += adv.BaseSuccessRate * ratio
	chance -= enc.Difficulty
	return chance
}

func (r *Runner) encounterSucceeds(stats player.Stats, level, size int, adv *Definition, enc Encounter) bool {
	limit := adv.PartySize
	if limit <= 0 {
		limit = r.cfg.PartySizeLimit
	}
	return SuccessChance(stats, level, size, limit, adv, enc) > float64(r.rng.Intn(100))
}

func encounterCount(adv *Definition) int {
	if adv == nil {
		return 0
	}
	return len(adv.Encounters)
}

func effectiveLevel(level int, adv *Definition) int {
	if adv.MaxLevel > 0 && level > adv.MaxLevel {
		level = adv.MaxLevel
	}
	if level < 1 {
		level = 1
	}
	return level
}

// scaleReward is round(raw*mod*level) plus a uniform draw in [-2L, 2L),
// floored at 5.
func scaleReward(rng Roller, level, raw int, mod float64) int {
	v := int(math.Round(float64(raw) * mod * float64(level)))
	v += rng.Intn(4*level) - 2*level
	if v < 5 {
		v = 5
	}
	return v
}

func (r *Runner) succeed(pt *party.Party, adv *Definition, members []*player.Player, level int, stats player.Stats, res *Result) {
	res.Progress = SuccessfullyCompleted
	res.Encounter = len(adv.Encounters)

	eff := effectiveLevel(level, adv)
	res.XP = scaleReward(r.rng, eff, player.TNL(eff)/50, adv.RewardModifier)
	baseCoins := 50 + stats.CoinBonus*50/100
	res.Coins = scaleReward(r.rng, eff, baseCoins, adv.RewardModifier) / len(members)
	for _, m := range members {
		m.AddXP(res.XP)
		m.AddCoins(res.Coins)
	}

	res.Loot = make(map[*player.Player][]*player.Item)
	for _, it := range adv.Loot {
		if stats.ItemFind >= r.rng.Intn(100) {
			m := members[r.rng.Intn(len(members))]
			m.AddItem(it)
			res.Loot[m] = append(res.Loot[m], it)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s has been completed! Each player has been awarded: %d xp and %d coins! ", adv.Success, adv.Name, res.XP, res.Coins)
	for _, m := range members {
		items := res.Loot[m]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s has found the following items: ", m.Name())
		for _, it := range items {
			b.WriteString(it.Name)
			b.WriteString(" ")
		}
	}
	res.Message = strings.TrimLeft(b.String(), " ")
	log.Printf("[Runner] party %d rewarded xp=%d coins=%d loot=%d", pt.ID, res.XP, res.Coins, len(res.Loot))
}

func (r *Runner) fail(adv *Definition, members []*player.Player, stats player.Stats, failed int, res *Result) {
	res.Progress = UnsuccessfullyCompleted
	res.Encounter = failed

	threshold := r.cfg.BaseDeathChance - stats.PreventDeath
	res.Lost = make(map[*player.Player]*player.Item)
	for _, m := range members {
		if float64(r.rng.Intn(100)) < threshold {
			res.Dead = append(res.Dead, m)
		}
	}
	for _, m := range res.Dead {
		equipped := m.EquippedItems()
		if len(equipped) == 0 || r.rng.Intn(100) >= r.cfg.EquipmentLossChance {
			continue
		}
		it := equipped[r.rng.Intn(len(equipped))]
		if m.RemoveItem(it) {
			res.Lost[m] = it
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Failed to complete %s! ", adv.Failure, adv.Name)
	for _, m := range res.Dead {
		fmt.Fprintf(&b, "%s has died! ", m.Name())
		if it, ok := res.Lost[m]; ok {
			fmt.Fprintf(&b, "%s lost their %s. ", m.Name(), it.Name)
		}
	}
	res.Message = strings.TrimLeft(b.String(), " ")
}
