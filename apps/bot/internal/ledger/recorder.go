package ledger

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/apps/bot/internal/codec"
	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

// Recorder is a run observer that tapes every adventure and stores it when
// the run ends.
type Recorder struct {
	svc Service
	now func() time.Time

	mu   sync.Mutex
	runs map[*party.Party]*tape
}

type tape struct {
	run     Run
	members []*player.Player
	xp      map[*player.Player]int
	coins   map[*player.Player]int
}

var _ adventure.Observer = (*Recorder)(nil)

func NewRecorder(svc Service) *Recorder {
	return &Recorder{
		svc:  svc,
		now:  time.Now,
		runs: make(map[*party.Party]*tape),
	}
}

func (r *Recorder) append(t *tape, kind string, data map[string]any) {
	ts := r.now().UnixMilli()
	seq := uint64(len(t.run.Events) + 1)
	raw, err := codec.Encode(seq, kind, ts, data)
	if err != nil {
		log.Printf("[Ledger] encode %s event failed: run=%s err=%v", kind, t.run.ID, err)
		return
	}
	t.run.Events = append(t.run.Events, EventItem{
		Seq:         seq,
		EventType:   kind,
		EnvelopeB64: base64.StdEncoding.EncodeToString(raw),
		ServerTsMs:  ts,
	})
}

func (r *Recorder) OnStart(pt *party.Party, adv *adventure.Definition) {
	members := pt.Members()
	t := &tape{
		run: Run{
			ID:          uuid.NewString(),
			AdventureID: adv.ID,
			Adventure:   adv.Name,
			StartedAt:   r.now(),
		},
		members: members,
		xp:      make(map[*player.Player]int, len(members)),
		coins:   make(map[*player.Player]int, len(members)),
	}
	for _, m := range members {
		t.run.Members = append(t.run.Members, m.Name())
		t.xp[m] = m.XP()
		t.coins[m] = m.Coins()
	}
	r.append(t, codec.KindStart, map[string]any{
		"adventure_id": adv.ID,
		"adventure":    adv.Name,
		"members":      codec.Strings(t.run.Members),
		"level":        pt.Level(),
		"synced":       pt.IsSynced(),
		"finder":       pt.UsedGroupFinder(),
		"cost":         adv.Cost,
	})

	r.mu.Lock()
	r.runs[pt] = t
	r.mu.Unlock()
}

func (r *Recorder) OnSuccess(pt *party.Party, encounters int, loot map[*player.Player][]*player.Item, message string) {
	t := r.take(pt)
	if t == nil {
		return
	}
	for i := 0; i < encounters; i++ {
		r.append(t, codec.KindEncounter, map[string]any{"index": i, "cleared": true})
	}
	found := map[string]any{}
	for m, items := range loot {
		names := make([]string, 0, len(items))
		for _, it := range items {
			names = append(names, it.Name)
		}
		found[m.Name()] = codec.Strings(names)
	}
	r.append(t, codec.KindSuccess, map[string]any{"loot": found, "message": message})
	r.finish(t, adventure.SuccessfullyCompleted)
}

func (r *Recorder) OnFailure(pt *party.Party, encounter int, dead []*player.Player, lost map[*player.Player]*player.Item, message string) {
	t := r.take(pt)
	if t == nil {
		return
	}
	for i := 0; i < encounter; i++ {
		r.append(t, codec.KindEncounter, map[string]any{"index": i, "cleared": true})
	}
	r.append(t, codec.KindEncounter, map[string]any{"index": encounter, "cleared": false})
	deadNames := make([]string, 0, len(dead))
	for _, m := range dead {
		deadNames = append(deadNames, m.Name())
	}
	lostItems := map[string]any{}
	for m, it := range lost {
		lostItems[m.Name()] = it.Name
	}
	r.append(t, codec.KindFailure, map[string]any{
		"dead":    codec.Strings(deadNames),
		"lost":    lostItems,
		"message": message,
	})
	r.finish(t, adventure.UnsuccessfullyCompleted)
}

func (r *Recorder) take(pt *party.Party) *tape {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.runs[pt]
	delete(r.runs, pt)
	if t == nil {
		log.Printf("[Ledger] outcome for party %d without a start event", pt.ID)
	}
	return t
}

func (r *Recorder) finish(t *tape, outcome adventure.Progress) {
	t.run.Outcome = outcome.String()
	t.run.EndedAt = r.now()
	rewards := map[string]any{}
	for _, m := range t.members {
		rewards[m.Name()] = map[string]any{
			"xp":    m.XP() - t.xp[m],
			"coins": m.Coins() - t.coins[m],
		}
	}
	t.run.Summary = map[string]any{
		"events":  len(t.run.Events),
		"rewards": rewards,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.svc.RecordRun(ctx, t.run); err != nil {
		log.Printf("[Ledger] record run failed: run=%s adventure=%s err=%v", t.run.ID, t.run.Adventure, err)
	}
}
