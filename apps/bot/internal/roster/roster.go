// Package roster is the identity map of chat players, backed by a Store.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MaraKorvus/lobotjr/adventure"
	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

var ErrUnknownPlayer = errors.New("unknown player")

// ClassStats supplies the base stats of a class.
type ClassStats interface {
	ClassStats(c player.ClassType) player.Stats
}

// Roster hands out one *player.Player per name so that parties, the group
// finder and the runner all share the same instance.
type Roster struct {
	store    Store
	items    player.ItemLookup
	classes  ClassStats
	levelCap int

	mu      sync.Mutex
	players map[string]*player.Player
}

func New(store Store, items player.ItemLookup, classes ClassStats, levelCap int) *Roster {
	return &Roster{
		store:    store,
		items:    items,
		classes:  classes,
		levelCap: levelCap,
		players:  make(map[string]*player.Player),
	}
}

// Get returns a known player, loading it from the store on first use.
func (r *Roster) Get(name string) (*player.Player, error) {
	key := player.NormalizeName(name)
	if key == "" {
		return nil, ErrUnknownPlayer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(key)
}

func (r *Roster) getLocked(key string) (*player.Player, error) {
	if p, ok := r.players[key]; ok {
		return p, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rec, ok, err := r.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", key, err)
	}
	if !ok {
		return nil, ErrUnknownPlayer
	}
	p, err := player.FromRecord(rec, r.classes.ClassStats(rec.Class), r.items)
	if err != nil {
		return nil, err
	}
	r.players[key] = p
	return p, nil
}

// GetOrCreate returns the player for name, creating and saving a fresh one
// when none exists.
func (r *Roster) GetOrCreate(name string) (*player.Player, error) {
	name = strings.TrimSpace(name)
	key := player.NormalizeName(name)
	if key == "" {
		return nil, ErrUnknownPlayer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.getLocked(key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrUnknownPlayer) {
		return nil, err
	}
	p = player.New(uuid.NewString(), name, r.levelCap)
	r.players[key] = p
	if err := r.save(p); err != nil {
		log.Printf("[Roster] save new player %s failed: %v", name, err)
	}
	log.Printf("[Roster] created player %s", name)
	return p, nil
}

func (r *Roster) save(p *player.Player) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return r.store.Save(ctx, p.Snapshot())
}

// Save persists p.
func (r *Roster) Save(p *player.Player) error {
	return r.save(p)
}

// SaveAll persists every loaded player and returns the first error.
func (r *Roster) SaveAll() error {
	r.mu.Lock()
	players := make([]*player.Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()
	var first error
	for _, p := range players {
		if err := r.save(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetClass switches p to class c with that class's base stats.
func (r *Roster) SetClass(p *player.Player, c player.ClassType) error {
	p.SetClass(c, r.classes.ClassStats(c))
	return r.save(p)
}

// Item resolves an item definition by id.
func (r *Roster) Item(id int64) (*player.Item, bool) {
	if r.items == nil {
		return nil, false
	}
	return r.items.Item(id)
}

// Saver returns a run observer that persists every member after a run.
func (r *Roster) Saver() adventure.Observer {
	saveAll := func(pt *party.Party) {
		for _, m := range pt.Members() {
			if err := r.save(m); err != nil {
				log.Printf("[Roster] save %s after run failed: %v", m.Name(), err)
			}
		}
	}
	return adventure.ObserverFuncs{
		Success: func(pt *party.Party, _ int, _ map[*player.Player][]*player.Item, _ string) { saveAll(pt) },
		Failure: func(pt *party.Party, _ int, _ []*player.Player, _ map[*player.Player]*player.Item, _ string) {
			saveAll(pt)
		},
	}
}
