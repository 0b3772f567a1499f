package adventure

import (
	"log"
	"sync"

	"github.com/MaraKorvus/lobotjr/party"
	"github.com/MaraKorvus/lobotjr/player"
)

// Observer receives run progress. Callbacks run synchronously on the runner
// goroutine in subscription order.
type Observer interface {
	OnStart(pt *party.Party, adv *Definition)
	OnSuccess(pt *party.Party, encounters int, loot map[*player.Player][]*player.Item, message string)
	OnFailure(pt *party.Party, encounter int, dead []*player.Player, lost map[*player.Player]*player.Item, message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start   func(pt *party.Party, adv *Definition)
	Success func(pt *party.Party, encounters int, loot map[*player.Player][]*player.Item, message string)
	Failure func(pt *party.Party, encounter int, dead []*player.Player, lost map[*player.Player]*player.Item, message string)
}

func (f ObserverFuncs) OnStart(pt *party.Party, adv *Definition) {
	if f.Start != nil {
		f.Start(pt, adv)
	}
}

func (f ObserverFuncs) OnSuccess(pt *party.Party, encounters int, loot map[*player.Player][]*player.Item, message string) {
	if f.Success != nil {
		f.Success(pt, encounters, loot, message)
	}
}

func (f ObserverFuncs) OnFailure(pt *party.Party, encounter int, dead []*player.Player, lost map[*player.Player]*player.Item, message string) {
	if f.Failure != nil {
		f.Failure(pt, encounter, dead, lost, message)
	}
}

// SubscriptionID identifies one Subscribe call.
type SubscriptionID uint64

type subscription struct {
	id       SubscriptionID
	observer Observer
}

type observerList struct {
	mu   sync.Mutex
	next SubscriptionID
	subs []subscription
}

func (l *observerList) add(o Observer) SubscriptionID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.subs = append(l.subs, subscription{id: l.next, observer: o})
	return l.next
}

func (l *observerList) remove(id SubscriptionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

// each calls fn for every observer. A panicking observer is logged and the
// rest still run.
func (l *observerList) each(event string, fn func(Observer)) {
	l.mu.Lock()
	subs := append([]subscription(nil), l.subs...)
	l.mu.Unlock()
	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Runner] observer %d %s panic: %v", s.id, event, r)
				}
			}()
			fn(s.observer)
		}()
	}
}
