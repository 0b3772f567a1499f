package adventure

import (
	"context"
	"sync"
	"time"

	"github.com/MaraKorvus/lobotjr/party"
)

// WorkItem is a formed party handed to the runner together with the
// adventure it will run.
type WorkItem struct {
	Party     *party.Party
	Adventure *Definition
	QueuedAt  time.Time
}

// WorkQueue is the FIFO hand-off between the group finder and the runner.
type WorkQueue struct {
	items     chan WorkItem
	done      chan struct{}
	closeOnce sync.Once
}

func NewWorkQueue(capacity int) *WorkQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &WorkQueue{
		items: make(chan WorkItem, capacity),
		done:  make(chan struct{}),
	}
}

// Push blocks while the buffer is full.
func (q *WorkQueue) Push(item WorkItem) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Take blocks until an item is available, the queue is closed or ctx ends.
// Buffered items are still handed out after Close.
func (q *WorkQueue) Take(ctx context.Context) (WorkItem, error) {
	select {
	case item := <-q.items:
		return item, nil
	default:
	}
	select {
	case item := <-q.items:
		return item, nil
	case <-q.done:
		select {
		case item := <-q.items:
			return item, nil
		default:
		}
		return WorkItem{}, ErrQueueClosed
	case <-ctx.Done():
		return WorkItem{}, ctx.Err()
	}
}

func (q *WorkQueue) Len() int {
	return len(q.items)
}

func (q *WorkQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
