package app

import (
	"sync"

	arbDomain "github.com/fd1az/spatial-arb/business/arbitrage/domain"
)

// Queue is a bounded FIFO that drops its oldest entry when full.
type Queue struct {
	ch chan *arbDomain.Opportunity
	mu sync.Mutex
}

// NewQueue creates a queue holding at most capacity entries.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan *arbDomain.Opportunity, capacity)}
}

// Publish enqueues opp. When the queue is full the oldest entry is removed
// and returned.
func (q *Queue) Publish(opp *arbDomain.Opportunity) (dropped *arbDomain.Opportunity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- opp:
			return dropped
		default:
		}

		select {
		case old := <-q.ch:
			dropped = old
		default:
		}
	}
}

// C returns the receive side for the consumer.
func (q *Queue) C() <-chan *arbDomain.Opportunity {
	return q.ch
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
