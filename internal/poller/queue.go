package poller

import (
	"sync"

	"poolscope/internal/model"
)

// seenFactor bounds the dedup set relative to the queue limit. It
// must cover the queued entries plus enough drained history to absorb
// the overlap between consecutive polls at the cursor timestamp.
const seenFactor = 4

// PendingQueue is a bounded FIFO of swap events awaiting display.
// Incoming events are de-duplicated by id; on overflow the oldest
// entry is dropped. It is a UI throttle, not an ordering guarantee:
// drained events are handed out in arrival order and that is all.
type PendingQueue struct {
	mu        sync.Mutex
	limit     int
	entries   []model.SwapEvent
	seen      map[string]struct{}
	seenOrder []string
	dropped   uint64
}

func NewPendingQueue(limit int) *PendingQueue {
	if limit <= 0 {
		limit = 256
	}
	return &PendingQueue{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Push enqueues events not seen before, returning how many were
// accepted and how many existing entries overflow evicted.
func (q *PendingQueue) Push(events []model.SwapEvent) (accepted, evicted int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, ev := range events {
		if _, ok := q.seen[ev.ID]; ok {
			continue
		}
		q.seen[ev.ID] = struct{}{}
		q.seenOrder = append(q.seenOrder, ev.ID)
		q.entries = append(q.entries, ev)
		accepted++

		if len(q.entries) > q.limit {
			q.entries = q.entries[1:]
			evicted++
			q.dropped++
		}
		for len(q.seenOrder) > q.limit*seenFactor {
			delete(q.seen, q.seenOrder[0])
			q.seenOrder = q.seenOrder[1:]
		}
	}
	return accepted, evicted
}

// Drain removes and returns up to n events from the head.
func (q *PendingQueue) Drain(n int) []model.SwapEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.entries) == 0 {
		return nil
	}
	if n > len(q.entries) {
		n = len(q.entries)
	}

	out := make([]model.SwapEvent, n)
	copy(out, q.entries[:n])
	q.entries = append(q.entries[:0], q.entries[n:]...)
	return out
}

// Len reports how many events are waiting.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped reports the lifetime overflow count.
func (q *PendingQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
