// Package scheduler orders future hardware events (PPU line transitions,
// timer overflows, DMA triggers) by the CPU cycle at which they become due.
package scheduler

import "container/heap"

// Callback is invoked when a scheduled event's due cycle has been reached.
// Callbacks run synchronously on the invoking goroutine and may schedule
// further events (e.g. a timer overflow rescheduling its own next overflow).
type Callback func()

type event struct {
	due  uint64
	seq  uint64 // insertion order, breaks due-cycle ties FIFO
	call Callback
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Scheduler is a priority queue of (due_cycle, callback) pairs plus a
// monotonic current-cycle counter. It is not safe for concurrent use; the
// core is single-threaded by design (see spec's concurrency model).
type Scheduler struct {
	current uint64
	queue   eventQueue
	nextSeq uint64
}

// New returns a Scheduler with the cycle counter starting at 0.
func New() *Scheduler {
	return &Scheduler{}
}

// Current returns the current cycle counter.
func (s *Scheduler) Current() uint64 { return s.current }

// Schedule inserts an event at current+cyclesFromNow.
func (s *Scheduler) Schedule(cyclesFromNow uint64, cb Callback) {
	e := &event{due: s.current + cyclesFromNow, seq: s.nextSeq, call: cb}
	s.nextSeq++
	heap.Push(&s.queue, e)
}

// Tick advances the current cycle by n, firing any events whose due cycle
// has been reached, in (due_cycle, insertion_order) order. A callback that
// schedules a new event sees it considered against the now-current cycle,
// so an event scheduled for 0 cycles from now fires within the same Tick.
func (s *Scheduler) Tick(n uint64) {
	s.current += n
	for s.queue.Len() > 0 && s.queue[0].due <= s.current {
		e := heap.Pop(&s.queue).(*event)
		e.call()
	}
}

// Pending reports how many events are outstanding; mainly useful for tests.
func (s *Scheduler) Pending() int { return s.queue.Len() }
