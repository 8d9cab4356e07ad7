package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNegativeDelay is returned when an event is scheduled with a negative relative delay.
	ErrNegativeDelay = errors.New("negative scheduling delay")
	// ErrInvalidTime is returned for NaN scheduling times.
	ErrInvalidTime = errors.New("invalid scheduling time")
)

// queueEntry is a scheduled event together with its tie-breaking sequence number.
type queueEntry struct {
	due       float64
	seq       uint64
	ev        Event
	cancelled bool
	index     int
}

// EventHandle identifies a scheduled event. It can be used to cancel the
// event before it fires.
type EventHandle struct {
	Time  float64
	Seq   uint64
	entry *queueEntry
	queue *EventQueue
}

// Cancel removes the event from consideration. Cancelling an event that
// already fired, or cancelling twice, is a no-op.
func (h EventHandle) Cancel() {
	if h.entry == nil || h.entry.cancelled || h.entry.index < 0 {
		return
	}
	h.entry.cancelled = true
	h.queue.live--
}

// eventHeap implements heap.Interface and orders entries by (due, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-PriorityQueue
type eventHeap []*queueEntry

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// EventQueue holds pending events in (due time, sequence) order and owns the
// simulation clock. The clock only advances when an event is popped and never
// moves backwards.
type EventQueue struct {
	entries eventHeap
	now     float64
	nextSeq uint64
	live    int
}

// NewEventQueue creates an empty queue with the clock at zero.
func NewEventQueue() *EventQueue {
	q := &EventQueue{entries: make(eventHeap, 0)}
	heap.Init(&q.entries)
	return q
}

// Now returns the current simulation time.
func (q *EventQueue) Now() float64 {
	return q.now
}

// Len returns the number of live (not cancelled) events.
func (q *EventQueue) Len() int {
	return q.live
}

// ScheduleAt schedules ev at absolute time t. Times at or before Now() are
// permitted and fire on the next pop, ordered by insertion.
func (q *EventQueue) ScheduleAt(t float64, ev Event) (EventHandle, error) {
	if math.IsNaN(t) {
		return EventHandle{}, fmt.Errorf("schedule %T: %w", ev, ErrInvalidTime)
	}
	q.nextSeq++
	e := &queueEntry{due: t, seq: q.nextSeq, ev: ev}
	heap.Push(&q.entries, e)
	q.live++
	return EventHandle{Time: t, Seq: e.seq, entry: e, queue: q}, nil
}

// ScheduleAfter schedules ev delay time units after Now().
func (q *EventQueue) ScheduleAfter(delay float64, ev Event) (EventHandle, error) {
	if math.IsNaN(delay) {
		return EventHandle{}, fmt.Errorf("schedule %T: %w", ev, ErrInvalidTime)
	}
	if delay < 0 {
		return EventHandle{}, fmt.Errorf("schedule %T after %v: %w", ev, delay, ErrNegativeDelay)
	}
	return q.ScheduleAt(q.now+delay, ev)
}

// skipCancelled drops cancelled entries sitting at the top of the heap.
func (q *EventQueue) skipCancelled() {
	for len(q.entries) > 0 && q.entries[0].cancelled {
		heap.Pop(&q.entries)
	}
}

// Peek returns the due time and sequence of the next live event.
// ok is false when the queue is empty.
func (q *EventQueue) Peek() (due float64, seq uint64, ok bool) {
	q.skipCancelled()
	if len(q.entries) == 0 {
		return 0, 0, false
	}
	return q.entries[0].due, q.entries[0].seq, true
}

// PopNext removes the next live event and advances the clock to its due time.
// Returns nil when the queue is empty.
func (q *EventQueue) PopNext() (Event, uint64) {
	q.skipCancelled()
	if len(q.entries) == 0 {
		return nil, 0
	}
	e := heap.Pop(&q.entries).(*queueEntry)
	q.live--
	if e.due > q.now {
		q.now = e.due
	}
	return e.ev, e.seq
}

// Drain drops every pending event without advancing the clock and returns
// how many live events were dropped.
func (q *EventQueue) Drain() int {
	n := q.live
	for _, e := range q.entries {
		e.index = -1
	}
	q.entries = q.entries[:0]
	q.live = 0
	return n
}
