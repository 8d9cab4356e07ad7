package sim

import "github.com/sirupsen/logrus"

// EventKind names an event type in traces and logs.
type EventKind string

const (
	EventKindArrival EventKind = "arrival"
	EventKindTimeout EventKind = "timeout"
	EventKindGrant   EventKind = "grant"
)

// Event defines the interface for all simulation events.
// The due time and sequence number live in the EventQueue entry; an Event is
// only the action to perform when it fires.
type Event interface {
	Kind() EventKind
	// ProcessID returns the process the event resumes, or 0 for none.
	ProcessID() ProcessID
	Execute(*Simulator)
}

// ArrivalEvent creates a new process from its factory and runs it to its
// first suspension point.
type ArrivalEvent struct {
	id      ProcessID
	factory ProcessFactory
}

func (e *ArrivalEvent) Kind() EventKind      { return EventKindArrival }
func (e *ArrivalEvent) ProcessID() ProcessID { return e.id }

// Execute instantiates the process and hands it to the scheduler.
func (e *ArrivalEvent) Execute(sim *Simulator) {
	logrus.Debugf("<< Arrival: process %d at %.3f", e.id, sim.Now())
	p := &Process{
		ID:          e.id,
		State:       StateReady,
		ArrivalTime: sim.Now(),
		Behavior:    e.factory(e.id),
	}
	sim.processes[p.ID] = p
	sim.resume(p)
}

// TimeoutEvent resumes a process whose requested delay has elapsed.
type TimeoutEvent struct {
	proc *Process
}

func (e *TimeoutEvent) Kind() EventKind      { return EventKindTimeout }
func (e *TimeoutEvent) ProcessID() ProcessID { return e.proc.ID }

// Execute resumes the sleeping process.
func (e *TimeoutEvent) Execute(sim *Simulator) {
	e.proc.timeout = EventHandle{}
	sim.resume(e.proc)
}

// GrantEvent resumes a process whose joint request was granted. It is
// scheduled with zero delay, so the process continues at the grant instant.
type GrantEvent struct {
	proc *Process
}

func (e *GrantEvent) Kind() EventKind      { return EventKindGrant }
func (e *GrantEvent) ProcessID() ProcessID { return e.proc.ID }

// Execute resumes the process now holding its resources.
func (e *GrantEvent) Execute(sim *Simulator) {
	e.proc.wakeup = EventHandle{}
	sim.resume(e.proc)
}
