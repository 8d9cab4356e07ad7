package sim

import (
	"errors"
	"fmt"
)

// ErrNoHeldResources is returned by ProcessContext.Release when the process holds nothing.
var ErrNoHeldResources = errors.New("process holds no resources")

// ProcessID identifies a process within one simulation. IDs start at 1.
type ProcessID int64

// ProcessState is the scheduler's view of a process.
type ProcessState string

const (
	StateReady           ProcessState = "ready"
	StateRunning         ProcessState = "running"
	StateWaitingTimeout  ProcessState = "waiting_timeout"
	StateWaitingResource ProcessState = "waiting_resource"
	StateTerminated      ProcessState = "terminated"
	// StateAbandoned marks a process still suspended when the simulator shut down.
	StateAbandoned ProcessState = "abandoned"
)

// YieldKind tells the scheduler why a process gave up control.
type YieldKind int

const (
	YieldDone YieldKind = iota
	YieldTimeout
	YieldAcquire
	YieldFail
)

// Yield is returned by Behavior.Resume at each suspension point.
type Yield struct {
	Kind  YieldKind
	Delay float64
	Legs  []Leg
	Err   error
}

// Timeout suspends the process for d time units.
func Timeout(d float64) Yield {
	return Yield{Kind: YieldTimeout, Delay: d}
}

// Acquire suspends the process until every leg is granted together.
func Acquire(legs ...Leg) Yield {
	return Yield{Kind: YieldAcquire, Legs: legs}
}

// Done terminates the process.
func Done() Yield {
	return Yield{Kind: YieldDone}
}

// Fail terminates the process with err. Resources it holds are returned.
func Fail(err error) Yield {
	return Yield{Kind: YieldFail, Err: err}
}

// Behavior is the logic of a process, written as an explicit state machine.
// Resume runs uninterrupted from the current state to the next suspension
// point and reports it.
type Behavior interface {
	Resume(pc *ProcessContext) Yield
}

// ProcessFactory builds the behavior of a newly arrived process.
type ProcessFactory func(id ProcessID) Behavior

// Process is a suspendable unit of logic driven by the Simulator.
// Only the Simulator changes State.
type Process struct {
	ID             ProcessID
	State          ProcessState
	ArrivalTime    float64
	StartTime      *float64
	CompletionTime *float64
	Behavior       Behavior
	// Err is set when the process was terminated by a programming error in its logic.
	Err error

	held    *JointRequest
	waiting *JointRequest
	timeout EventHandle
	wakeup  EventHandle
}

// Held returns the granted joint request the process currently holds, or nil.
func (p *Process) Held() *JointRequest {
	return p.held
}

func (p *Process) String() string {
	return fmt.Sprintf("Process: (ID: %d, State: %s, ArrivalTime: %.3f)", p.ID, p.State, p.ArrivalTime)
}

// ProcessContext is handed to Behavior.Resume and is valid only during that call.
type ProcessContext struct {
	sim  *Simulator
	proc *Process
}

// Now returns the current simulation time.
func (pc *ProcessContext) Now() float64 {
	return pc.sim.Now()
}

// Process returns the running process.
func (pc *ProcessContext) Process() *Process {
	return pc.proc
}

// Pool looks up a pool by name.
func (pc *ProcessContext) Pool(name string) (*ResourcePool, bool) {
	return pc.sim.Pool(name)
}

// Release returns every unit of the process's granted joint request at once.
func (pc *ProcessContext) Release() error {
	if pc.proc.held == nil {
		return fmt.Errorf("process %d: %w", pc.proc.ID, ErrNoHeldResources)
	}
	if err := pc.sim.releaseHeld(pc.proc); err != nil {
		return fmt.Errorf("process %d: %w", pc.proc.ID, err)
	}
	return nil
}

// Emit sends a completed job's record and its metric events to the sink.
func (pc *ProcessContext) Emit(rec JobRecord) {
	pc.sim.emit(rec)
}
