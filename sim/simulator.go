// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/workshop-sim/sim/trace"
)

var (
	// ErrNilFactory is returned when Submit is given no process factory.
	ErrNilFactory = errors.New("process factory must not be nil")
	// ErrAlreadyHolding is returned when a process acquires while holding a grant.
	ErrAlreadyHolding = errors.New("process already holds a joint request")
	// ErrUnknownYield is returned when a behavior yields an unrecognized kind.
	ErrUnknownYield = errors.New("unknown yield kind")
)

// RunResult describes how a call to Run ended.
type RunResult struct {
	EndTime         float64 // the horizon when truncated, the clock otherwise
	Horizon         float64
	EventsProcessed int // events executed during this call
	Completed       int // processes terminated normally so far
	Failed          int // processes terminated by an error so far
	PendingEvents   int // live events left in the queue past the horizon
	Suspended       int // processes neither terminated nor abandoned
	// Truncated is true when the run stopped at the horizon with work left.
	// False means the queue drained naturally.
	Truncated bool
}

// Simulator is the core object that holds simulation time, the resource pools
// and the event loop. It is strictly single-threaded: exactly one process runs
// at any simulated instant, and pool state changes only inside event handlers.
type Simulator struct {
	Horizon float64

	queue       *EventQueue
	pools       map[string]*ResourcePool
	poolOrder   []*ResourcePool
	coordinator *JointAcquisitionCoordinator
	processes   map[ProcessID]*Process
	nextPID     ProcessID
	sink        MetricsSink
	trace       *trace.SimulationTrace

	running         *Process
	eventsProcessed int
	completed       int
	failed          int
}

// NewSimulator builds the pools described by cfg. A nil sink discards metrics.
func NewSimulator(cfg SimConfig, sink MetricsSink) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if sink == nil {
		sink = DiscardSink{}
	}
	s := &Simulator{
		Horizon:   cfg.Horizon,
		queue:     NewEventQueue(),
		pools:     make(map[string]*ResourcePool, len(cfg.PoolCapacities)),
		processes: make(map[ProcessID]*Process),
		sink:      sink,
	}
	s.coordinator = NewJointAcquisitionCoordinator(s.queue.Now)
	s.coordinator.SetObserver(s)
	for _, name := range cfg.PoolNames() {
		pool, err := NewResourcePool(name, cfg.PoolCapacities[name])
		if err != nil {
			return nil, err
		}
		s.coordinator.Attach(pool)
		s.pools[name] = pool
		s.poolOrder = append(s.poolOrder, pool)
	}
	return s, nil
}

// SetTrace installs a trace recorder. nil disables tracing.
func (sim *Simulator) SetTrace(st *trace.SimulationTrace) {
	sim.trace = st
}

// Now returns the current simulation time.
func (sim *Simulator) Now() float64 {
	return sim.queue.Now()
}

// Pool looks up a pool by name.
func (sim *Simulator) Pool(name string) (*ResourcePool, bool) {
	p, ok := sim.pools[name]
	return p, ok
}

// Pools returns every pool sorted by name.
func (sim *Simulator) Pools() []*ResourcePool {
	return append([]*ResourcePool(nil), sim.poolOrder...)
}

// Legs builds one-unit legs for the named pools.
func (sim *Simulator) Legs(names ...string) ([]Leg, error) {
	legs := make([]Leg, 0, len(names))
	for _, name := range names {
		p, ok := sim.pools[name]
		if !ok {
			return nil, fmt.Errorf("unknown pool %q", name)
		}
		legs = append(legs, Need(p))
	}
	return legs, nil
}

// Process returns the process with the given id, once it has arrived.
func (sim *Simulator) Process(id ProcessID) (*Process, bool) {
	p, ok := sim.processes[id]
	return p, ok
}

// Schedule pushes an event delay time units into the future.
// Note, this is the raw engine entry point; new work should go through Submit.
func (sim *Simulator) Schedule(delay float64, ev Event) (EventHandle, error) {
	return sim.queue.ScheduleAfter(delay, ev)
}

// Submit schedules the arrival of a new process at absolute time at. It is the
// only insertion point for new work. The process id is assigned immediately.
func (sim *Simulator) Submit(factory ProcessFactory, at float64) (EventHandle, error) {
	if factory == nil {
		return EventHandle{}, ErrNilFactory
	}
	sim.nextPID++
	return sim.queue.ScheduleAt(at, &ArrivalEvent{id: sim.nextPID, factory: factory})
}

// Step executes exactly one event. It returns false when the queue is empty.
func (sim *Simulator) Step() bool {
	ev, seq := sim.queue.PopNext()
	if ev == nil {
		return false
	}
	sim.eventsProcessed++
	logrus.Debugf("[t=%.3f seq=%d] Executing %T", sim.Now(), seq, ev)
	if sim.trace != nil {
		sim.trace.RecordEvent(trace.EventRecord{
			Time:      sim.Now(),
			Seq:       seq,
			Kind:      string(ev.Kind()),
			ProcessID: int64(ev.ProcessID()),
		})
	}
	ev.Execute(sim)
	return true
}

// Run executes events in (time, sequence) order while the next one is due at
// or before until. Work due later stays suspended; a later Run can resume it.
func (sim *Simulator) Run(until float64) RunResult {
	start := sim.eventsProcessed
	for {
		due, _, ok := sim.queue.Peek()
		if !ok || due > until {
			break
		}
		sim.Step()
	}

	res := RunResult{
		EndTime:         sim.Now(),
		Horizon:         until,
		EventsProcessed: sim.eventsProcessed - start,
		Completed:       sim.completed,
		Failed:          sim.failed,
		PendingEvents:   sim.queue.Len(),
		Suspended:       sim.suspendedCount(),
	}
	res.Truncated = res.PendingEvents > 0
	if res.Truncated {
		res.EndTime = until
		logrus.Warnf("[t=%.3f] horizon reached with %d pending events and %d suspended processes",
			until, res.PendingEvents, res.Suspended)
	} else if res.Suspended > 0 {
		logrus.Errorf("[t=%.3f] queue drained with %d processes still suspended", sim.Now(), res.Suspended)
	}
	logrus.Infof("[t=%.3f] Simulation ended: %d completed, truncated=%v", res.EndTime, res.Completed, res.Truncated)
	return res
}

// RunToHorizon runs until the configured horizon.
func (sim *Simulator) RunToHorizon() RunResult {
	return sim.Run(sim.Horizon)
}

// Shutdown abandons every process still suspended. Pending joint requests are
// withdrawn without granting anything, granted ones are force-released, and
// queued events are dropped.
// No completion metrics are emitted for abandoned processes; an AbandonSink
// is told about each of them. Afterwards every pool has InUse == 0.
func (sim *Simulator) Shutdown() []*Process {
	live := sim.liveProcesses()

	// Waiting requests go before any force-release, so no abandoned process
	// is granted anything.
	if withdrawn := sim.coordinator.withdrawAll(); len(withdrawn) > 0 {
		logrus.Infof("shutdown: withdrew %d pending requests", len(withdrawn))
	}
	for _, p := range live {
		p.waiting = nil
		p.timeout.Cancel()
		p.wakeup.Cancel()
		if p.held != nil {
			sim.forceRelease(p)
		}
		p.State = StateAbandoned
		if as, ok := sim.sink.(AbandonSink); ok {
			as.RecordAbandoned(p)
		}
	}
	if dropped := sim.queue.Drain(); dropped > 0 {
		logrus.Infof("shutdown: dropped %d queued events", dropped)
	}
	if len(live) > 0 {
		logrus.Warnf("shutdown: abandoned %d processes at t=%.3f", len(live), sim.Now())
	}
	return live
}

func (sim *Simulator) forceRelease(p *Process) {
	req := p.held
	if err := sim.coordinator.Release(req); err != nil {
		logrus.Errorf("process %d: force release: %v", p.ID, err)
		return
	}
	p.held = nil
	sim.recordRelease(req, true)
	logrus.Warnf("[t=%.3f] force-released request %d of process %d", sim.Now(), req.ID, p.ID)
}

func (sim *Simulator) liveProcesses() []*Process {
	ids := make([]ProcessID, 0, len(sim.processes))
	for id, p := range sim.processes {
		if p.State != StateTerminated && p.State != StateAbandoned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	live := make([]*Process, 0, len(ids))
	for _, id := range ids {
		live = append(live, sim.processes[id])
	}
	return live
}

func (sim *Simulator) suspendedCount() int {
	n := 0
	for _, p := range sim.processes {
		if p.State != StateTerminated && p.State != StateAbandoned {
			n++
		}
	}
	return n
}

// resume runs p until its next suspension point, then applies the yield.
func (sim *Simulator) resume(p *Process) {
	if p.State == StateTerminated || p.State == StateAbandoned {
		return
	}
	if sim.running != nil {
		panic(fmt.Sprintf("resume of process %d while process %d is running", p.ID, sim.running.ID))
	}
	p.State = StateRunning
	sim.running = p
	y := p.Behavior.Resume(&ProcessContext{sim: sim, proc: p})
	sim.running = nil
	sim.apply(p, y)
}

func (sim *Simulator) apply(p *Process, y Yield) {
	switch y.Kind {
	case YieldTimeout:
		h, err := sim.queue.ScheduleAfter(y.Delay, &TimeoutEvent{proc: p})
		if err != nil {
			sim.terminate(p, fmt.Errorf("process %d timeout: %w", p.ID, err))
			return
		}
		p.timeout = h
		p.State = StateWaitingTimeout
	case YieldAcquire:
		if p.held != nil {
			sim.terminate(p, fmt.Errorf("process %d acquire: %w", p.ID, ErrAlreadyHolding))
			return
		}
		p.State = StateWaitingResource
		req, err := sim.coordinator.Acquire(p.ID, y.Legs, func(r *JointRequest) { sim.onGrant(p, r) })
		if err != nil {
			sim.terminate(p, err)
			return
		}
		if req.State == RequestPending {
			p.waiting = req
			logrus.Debugf("[t=%.3f] process %d waiting on request %d", sim.Now(), p.ID, req.ID)
		}
	case YieldDone:
		sim.terminate(p, nil)
	case YieldFail:
		err := y.Err
		if err == nil {
			err = fmt.Errorf("process %d failed", p.ID)
		}
		sim.terminate(p, err)
	default:
		sim.terminate(p, fmt.Errorf("process %d yield %d: %w", p.ID, y.Kind, ErrUnknownYield))
	}
}

// onGrant runs inside the coordinator at the grant instant. The process is
// resumed by a zero-delay event so that it never runs nested inside another.
func (sim *Simulator) onGrant(p *Process, req *JointRequest) {
	p.waiting = nil
	p.held = req
	h, err := sim.queue.ScheduleAfter(0, &GrantEvent{proc: p})
	if err != nil {
		// zero delay is always accepted
		panic(err)
	}
	p.wakeup = h
	if p.StartTime == nil {
		start := sim.Now()
		p.StartTime = &start
	}
}

func (sim *Simulator) terminate(p *Process, err error) {
	if p.held != nil {
		if err == nil {
			logrus.Warnf("process %d terminated while holding request %d; releasing", p.ID, p.held.ID)
		}
		sim.forceRelease(p)
	}
	now := sim.Now()
	p.CompletionTime = &now
	p.State = StateTerminated
	if err != nil {
		p.Err = err
		sim.failed++
		logrus.Errorf("[t=%.3f] process %d terminated with error: %v", now, p.ID, err)
		return
	}
	sim.completed++
	logrus.Debugf("[t=%.3f] process %d terminated", now, p.ID)
}

// releaseHeld is the ProcessContext path for returning a process's grant.
func (sim *Simulator) releaseHeld(p *Process) error {
	req := p.held
	if err := sim.coordinator.Release(req); err != nil {
		return err
	}
	p.held = nil
	sim.recordRelease(req, false)
	return nil
}

func (sim *Simulator) recordRelease(req *JointRequest, forced bool) {
	if sim.trace == nil {
		return
	}
	sim.trace.RecordRelease(trace.ReleaseRecord{
		Time:      sim.Now(),
		RequestID: req.ID,
		ProcessID: int64(req.ProcessID),
		Forced:    forced,
	})
}

// ObserveGrant implements GrantObserver and records the grant in the trace.
func (sim *Simulator) ObserveGrant(now float64, req *JointRequest) {
	if sim.trace == nil {
		return
	}
	levels := make([]trace.PoolLevel, 0, len(req.Legs))
	for _, l := range req.Legs {
		levels = append(levels, trace.PoolLevel{
			Pool:     l.Pool.Name,
			InUse:    l.Pool.InUse(),
			Capacity: l.Pool.Capacity,
			Queued:   l.Pool.QueueLen(),
		})
	}
	sim.trace.RecordGrant(trace.GrantRecord{
		Time:      now,
		RequestID: req.ID,
		ProcessID: int64(req.ProcessID),
		Waited:    now - req.SubmittedTime,
		Pools:     levels,
	})
}

func (sim *Simulator) emit(rec JobRecord) {
	for _, ev := range rec.Metrics() {
		sim.sink.RecordMetric(ev)
	}
	sim.sink.RecordJob(rec)
}
