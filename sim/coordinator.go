package sim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyRequest is returned for a joint request naming no pools.
	ErrEmptyRequest = errors.New("joint request names no pools")
	// ErrDuplicatePool is returned when a joint request names the same pool twice.
	ErrDuplicatePool = errors.New("joint request names a pool twice")
	// ErrUnsatisfiable is returned for legs that no pool state could ever grant.
	ErrUnsatisfiable = errors.New("joint request leg can never be satisfied")
	// ErrNotGranted is returned when releasing or cancelling a request in the wrong state.
	ErrNotGranted = errors.New("joint request is not granted")
	// ErrNotPending is returned when cancelling a request that is no longer pending.
	ErrNotPending = errors.New("joint request is not pending")
)

// Leg is a demand for Units from a single pool.
type Leg struct {
	Pool  *ResourcePool
	Units int
}

// Need builds a leg for one unit of pool.
func Need(pool *ResourcePool) Leg {
	return Leg{Pool: pool, Units: 1}
}

// RequestState represents the lifecycle state of a joint request.
type RequestState string

const (
	RequestPending   RequestState = "pending"
	RequestGranted   RequestState = "granted"
	RequestReleased  RequestState = "released"
	RequestCancelled RequestState = "cancelled"
)

// JointRequest asks for every leg at once. It is granted all-or-nothing.
type JointRequest struct {
	ID            uint64
	ProcessID     ProcessID
	Legs          []Leg
	SubmittedTime float64
	GrantedTime   float64
	State         RequestState

	onGrant func(*JointRequest)
}

// GrantObserver sees every grant after all pools have been incremented.
type GrantObserver interface {
	ObserveGrant(now float64, req *JointRequest)
}

// JointAcquisitionCoordinator grants multi-pool requests atomically.
//
// Every request is registered on all of its pools' queues at once, and
// requests are registered in a single global order, so any two requests
// appear in the same relative order in every pool they share. The oldest
// pending request is therefore at the front of all its queues and is granted
// as soon as capacity frees up, which rules out deadlock and starvation.
type JointAcquisitionCoordinator struct {
	pending  []*JointRequest // submission order
	nextID   uint64
	clock    func() float64
	observer GrantObserver

	releasing bool
}

// NewJointAcquisitionCoordinator creates a coordinator reading time from clock.
func NewJointAcquisitionCoordinator(clock func() float64) *JointAcquisitionCoordinator {
	return &JointAcquisitionCoordinator{clock: clock}
}

// SetObserver installs a grant observer. nil disables observation.
func (c *JointAcquisitionCoordinator) SetObserver(o GrantObserver) {
	c.observer = o
}

// Attach makes the coordinator re-evaluate queues whenever pool releases units.
func (c *JointAcquisitionCoordinator) Attach(pool *ResourcePool) {
	pool.onChange = func(*ResourcePool) {
		if !c.releasing {
			c.sweep()
		}
	}
}

// Pending returns the number of requests waiting for a grant.
func (c *JointAcquisitionCoordinator) Pending() int {
	return len(c.pending)
}

func validateLegs(legs []Leg) error {
	if len(legs) == 0 {
		return ErrEmptyRequest
	}
	seen := make(map[*ResourcePool]bool, len(legs))
	for _, l := range legs {
		if l.Pool == nil {
			return fmt.Errorf("nil pool: %w", ErrUnsatisfiable)
		}
		if seen[l.Pool] {
			return fmt.Errorf("pool %q: %w", l.Pool.Name, ErrDuplicatePool)
		}
		seen[l.Pool] = true
		if l.Units < 1 || l.Units > l.Pool.Capacity {
			return fmt.Errorf("pool %q units %d (capacity %d): %w", l.Pool.Name, l.Units, l.Pool.Capacity, ErrUnsatisfiable)
		}
	}
	return nil
}

// Acquire registers a joint request on every named pool and runs the grant
// test. onGrant is invoked, possibly before Acquire returns, once all legs are
// held.
func (c *JointAcquisitionCoordinator) Acquire(pid ProcessID, legs []Leg, onGrant func(*JointRequest)) (*JointRequest, error) {
	if err := validateLegs(legs); err != nil {
		return nil, fmt.Errorf("process %d acquire: %w", pid, err)
	}
	c.nextID++
	req := &JointRequest{
		ID:            c.nextID,
		ProcessID:     pid,
		Legs:          append([]Leg(nil), legs...),
		SubmittedTime: c.clock(),
		State:         RequestPending,
		onGrant:       onGrant,
	}
	for _, l := range req.Legs {
		l.Pool.enqueue(&PendingRequest{Request: req, Units: l.Units})
	}
	c.pending = append(c.pending, req)
	c.sweep()
	return req, nil
}

// grantable reports whether req is at the front of every one of its queues
// and every pool has room for its leg.
func (c *JointAcquisitionCoordinator) grantable(req *JointRequest) bool {
	for _, l := range req.Legs {
		head := l.Pool.Head()
		if head == nil || head.Request != req {
			return false
		}
		if l.Pool.Available() < l.Units {
			return false
		}
	}
	return true
}

// sweep grants every grantable request in submission order. A grant can only
// promote requests submitted after it, so one pass reaches the fixpoint.
func (c *JointAcquisitionCoordinator) sweep() {
	i := 0
	for i < len(c.pending) {
		req := c.pending[i]
		if !c.grantable(req) {
			i++
			continue
		}
		c.pending = append(c.pending[:i], c.pending[i+1:]...)
		c.grant(req)
	}
}

func (c *JointAcquisitionCoordinator) grant(req *JointRequest) {
	for _, l := range req.Legs {
		if !l.Pool.tryAcquire(l.Units) {
			// grantable checked every leg; a miss here means pool state was
			// mutated outside the coordinator.
			panic(fmt.Sprintf("grant of request %d: pool %s refused %d units", req.ID, l.Pool, l.Units))
		}
		l.Pool.remove(req)
	}
	req.State = RequestGranted
	req.GrantedTime = c.clock()
	logrus.Debugf("[%.3f] granted request %d to process %d", req.GrantedTime, req.ID, req.ProcessID)
	if c.observer != nil {
		c.observer.ObserveGrant(req.GrantedTime, req)
	}
	if req.onGrant != nil {
		req.onGrant(req)
	}
}

// Release returns every leg of a granted request in one step, then re-runs the
// grant test once. On error no pool is modified.
func (c *JointAcquisitionCoordinator) Release(req *JointRequest) error {
	if req == nil || req.State != RequestGranted {
		state := RequestState("nil")
		if req != nil {
			state = req.State
		}
		return fmt.Errorf("release request in state %s: %w", state, ErrNotGranted)
	}
	for _, l := range req.Legs {
		if l.Pool.InUse() < l.Units {
			return fmt.Errorf("request %d: pool %q release %d with %d in use: %w",
				req.ID, l.Pool.Name, l.Units, l.Pool.InUse(), ErrOverRelease)
		}
	}
	c.releasing = true
	for _, l := range req.Legs {
		if err := l.Pool.Release(l.Units); err != nil {
			c.releasing = false
			// checked above
			panic(err)
		}
	}
	c.releasing = false
	req.State = RequestReleased
	c.sweep()
	return nil
}

// withdrawAll removes every pending request from its queues without running
// the grant test, so nothing behind a withdrawn request is promoted.
func (c *JointAcquisitionCoordinator) withdrawAll() []*JointRequest {
	withdrawn := c.pending
	for _, req := range withdrawn {
		for _, l := range req.Legs {
			l.Pool.remove(req)
		}
		req.State = RequestCancelled
	}
	c.pending = nil
	return withdrawn
}

// Cancel withdraws a pending request from all its queues. Requests behind it
// may become grantable.
func (c *JointAcquisitionCoordinator) Cancel(req *JointRequest) error {
	if req == nil || req.State != RequestPending {
		return ErrNotPending
	}
	for _, l := range req.Legs {
		l.Pool.remove(req)
	}
	for i, p := range c.pending {
		if p == req {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	req.State = RequestCancelled
	c.sweep()
	return nil
}
