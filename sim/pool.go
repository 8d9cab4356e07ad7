package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned when a pool is built with capacity < 1.
	ErrInvalidCapacity = errors.New("pool capacity must be >= 1")
	// ErrOverRelease is returned when more units are released than are in use.
	ErrOverRelease = errors.New("release exceeds units in use")
)

// PendingRequest is one leg of a JointRequest waiting in a single pool's queue.
type PendingRequest struct {
	Request *JointRequest
	Units   int
}

// ResourcePool is a fixed-capacity counter with a FIFO queue of pending requests.
// It is mutated only from event handlers, so it carries no locks.
type ResourcePool struct {
	Name     string
	Capacity int

	inUse    int
	queue    []*PendingRequest
	onChange func(*ResourcePool)
}

// NewResourcePool creates a pool with the given capacity.
func NewResourcePool(name string, capacity int) (*ResourcePool, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("pool %q capacity %d: %w", name, capacity, ErrInvalidCapacity)
	}
	return &ResourcePool{Name: name, Capacity: capacity}, nil
}

// InUse returns the number of units currently granted.
func (p *ResourcePool) InUse() int {
	return p.inUse
}

// Available returns the number of free units.
func (p *ResourcePool) Available() int {
	return p.Capacity - p.inUse
}

// Utilization returns the fraction of capacity in use.
func (p *ResourcePool) Utilization() float64 {
	return float64(p.inUse) / float64(p.Capacity)
}

// tryAcquire takes n units if they fit, without consulting the wait queue.
// Only the coordinator calls it, for requests at the front of every queue.
func (p *ResourcePool) tryAcquire(n int) bool {
	if n < 1 || p.inUse+n > p.Capacity {
		return false
	}
	p.inUse += n
	return true
}

// Release returns n units to the pool. The pool is left untouched on error.
func (p *ResourcePool) Release(n int) error {
	if n < 1 || p.inUse-n < 0 {
		return fmt.Errorf("pool %q release %d with %d in use: %w", p.Name, n, p.inUse, ErrOverRelease)
	}
	p.inUse -= n
	if p.onChange != nil {
		p.onChange(p)
	}
	return nil
}

// QueueLen returns the number of pending requests.
func (p *ResourcePool) QueueLen() int {
	return len(p.queue)
}

// Head returns the request at the front of the wait queue, or nil.
func (p *ResourcePool) Head() *PendingRequest {
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[0]
}

func (p *ResourcePool) enqueue(pr *PendingRequest) {
	p.queue = append(p.queue, pr)
}

// remove deletes the leg belonging to req, preserving the order of the rest.
func (p *ResourcePool) remove(req *JointRequest) bool {
	for i, pr := range p.queue {
		if pr.Request == req {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (p *ResourcePool) String() string {
	return fmt.Sprintf("%s(%d/%d, queue=%d)", p.Name, p.inUse, p.Capacity, len(p.queue))
}
