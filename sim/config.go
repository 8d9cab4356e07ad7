package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNoPools is returned when a configuration declares no resource pools.
var ErrNoPools = errors.New("at least one pool is required")

// SimConfig groups the engine-level options of a run.
type SimConfig struct {
	Horizon        float64        // simulated time at which Run stops advancing
	PoolCapacities map[string]int // pool name → capacity (each must be >= 1)
	Seed           int64          // master seed for every sampling subsystem
}

// NewSimConfig builds a SimConfig. The capacity map is copied.
func NewSimConfig(horizon float64, capacities map[string]int, seed int64) SimConfig {
	caps := make(map[string]int, len(capacities))
	for k, v := range capacities {
		caps[k] = v
	}
	return SimConfig{Horizon: horizon, PoolCapacities: caps, Seed: seed}
}

// Validate reports fatal configuration errors.
func (c SimConfig) Validate() error {
	if math.IsNaN(c.Horizon) || c.Horizon < 0 {
		return fmt.Errorf("horizon must be a non-negative number, got %v", c.Horizon)
	}
	if len(c.PoolCapacities) == 0 {
		return ErrNoPools
	}
	for _, name := range c.PoolNames() {
		if name == "" {
			return fmt.Errorf("pool name must not be empty")
		}
		if capacity := c.PoolCapacities[name]; capacity < 1 {
			return fmt.Errorf("pool %q capacity %d: %w", name, capacity, ErrInvalidCapacity)
		}
	}
	return nil
}

// PoolNames returns the configured pool names in sorted order.
func (c SimConfig) PoolNames() []string {
	names := make([]string, 0, len(c.PoolCapacities))
	for name := range c.PoolCapacities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
