package sim

import (
	"testing"
)

// noopEvent is a bare queue entry for EventQueue tests.
type noopEvent struct {
	name string
}

func (e *noopEvent) Kind() EventKind      { return EventKind("noop") }
func (e *noopEvent) ProcessID() ProcessID { return 0 }
func (e *noopEvent) Execute(*Simulator)   {}

// scripted runs one step function per Resume call and finishes when the
// script runs out.
type scripted struct {
	steps []func(pc *ProcessContext) Yield
	next  int
}

func (b *scripted) Resume(pc *ProcessContext) Yield {
	if b.next >= len(b.steps) {
		return Done()
	}
	step := b.steps[b.next]
	b.next++
	return step(pc)
}

func script(steps ...func(pc *ProcessContext) Yield) ProcessFactory {
	return func(ProcessID) Behavior {
		return &scripted{steps: steps}
	}
}

func mustSimulator(t *testing.T, horizon float64, pools map[string]int, sink MetricsSink) *Simulator {
	t.Helper()
	s, err := NewSimulator(NewSimConfig(horizon, pools, 1), sink)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

func mustLegs(t *testing.T, s *Simulator, names ...string) []Leg {
	t.Helper()
	legs, err := s.Legs(names...)
	if err != nil {
		t.Fatalf("Legs(%v): %v", names, err)
	}
	return legs
}

func mustSubmit(t *testing.T, s *Simulator, f ProcessFactory, at float64) {
	t.Helper()
	if _, err := s.Submit(f, at); err != nil {
		t.Fatalf("Submit at %v: %v", at, err)
	}
}

// submitRandomJobs submits n jobs with exponential inter-arrival times,
// uniform durations and a random non-empty subset of the simulator's pools.
func submitRandomJobs(t *testing.T, s *Simulator, seed int64, n int, rate float64) {
	t.Helper()
	rng := NewRandomStreams(seed)
	arrivals := rng.Stream(StreamArrivals)
	durations := rng.Stream(DurationStream("random"))
	types := rng.Stream(StreamJobTypes)
	pools := s.Pools()

	now := 0.0
	for i := 0; i < n; i++ {
		now += arrivals.ExpFloat64() / rate
		var legs []Leg
		for len(legs) == 0 {
			for _, p := range pools {
				if types.Intn(2) == 1 {
					legs = append(legs, Need(p))
				}
			}
		}
		dur := 1 + durations.Float64()*9
		mustSubmit(t, s, JobFactory("random", dur, legs), now)
	}
}

// checkPoolAccounting verifies each pool's InUse matches the grants held by
// live processes and stays within capacity.
func checkPoolAccounting(t *testing.T, s *Simulator) {
	t.Helper()
	held := make(map[*ResourcePool]int)
	for _, p := range s.processes {
		if p.held == nil {
			continue
		}
		for _, l := range p.held.Legs {
			held[l.Pool] += l.Units
		}
	}
	for _, pool := range s.Pools() {
		if pool.InUse() < 0 || pool.InUse() > pool.Capacity {
			t.Fatalf("[t=%.3f] pool %s out of bounds", s.Now(), pool)
		}
		if held[pool] != pool.InUse() {
			t.Fatalf("[t=%.3f] pool %s: InUse %d but processes hold %d", s.Now(), pool.Name, pool.InUse(), held[pool])
		}
	}
}
