package workload

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/workshop-sim/sim"
)

// JobSpec is one sampled job, ready to be submitted.
type JobSpec struct {
	Index       int      `yaml:"index"` // position in arrival order, 0-based
	Source      string   `yaml:"source"`
	Type        string   `yaml:"type"`
	ArrivalTime float64  `yaml:"arrival_time"`
	Duration    float64  `yaml:"duration"`
	Pools       []string `yaml:"pools"`
}

// GenerateJobs creates a job sequence from a WorkloadSpec.
// Deterministic given the same spec and seed.
// Returns jobs sorted by ArrivalTime with sequential indices; arrivals at or
// after horizon are dropped.
func GenerateJobs(spec *WorkloadSpec, horizon float64) ([]JobSpec, error) {
	if horizon <= 0 {
		return nil, nil
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}
	for i := range spec.Arrivals {
		if spec.Arrivals[i].Process != "cron" {
			continue
		}
		if err := spec.Arrivals[i].checkCronRange(horizon); err != nil {
			return nil, fmt.Errorf("arrivals[%d]: %w", i, err)
		}
	}

	streams := sim.NewRandomStreams(spec.Seed)
	arrivalsRNG := streams.Stream(sim.StreamArrivals)
	typesRNG := streams.Stream(sim.StreamJobTypes)

	weights := make([]float64, len(spec.JobTypes))
	samplers := make([]DurationSampler, len(spec.JobTypes))
	typeIndex := make(map[string]int, len(spec.JobTypes))
	for i, jt := range spec.JobTypes {
		weights[i] = jt.Weight
		s, err := NewDurationSampler(jt.Duration)
		if err != nil {
			return nil, fmt.Errorf("job type %q duration: %w", jt.Name, err)
		}
		samplers[i] = s
		typeIndex[jt.Name] = i
	}
	chooser := NewWeightedChoice(weights)
	allPools := spec.PoolNames()

	// Per-source arrival times first, so job type and duration draws happen in
	// global arrival order.
	type arrival struct {
		at     float64
		source int
	}
	var arrivals []arrival
	for i := range spec.Arrivals {
		src := &spec.Arrivals[i]
		sourceRNG := newRandFromSeed(arrivalsRNG.Int63())
		process := NewArrivalProcess(*src)

		now := 0.0
		for {
			now = process.Next(sourceRNG, now)
			if now >= horizon {
				break
			}
			if len(src.Windows) > 0 && !isInActiveWindow(now, src.Windows) {
				continue
			}
			arrivals = append(arrivals, arrival{at: now, source: i})
		}
	}

	// Sort by arrival time (stable sort preserves source order for ties)
	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].at < arrivals[j].at
	})
	if spec.NumJobs > 0 && len(arrivals) > spec.NumJobs {
		arrivals = arrivals[:spec.NumJobs]
	}

	jobs := make([]JobSpec, 0, len(arrivals))
	for i, a := range arrivals {
		src := &spec.Arrivals[a.source]
		var ti int
		if src.JobType != "" {
			ti = typeIndex[src.JobType]
		} else {
			ti = chooser.Pick(typesRNG)
		}
		jt := &spec.JobTypes[ti]
		durRNG := streams.Stream(sim.DurationStream(jt.Name))

		pools := jt.Pools
		if len(pools) == 0 {
			pools = allPools
		}
		jobs = append(jobs, JobSpec{
			Index:       i,
			Source:      src.ID,
			Type:        jt.Name,
			ArrivalTime: a.at,
			Duration:    samplers[ti].Sample(durRNG),
			Pools:       append([]string(nil), pools...),
		})
	}
	logrus.Infof("generated %d jobs from %d arrival sources over horizon %.1f", len(jobs), len(spec.Arrivals), horizon)
	return jobs, nil
}

// SubmitJobs hands every job to the simulator through Simulator.Submit.
func SubmitJobs(s *sim.Simulator, jobs []JobSpec) error {
	for _, j := range jobs {
		legs, err := s.Legs(j.Pools...)
		if err != nil {
			return fmt.Errorf("job %d (%s): %w", j.Index, j.Type, err)
		}
		if _, err := s.Submit(sim.JobFactory(j.Type, j.Duration, legs), j.ArrivalTime); err != nil {
			return fmt.Errorf("job %d (%s): %w", j.Index, j.Type, err)
		}
	}
	return nil
}

// isInActiveWindow checks if a timestamp falls within any active window.
func isInActiveWindow(t float64, windows []ActiveWindow) bool {
	for _, w := range windows {
		if t >= w.Start && t < w.End {
			return true
		}
	}
	return false
}

// newRandFromSeed creates a new *rand.Rand from a seed (avoids importing math/rand in callers).
func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
