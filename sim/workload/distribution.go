package workload

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DurationSampler generates service durations.
type DurationSampler interface {
	// Sample returns a non-negative duration.
	Sample(rng *rand.Rand) float64
}

// UniformSampler draws durations uniformly from [min, max].
type UniformSampler struct {
	min, max float64
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	if s.min == s.max {
		return s.min
	}
	return s.min + rng.Float64()*(s.max-s.min)
}

// ConstantDuration always returns the same value.
type ConstantDuration struct {
	value float64
}

func (s *ConstantDuration) Sample(_ *rand.Rand) float64 {
	return s.value
}

// ExponentialSampler produces exponentially-distributed durations.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() * s.mean
}

// GaussianSampler produces clamped Gaussian durations.
type GaussianSampler struct {
	mean, stdDev float64
	min, max     float64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) float64 {
	if s.min == s.max {
		return s.min
	}
	val := rng.NormFloat64()*s.stdDev + s.mean
	return math.Min(s.max, math.Max(s.min, val))
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewDurationSampler creates a DurationSampler from a DistSpec.
func NewDurationSampler(spec DistSpec) (DurationSampler, error) {
	p := spec.Params
	switch spec.Type {
	case "uniform":
		if err := requireParam(p, "min", "max"); err != nil {
			return nil, err
		}
		if p["min"] < 0 || p["max"] < p["min"] {
			return nil, fmt.Errorf("uniform requires 0 <= min <= max, got [%v, %v]", p["min"], p["max"])
		}
		return &UniformSampler{min: p["min"], max: p["max"]}, nil

	case "constant":
		if err := requireParam(p, "value"); err != nil {
			return nil, err
		}
		if p["value"] < 0 {
			return nil, fmt.Errorf("constant duration must be non-negative, got %v", p["value"])
		}
		return &ConstantDuration{value: p["value"]}, nil

	case "exponential":
		if err := requireParam(p, "mean"); err != nil {
			return nil, err
		}
		if p["mean"] <= 0 {
			return nil, fmt.Errorf("exponential mean must be positive, got %v", p["mean"])
		}
		return &ExponentialSampler{mean: p["mean"]}, nil

	case "gaussian":
		if err := requireParam(p, "mean", "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		if p["min"] < 0 || p["max"] < p["min"] {
			return nil, fmt.Errorf("gaussian requires 0 <= min <= max, got [%v, %v]", p["min"], p["max"])
		}
		return &GaussianSampler{mean: p["mean"], stdDev: p["std_dev"], min: p["min"], max: p["max"]}, nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}

// WeightedChoice picks an index with probability proportional to its weight
// using inverse CDF via binary search.
type WeightedChoice struct {
	cdf []float64
}

// NewWeightedChoice builds a chooser. Non-positive weights are never chosen.
func NewWeightedChoice(weights []float64) *WeightedChoice {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	cdf := make([]float64, len(weights))
	cumulative := 0.0
	for i, w := range weights {
		if w > 0 && total > 0 {
			cumulative += w / total
		}
		cdf[i] = cumulative
	}
	// Ensure last positive CDF entry is exactly 1.0
	for i := len(cdf) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			cdf[i] = 1.0
			break
		}
	}
	return &WeightedChoice{cdf: cdf}
}

// Pick returns the chosen index.
func (c *WeightedChoice) Pick(rng *rand.Rand) int {
	if len(c.cdf) <= 1 {
		return 0
	}
	u := rng.Float64()
	idx := sort.Search(len(c.cdf), func(i int) bool { return c.cdf[i] > u })
	if idx >= len(c.cdf) {
		idx = len(c.cdf) - 1
	}
	return idx
}
