package workload

import (
	"math"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ArrivalSampler generates inter-arrival times for a source.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time in simulation time units.
	// Always returns a positive value.
	SampleIAT(rng *rand.Rand) float64
}

// minIAT keeps consecutive arrivals strictly ordered in time.
const minIAT = 1e-9

// PoissonSampler generates exponentially-distributed inter-arrival times (CV=1).
type PoissonSampler struct {
	rate float64 // arrivals per time unit
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) float64 {
	return math.Max(rng.ExpFloat64()/s.rate, minIAT)
}

// GammaSampler generates Gamma-distributed inter-arrival times.
// CV > 1 produces bursty arrivals.
// Implemented using Marsaglia-Tsang's method for shape >= 1,
// with transformation for shape < 1.
type GammaSampler struct {
	shape float64 // 1/CV² (alpha parameter)
	scale float64 // CV²/rate (beta parameter)
}

func (s *GammaSampler) SampleIAT(rng *rand.Rand) float64 {
	return math.Max(gammaRand(rng, s.shape, s.scale), minIAT)
}

// gammaRand samples from Gamma(shape, scale) using Marsaglia-Tsang's method.
// For shape >= 1: direct method.
// For shape < 1: Gamma(shape) = Gamma(shape+1) * U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		// Squeeze test
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler generates Weibull-distributed inter-arrival times.
type WeibullSampler struct {
	shape float64 // Weibull k parameter
	scale float64 // Weibull λ parameter
}

func (s *WeibullSampler) SampleIAT(rng *rand.Rand) float64 {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // prevent -ln(0) = +Inf
	}
	return math.Max(s.scale*math.Pow(-math.Log(u), 1.0/s.shape), minIAT)
}

// ConstantSampler spaces arrivals exactly interval apart.
type ConstantSampler struct {
	interval float64
}

func (s *ConstantSampler) SampleIAT(_ *rand.Rand) float64 {
	return math.Max(s.interval, minIAT)
}

// ArrivalProcess produces absolute arrival times for one source.
type ArrivalProcess interface {
	// Next returns the first arrival strictly after now.
	Next(rng *rand.Rand, now float64) float64
}

// iatProcess adapts an ArrivalSampler to an ArrivalProcess.
type iatProcess struct {
	sampler ArrivalSampler
}

func (p iatProcess) Next(rng *rand.Rand, now float64) float64 {
	return now + p.sampler.SampleIAT(rng)
}

// CronProcess emits arrivals at the instants matched by a cron schedule.
// Simulation time t maps to epoch + t*unit on the calendar. The process
// remembers the last calendar instant it produced, so float rounding of the
// simulation clock can never yield the same slot twice.
type CronProcess struct {
	schedule cron.Schedule
	epoch    time.Time
	unit     time.Duration
	last     time.Time
}

// NewCronProcess builds a cron-driven arrival process.
func NewCronProcess(schedule cron.Schedule, epoch time.Time, unit time.Duration) *CronProcess {
	return &CronProcess{schedule: schedule, epoch: epoch, unit: unit}
}

// Next returns +Inf once the calendar runs past what a time.Duration since
// epoch can represent, about 292 years.
func (p *CronProcess) Next(_ *rand.Rand, now float64) float64 {
	if !fitsDuration(now, p.unit) {
		return math.Inf(1)
	}
	at := p.epoch.Add(time.Duration(now * float64(p.unit)))
	if p.last.After(at) {
		at = p.last
	}
	next := p.schedule.Next(at)
	if next.IsZero() {
		// schedule never fires again
		return math.Inf(1)
	}
	since := next.Sub(p.epoch)
	if since == math.MaxInt64 {
		// Sub saturated
		return math.Inf(1)
	}
	p.last = next
	return float64(since) / float64(p.unit)
}

// fitsDuration reports whether t time units of length unit fit in a time.Duration.
func fitsDuration(t float64, unit time.Duration) bool {
	return t*float64(unit) < math.MaxInt64
}

// NewArrivalProcess creates an ArrivalProcess from a validated spec.
func NewArrivalProcess(spec ArrivalSpec) ArrivalProcess {
	warnUnusedFields(&spec)
	rate := spec.Rate
	// Defensive floor: avoid division by zero or numerical instability
	if rate < 1e-15 {
		rate = 1e-15
	}
	switch spec.Process {
	case "poisson":
		return iatProcess{&PoissonSampler{rate: rate}}

	case "gamma":
		cv := 1.0
		if spec.CV != nil && *spec.CV > 0 {
			cv = *spec.CV
		}
		// shape = 1/CV², scale = mean * CV² = (1/rate) * CV²
		shape := 1.0 / (cv * cv)
		scale := (1.0 / rate) * cv * cv
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return iatProcess{&PoissonSampler{rate: rate}}
		}
		return iatProcess{&GammaSampler{shape: shape, scale: scale}}

	case "weibull":
		cv := 1.0
		if spec.CV != nil && *spec.CV > 0 {
			cv = *spec.CV
		}
		k := weibullShapeFromCV(cv)
		// scale = mean / Γ(1 + 1/k)
		scale := (1.0 / rate) / math.Gamma(1.0+1.0/k)
		return iatProcess{&WeibullSampler{shape: k, scale: scale}}

	case "constant":
		return iatProcess{&ConstantSampler{interval: spec.Interval}}

	case "cron":
		schedule, epoch, unit, err := spec.cronCalendar()
		if err != nil {
			logrus.Errorf("arrival source %q: %v; source disabled", spec.ID, err)
			return neverProcess{}
		}
		return NewCronProcess(schedule, epoch, unit)

	default:
		// Validated before reaching here; defensive fallback
		return iatProcess{&PoissonSampler{rate: rate}}
	}
}

// neverProcess never produces an arrival.
type neverProcess struct{}

func (neverProcess) Next(*rand.Rand, float64) float64 { return math.Inf(1) }

// weibullShapeFromCV finds Weibull shape parameter k such that
// CV² = Γ(1+2/k)/Γ(1+1/k)² - 1, using bisection.
// Range: k ∈ [0.1, 100], tolerance: |CV_computed - CV_target| < 0.001.
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV is monotonically decreasing in k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f after 100 iterations; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

// weibullCV computes the coefficient of variation for Weibull(k).
func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}
