package workload

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/workshop-sim/sim"
	"github.com/inference-sim/workshop-sim/sim/storage"
)

// Default calendar used by cron arrival sources when none is given.
const (
	DefaultCronEpoch    = "2024-01-01T00:00:00Z" // a Monday
	DefaultCronTimeUnit = "1m"
)

// WorkloadSpec is the top-level workshop configuration.
// Loaded from YAML via LoadWorkloadSpec(path).
type WorkloadSpec struct {
	Version  string         `yaml:"version"`
	Seed     int64          `yaml:"seed"`
	Horizon  float64        `yaml:"horizon"`
	NumJobs  int            `yaml:"num_jobs,omitempty"` // 0 = unlimited (use horizon only)
	Pools    map[string]int `yaml:"pools"`
	Arrivals []ArrivalSpec  `yaml:"arrivals"`
	JobTypes []JobTypeSpec  `yaml:"job_types"`
}

// ArrivalSpec configures one arrival source.
type ArrivalSpec struct {
	ID       string   `yaml:"id"`
	Process  string   `yaml:"process"`
	Rate     float64  `yaml:"rate,omitempty"`     // arrivals per time unit (poisson, gamma, weibull)
	CV       *float64 `yaml:"cv,omitempty"`       // coefficient of variation (gamma, weibull)
	Interval float64  `yaml:"interval,omitempty"` // constant spacing (constant)
	// Cron sources map simulation time onto a calendar starting at Epoch,
	// one time unit per TimeUnit.
	Schedule string         `yaml:"schedule,omitempty"`
	Epoch    string         `yaml:"epoch,omitempty"`
	TimeUnit string         `yaml:"time_unit,omitempty"`
	JobType  string         `yaml:"job_type,omitempty"` // fixed type; empty = weighted choice
	Windows  []ActiveWindow `yaml:"windows,omitempty"`
}

// ActiveWindow is a half-open period [Start, End) during which a source emits jobs.
type ActiveWindow struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// JobTypeSpec describes one kind of job.
type JobTypeSpec struct {
	Name     string   `yaml:"name"`
	Weight   float64  `yaml:"weight"`
	Duration DistSpec `yaml:"duration"`
	Pools    []string `yaml:"pools,omitempty"` // empty = every pool
}

// DistSpec parameterizes a service duration distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Valid value registries.
var (
	validArrivalProcesses = map[string]bool{
		"poisson": true, "gamma": true, "weibull": true, "constant": true, "cron": true,
	}
	validDistTypes = map[string]bool{
		"uniform": true, "constant": true, "exponential": true, "gaussian": true,
	}
)

// LoadWorkloadSpec reads and parses a YAML workload specification from a local
// path or any afs URL (mem://, s3://, gs://...).
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(location string) (*WorkloadSpec, error) {
	data, err := storage.Read(context.Background(), location)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	return ParseWorkloadSpec(data)
}

// ParseWorkloadSpec parses YAML bytes with strict key checking.
func ParseWorkloadSpec(data []byte) (*WorkloadSpec, error) {
	var spec WorkloadSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	if spec.Version == "" {
		spec.Version = "1"
	}
	return &spec, nil
}

// DefaultWorkloadSpec is the built-in workshop: two pools and three job types
// competing for both.
func DefaultWorkloadSpec() *WorkloadSpec {
	return &WorkloadSpec{
		Version: "1",
		Seed:    42,
		Horizon: 480,
		Pools:   map[string]int{"workers": 2, "stations": 3},
		Arrivals: []ArrivalSpec{
			{ID: "walk-in", Process: "poisson", Rate: 0.2},
		},
		JobTypes: []JobTypeSpec{
			{Name: "print", Weight: 0.5, Duration: DistSpec{Type: "uniform", Params: map[string]float64{"min": 5, "max": 15}}},
			{Name: "plot", Weight: 0.3, Duration: DistSpec{Type: "uniform", Params: map[string]float64{"min": 10, "max": 30}}},
			{Name: "bind", Weight: 0.2, Duration: DistSpec{Type: "uniform", Params: map[string]float64{"min": 20, "max": 40}}},
		},
	}
}

// SimConfig returns the engine configuration carried by the spec.
func (s *WorkloadSpec) SimConfig() sim.SimConfig {
	return sim.NewSimConfig(s.Horizon, s.Pools, s.Seed)
}

// PoolNames returns the configured pool names in sorted order.
func (s *WorkloadSpec) PoolNames() []string {
	names := make([]string, 0, len(s.Pools))
	for name := range s.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that all fields in the spec are valid.
func (s *WorkloadSpec) Validate() error {
	if s.Version != "" && s.Version != "1" {
		return fmt.Errorf("unsupported version %q; valid: 1", s.Version)
	}
	if err := validateFinitePositive("horizon", s.Horizon); err != nil {
		return err
	}
	if s.NumJobs < 0 {
		return fmt.Errorf("num_jobs must be non-negative, got %d", s.NumJobs)
	}
	if err := s.SimConfig().Validate(); err != nil {
		return err
	}
	if len(s.JobTypes) == 0 {
		return fmt.Errorf("at least one job type required")
	}
	types := make(map[string]bool, len(s.JobTypes))
	totalWeight := 0.0
	for i := range s.JobTypes {
		jt := &s.JobTypes[i]
		if err := s.validateJobType(jt, i); err != nil {
			return err
		}
		if types[jt.Name] {
			return fmt.Errorf("job_types[%d]: duplicate name %q", i, jt.Name)
		}
		types[jt.Name] = true
		totalWeight += jt.Weight
	}
	if totalWeight <= 0 {
		return fmt.Errorf("job_types: at least one weight must be positive")
	}
	if len(s.Arrivals) == 0 {
		return fmt.Errorf("at least one arrival source required")
	}
	for i := range s.Arrivals {
		if err := validateArrival(&s.Arrivals[i], i, types, s.Horizon); err != nil {
			return err
		}
	}
	return nil
}

func (s *WorkloadSpec) validateJobType(jt *JobTypeSpec, idx int) error {
	prefix := fmt.Sprintf("job_types[%d]", idx)
	if jt.Name == "" {
		return fmt.Errorf("%s: name must not be empty", prefix)
	}
	if math.IsNaN(jt.Weight) || math.IsInf(jt.Weight, 0) || jt.Weight < 0 {
		return fmt.Errorf("%s.weight must be a finite non-negative number, got %f", prefix, jt.Weight)
	}
	seen := make(map[string]bool, len(jt.Pools))
	for _, p := range jt.Pools {
		if _, ok := s.Pools[p]; !ok {
			return fmt.Errorf("%s: unknown pool %q", prefix, p)
		}
		if seen[p] {
			return fmt.Errorf("%s: pool %q listed twice", prefix, p)
		}
		seen[p] = true
	}
	return validateDistSpec(prefix+".duration", &jt.Duration)
}

func validateArrival(a *ArrivalSpec, idx int, types map[string]bool, horizon float64) error {
	prefix := fmt.Sprintf("arrivals[%d]", idx)
	if !validArrivalProcesses[a.Process] {
		return fmt.Errorf("%s: unknown arrival process %q; valid: poisson, gamma, weibull, constant, cron", prefix, a.Process)
	}
	switch a.Process {
	case "poisson", "gamma", "weibull":
		if err := validateFinitePositive(prefix+".rate", a.Rate); err != nil {
			return err
		}
	case "constant":
		if err := validateFinitePositive(prefix+".interval", a.Interval); err != nil {
			return err
		}
	case "cron":
		if err := a.checkCronRange(horizon); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	if a.Process == "weibull" && a.CV != nil {
		cv := *a.CV
		if cv < 0.01 || cv > 10.4 {
			return fmt.Errorf("%s: weibull CV must be in [0.01, 10.4], got %f", prefix, cv)
		}
	}
	if a.CV != nil {
		if err := validateFinitePositive(prefix+".cv", *a.CV); err != nil {
			return err
		}
	}
	if a.JobType != "" && !types[a.JobType] {
		return fmt.Errorf("%s: unknown job_type %q", prefix, a.JobType)
	}
	for i, w := range a.Windows {
		if w.End <= w.Start {
			return fmt.Errorf("%s.windows[%d]: end %v must be after start %v", prefix, i, w.End, w.Start)
		}
	}
	return nil
}

// cronCalendar parses the cron-specific fields, applying defaults.
func (a *ArrivalSpec) cronCalendar() (cron.Schedule, time.Time, time.Duration, error) {
	if a.Schedule == "" {
		return nil, time.Time{}, 0, fmt.Errorf("cron source requires a schedule")
	}
	schedule, err := cron.ParseStandard(a.Schedule)
	if err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("parsing cron schedule %q: %w", a.Schedule, err)
	}
	epochStr := a.Epoch
	if epochStr == "" {
		epochStr = DefaultCronEpoch
	}
	epoch, err := time.Parse(time.RFC3339, epochStr)
	if err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("parsing epoch %q: %w", epochStr, err)
	}
	unitStr := a.TimeUnit
	if unitStr == "" {
		unitStr = DefaultCronTimeUnit
	}
	unit, err := time.ParseDuration(unitStr)
	if err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("parsing time_unit %q: %w", unitStr, err)
	}
	if unit < time.Second {
		return nil, time.Time{}, 0, fmt.Errorf("time_unit must be at least 1s, got %s", unit)
	}
	return schedule, epoch, unit, nil
}

// checkCronRange parses the cron calendar and rejects horizons whose span,
// measured in time_unit, does not fit in a time.Duration.
func (a *ArrivalSpec) checkCronRange(horizon float64) error {
	_, _, unit, err := a.cronCalendar()
	if err != nil {
		return err
	}
	if !fitsDuration(horizon, unit) {
		return fmt.Errorf("horizon %v at time_unit %s exceeds the cron calendar range (%s)",
			horizon, unit, time.Duration(math.MaxInt64))
	}
	return nil
}

func validateDistSpec(prefix string, d *DistSpec) error {
	if !validDistTypes[d.Type] {
		return fmt.Errorf("%s: unknown distribution type %q; valid: uniform, constant, exponential, gaussian", prefix, d.Type)
	}
	for name, val := range d.Params {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.params.%s must be a finite number, got %f", prefix, name, val)
		}
	}
	if _, err := NewDurationSampler(*d); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}

// warnUnusedFields logs fields that the chosen arrival process ignores.
func warnUnusedFields(a *ArrivalSpec) {
	if a.Process != "cron" && (a.Schedule != "" || a.Epoch != "" || a.TimeUnit != "") {
		logrus.Warnf("arrival source %q: cron fields ignored for process %q", a.ID, a.Process)
	}
	if a.Process != "constant" && a.Interval != 0 {
		logrus.Warnf("arrival source %q: interval ignored for process %q", a.ID, a.Process)
	}
}
