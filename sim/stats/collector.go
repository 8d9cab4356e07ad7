// Package stats aggregates the simulator's metric stream into summary
// statistics. It is a consumer only: nothing here reaches back into scheduling.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/inference-sim/workshop-sim/sim"
)

// series holds the raw values of one job population.
type series struct {
	wait    []float64
	service []float64
	total   []float64
}

func (s *series) add(ev sim.MetricEvent) {
	switch ev.Kind {
	case sim.MetricWaitTime:
		s.wait = append(s.wait, ev.Value)
	case sim.MetricServiceDuration:
		s.service = append(s.service, ev.Value)
	case sim.MetricTotalTime:
		s.total = append(s.total, ev.Value)
	}
}

// Collector implements sim.MetricsSink and sim.AbandonSink.
type Collector struct {
	all       series
	byType    map[string]*series
	jobs      int
	abandoned int
	lastDone  float64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byType: make(map[string]*series)}
}

func (c *Collector) RecordMetric(ev sim.MetricEvent) {
	c.all.add(ev)
	s, ok := c.byType[ev.JobType]
	if !ok {
		s = &series{}
		c.byType[ev.JobType] = s
	}
	s.add(ev)
}

func (c *Collector) RecordJob(rec sim.JobRecord) {
	c.jobs++
	if at := rec.FinishedAt(); at > c.lastDone {
		c.lastDone = at
	}
}

func (c *Collector) RecordAbandoned(*sim.Process) {
	c.abandoned++
}

// TypeSummary is the breakdown for one job type.
type TypeSummary struct {
	JobType string       `json:"job_type"`
	Wait    Distribution `json:"wait_time"`
	Service Distribution `json:"service_duration"`
	Total   Distribution `json:"total_time"`
}

// Summary is the end-of-run report.
type Summary struct {
	RunID      string        `json:"run_id,omitempty"`
	Completed  int           `json:"completed"`
	Abandoned  int           `json:"abandoned"`
	LastDone   float64       `json:"last_completion"`
	Throughput float64       `json:"throughput"` // completed jobs per time unit up to the last completion
	Wait       Distribution  `json:"wait_time"`
	Service    Distribution  `json:"service_duration"`
	Total      Distribution  `json:"total_time"`
	ByType     []TypeSummary `json:"by_type"`
}

// Summarize computes the report. Job types are sorted by name.
func (c *Collector) Summarize() Summary {
	s := Summary{
		Completed: c.jobs,
		Abandoned: c.abandoned,
		LastDone:  c.lastDone,
		Wait:      NewDistribution(c.all.wait),
		Service:   NewDistribution(c.all.service),
		Total:     NewDistribution(c.all.total),
	}
	if c.lastDone > 0 {
		s.Throughput = float64(c.jobs) / c.lastDone
	}
	names := make([]string, 0, len(c.byType))
	for name := range c.byType {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := c.byType[name]
		s.ByType = append(s.ByType, TypeSummary{
			JobType: name,
			Wait:    NewDistribution(ts.wait),
			Service: NewDistribution(ts.service),
			Total:   NewDistribution(ts.total),
		})
	}
	return s
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	printf("=== Simulation Metrics ===\n")
	if s.RunID != "" {
		printf("Run ID               : %s\n", s.RunID)
	}
	printf("Completed Jobs       : %d\n", s.Completed)
	printf("Abandoned Jobs       : %d\n", s.Abandoned)
	if s.Completed > 0 {
		printf("Last Completion      : %.2f\n", s.LastDone)
		printf("Throughput           : %.4f jobs/unit\n", s.Throughput)
		printDist(printf, "Wait Time", s.Wait)
		printDist(printf, "Service Duration", s.Service)
		printDist(printf, "Total Time", s.Total)
		for _, ts := range s.ByType {
			printf("--- %s (%d jobs) ---\n", ts.JobType, ts.Total.Count)
			printDist(printf, "Wait Time", ts.Wait)
			printDist(printf, "Total Time", ts.Total)
		}
	}
	return err
}

func printDist(printf func(string, ...any), label string, d Distribution) {
	printf("%-21s: mean=%.2f p50=%.2f p90=%.2f p99=%.2f max=%.2f\n", label, d.Mean, d.P50, d.P90, d.P99, d.Max)
}

// WriteJSON encodes the summary as indented JSON.
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
