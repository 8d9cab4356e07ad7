package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobRecord_Metrics_ExpandsToThreeEvents(t *testing.T) {
	rec := JobRecord{JobID: 3, JobType: "plot", ArrivalTime: 2, WaitTime: 1.5, ServiceDuration: 4, CompletionTime: 5.5}

	got := rec.Metrics()

	assert.Equal(t, 7.5, rec.FinishedAt())
	assert.Equal(t, [3]MetricEvent{
		{Kind: MetricWaitTime, JobID: 3, JobType: "plot", Time: 7.5, Value: 1.5},
		{Kind: MetricServiceDuration, JobID: 3, JobType: "plot", Time: 7.5, Value: 4},
		{Kind: MetricTotalTime, JobID: 3, JobType: "plot", Time: 7.5, Value: 5.5},
	}, got)
}

func TestMultiSink_FansOut(t *testing.T) {
	// GIVEN a fan-out over a recorder, an abandon-aware sink and a discard sink
	a := &RecordingSink{}
	b := &abandonRecorder{}
	m := MultiSink{a, b, DiscardSink{}}
	rec := JobRecord{JobID: 1, JobType: "print"}

	// WHEN records flow through it
	for _, ev := range rec.Metrics() {
		m.RecordMetric(ev)
	}
	m.RecordJob(rec)
	m.RecordAbandoned(&Process{ID: 9})

	// THEN each sink sees them, abandon notices only where implemented
	assert.Len(t, a.Events, 3)
	assert.Equal(t, []JobRecord{rec}, a.Jobs)
	assert.Equal(t, []ProcessID{9}, b.abandoned)
}

func TestSimulator_EmitsMetricsBeforeJobRecord(t *testing.T) {
	var order []string
	s := mustSimulator(t, 10, map[string]int{"workers": 1}, orderSink{&order})
	mustSubmit(t, s, JobFactory("print", 1, mustLegs(t, s, "workers")), 0)

	s.RunToHorizon()

	assert.Equal(t, []string{"wait_time", "service_duration", "total_time", "job"}, order)
}

type orderSink struct {
	order *[]string
}

func (o orderSink) RecordMetric(ev MetricEvent) { *o.order = append(*o.order, string(ev.Kind)) }
func (o orderSink) RecordJob(JobRecord)         { *o.order = append(*o.order, "job") }
