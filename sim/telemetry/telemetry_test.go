package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/inference-sim/workshop-sim/sim"
)

func newTestSink(t *testing.T, opts ...Option) (*SpanSink, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	p, err := NewProvider("workshop-sim", "run-test", exp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return NewSpanSink(p.Tracer(), opts...), exp
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSpanSink_RecordJob_MapsVirtualTime(t *testing.T) {
	// GIVEN a sink with one time unit per minute
	sink, exp := newTestSink(t)

	// WHEN a job that arrived at 10, waited 5 and was served for 20 is recorded
	sink.RecordJob(sim.JobRecord{JobID: 3, JobType: "plot", ArrivalTime: 10, WaitTime: 5, ServiceDuration: 20, CompletionTime: 25})

	// THEN one span covers arrival to completion on the virtual calendar
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "job", span.Name)
	assert.Equal(t, DefaultEpoch.Add(10*time.Minute), span.StartTime)
	assert.Equal(t, DefaultEpoch.Add(35*time.Minute), span.EndTime)
	require.Len(t, span.Events, 1)
	assert.Equal(t, "granted", span.Events[0].Name)
	assert.Equal(t, DefaultEpoch.Add(15*time.Minute), span.Events[0].Time)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := attrMap(span.Attributes)
	assert.Equal(t, int64(3), attrs["job.id"].AsInt64())
	assert.Equal(t, "plot", attrs["job.type"].AsString())
	assert.Equal(t, 20.0, attrs["job.service_duration"].AsFloat64())

	res := attrMap(span.Resource.Attributes())
	assert.Equal(t, "run-test", res["run.id"].AsString())
}

func TestSpanSink_Options(t *testing.T) {
	epoch := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	sink, _ := newTestSink(t, WithEpoch(epoch), WithTimeUnit(time.Second))
	assert.Equal(t, epoch.Add(90*time.Second), sink.At(90))
}

func TestSpanSink_AsSimulatorSink(t *testing.T) {
	// GIVEN a simulator feeding both a recorder and the span sink
	var s *sim.Simulator
	sink, exp := newTestSink(t, WithClock(func() float64 { return s.Now() }))
	rec := &sim.RecordingSink{}
	s, err := sim.NewSimulator(sim.NewSimConfig(30, map[string]int{"workers": 1}, 1), sim.MultiSink{rec, sink})
	require.NoError(t, err)
	legs, err := s.Legs("workers")
	require.NoError(t, err)
	_, err = s.Submit(sim.JobFactory("print", 10, legs), 0)
	require.NoError(t, err)
	_, err = s.Submit(sim.JobFactory("bind", 40, legs), 5)
	require.NoError(t, err)

	// WHEN run to a horizon that cuts off the second job, then shut down
	res := s.RunToHorizon()
	require.True(t, res.Truncated)
	s.Shutdown()

	// THEN the finished job has an Ok span and the abandoned one an Error span
	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, DefaultEpoch.Add(5*time.Minute), spans[1].StartTime)
	// the clock stopped at the last executed event, the grant at t=10
	assert.Equal(t, DefaultEpoch.Add(10*time.Minute), spans[1].EndTime)
	require.Len(t, spans[1].Events, 1)
	assert.Equal(t, DefaultEpoch.Add(10*time.Minute), spans[1].Events[0].Time)
	assert.Len(t, rec.Jobs, 1)
}

func TestSpanSink_WithContext_ParentsJobSpans(t *testing.T) {
	// GIVEN a sink whose context carries an open "run" span
	exp := tracetest.NewInMemoryExporter()
	p, err := NewProvider("workshop-sim", "run-parent", exp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	runCtx, run := p.Tracer().Start(context.Background(), "run")
	sink := NewSpanSink(p.Tracer(), WithContext(runCtx))

	// WHEN a job completes and the run ends
	sink.RecordJob(sim.JobRecord{JobID: 1, JobType: "print", CompletionTime: 3, ServiceDuration: 3})
	run.End()

	// THEN the job span is a child of the run span
	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "job", spans[0].Name)
	assert.Equal(t, "run", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	p, err := Init("workshop-sim", "run-file", path)
	require.NoError(t, err)

	NewSpanSink(p.Tracer()).RecordJob(sim.JobRecord{JobID: 1, JobType: "print", CompletionTime: 1, ServiceDuration: 1})
	require.NoError(t, p.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run-file")
	assert.Contains(t, string(data), "job.type")
}

func TestNewProvider_NilExporter(t *testing.T) {
	_, err := NewProvider("workshop-sim", "r", nil)
	assert.Error(t, err)
}
