// Package telemetry exports completed jobs as OpenTelemetry spans. Virtual
// simulation time is mapped onto wall-clock timestamps starting at a fixed
// epoch, so a trace viewer shows the simulated schedule rather than how long
// the run took on the host.
package telemetry

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies the tracer that emits job spans.
const InstrumentationName = "github.com/inference-sim/workshop-sim/sim/telemetry"

// Provider owns a tracer provider and the file its exporter writes to, if any.
type Provider struct {
	tp     *sdktrace.TracerProvider
	closer io.Closer
}

// Init configures a provider with the stdout exporter. If outputFile is empty
// spans are written to os.Stdout, otherwise to the named file.
func Init(serviceName, runID, outputFile string) (*Provider, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, err
		}
		w, closer = f, f
		logrus.Infof("writing job spans to %s", outputFile)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	p, err := NewProvider(serviceName, runID, exporter)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	p.closer = closer
	return p, nil
}

// NewProvider builds a provider around any SpanExporter. Spans are exported
// synchronously as they end.
func NewProvider(serviceName, runID string, exporter sdktrace.SpanExporter) (*Provider, error) {
	if exporter == nil {
		return nil, errors.New("span exporter must not be nil")
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("run.id", runID),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

// Tracer returns the tracer job spans are recorded with.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(InstrumentationName)
}

// Shutdown flushes the exporter and closes the output file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
