package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the otel meter and tracer used by the generation service.
// The meter is exported through the default prometheus registry served on /metrics;
// spans go to the exporter given to New, if any.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	streamCounter  otelmetric.Int64Counter
	streamDuration otelmetric.Float64Histogram
	partialCounter otelmetric.Int64Counter
}

// New builds the meter and tracer providers and installs them as the otel
// globals. Finished spans are batched to spans; a nil exporter keeps spans
// in-process only.
func New(serviceName string, spans sdktrace.SpanExporter) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	if spans != nil {
		opts = append(opts, sdktrace.WithBatcher(spans))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	o := &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		meter:          mp.Meter(serviceName),
		tracer:         tp.Tracer(serviceName),
	}
	if err := o.instruments(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewSpanExporter returns the span exporter named by kind: "stdout" writes
// JSON spans to w, "none" or "" returns nil.
func NewSpanExporter(kind string, w io.Writer) (sdktrace.SpanExporter, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout span exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown span exporter %q", kind)
	}
}

// NewNoop returns an Observability whose instruments discard everything.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("noop")}
}

func (o *Observability) instruments() error {
	var err error
	o.streamCounter, err = o.meter.Int64Counter(
		"assessment.streams",
		otelmetric.WithDescription("Number of assessment streams finished"),
	)
	if err != nil {
		return fmt.Errorf("create stream counter: %w", err)
	}

	o.streamDuration, err = o.meter.Float64Histogram(
		"assessment.duration",
		otelmetric.WithDescription("Assessment stream duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("create duration histogram: %w", err)
	}

	o.partialCounter, err = o.meter.Int64Counter(
		"assessment.partials",
		otelmetric.WithDescription("Number of partial objects streamed"),
	)
	if err != nil {
		return fmt.Errorf("create partial counter: %w", err)
	}
	return nil
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordStream(ctx context.Context, duration time.Duration, status string, partials int) {
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.streamCounter != nil {
		o.streamCounter.Add(ctx, 1, attrs)
	}
	if o.streamDuration != nil {
		o.streamDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.partialCounter != nil {
		o.partialCounter.Add(ctx, int64(partials), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown: %v", errs)
	}
	return nil
}
