// Package tracking emits OpenTelemetry metrics and spans for statement
// execution, pool registry size and pending write previews.
package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "github.com/sqlgate/sqlgate"

	MetricCalls    = "db.client.calls"
	MetricDuration = "db.client.operation.duration"
	MetricRows     = "db.rows.affected"
	MetricPools    = "db.pool.count"
	MetricPending  = "sqlgate.preview.pending"

	attrSystem    = "db.system"
	attrOperation = "db.operation.name"
)

// Instruments holds the meter and tracer used by the executor, provider and confirmation store.
type Instruments struct {
	meter    metric.Meter
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	rows     metric.Int64Counter
}

// New creates instruments from the given providers. Instrument creation
// failures are reported on stderr and leave that instrument disabled.
func New(mp metric.MeterProvider, tp trace.TracerProvider) *Instruments {
	in := &Instruments{
		meter:  mp.Meter(instrumentationName),
		tracer: tp.Tracer(instrumentationName),
	}

	var err error
	in.calls, err = in.meter.Int64Counter(MetricCalls,
		metric.WithDescription("Total number of database client calls"))
	logMetricError(MetricCalls, err)

	in.duration, err = in.meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(MetricDuration, err)

	in.rows, err = in.meter.Int64Counter(MetricRows,
		metric.WithDescription("Number of rows affected by write operations"))
	logMetricError(MetricRows, err)

	return in
}

// Nop returns instruments that record nothing.
func Nop() *Instruments {
	return New(metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
}

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", name, err)
	}
}

// Operation is one in-flight database call.
type Operation struct {
	in    *Instruments
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// Start opens a span named "db.<operation>" and begins timing.
func (in *Instruments) Start(ctx context.Context, system, operation string) (context.Context, *Operation) {
	attrs := []attribute.KeyValue{
		attribute.String(attrSystem, system),
		attribute.String(attrOperation, operation),
	}
	ctx, span := in.tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	return ctx, &Operation{in: in, span: span, start: time.Now(), attrs: attrs}
}

// End records the call outcome and closes the span.
func (op *Operation) End(ctx context.Context, rowsAffected int64, err error) {
	elapsed := time.Since(op.start)

	if op.in.calls != nil {
		attrs := append(append([]attribute.KeyValue{}, op.attrs...), attribute.Bool("error", err != nil))
		op.in.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if op.in.duration != nil {
		op.in.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, metric.WithAttributes(op.attrs...))
	}
	if op.in.rows != nil && err == nil && rowsAffected > 0 {
		op.in.rows.Add(ctx, rowsAffected, metric.WithAttributes(op.attrs...))
	}

	if err != nil {
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
	}
	op.span.End()
}

// Gauge registers an observable gauge whose value is read from observe at collection time.
func (in *Instruments) Gauge(name, description string, observe func() int64) error {
	_, err := in.meter.Int64ObservableGauge(name,
		metric.WithDescription(description),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(observe())
			return nil
		}))
	if err != nil {
		return fmt.Errorf("failed to register gauge %s: %w", name, err)
	}
	return nil
}
