package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/fleetpulse/internal/app"
)

const (
	tracerName = "github.com/neomorfeo/fleetpulse/internal/adapter/otel"
	meterName  = tracerName
)

// Runner executes one batch run. Satisfied by *app.Job.
type Runner interface {
	Run(ctx context.Context) (app.RunSummary, error)
}

// Compile-time check: TracingRunner implements Runner.
var _ Runner = (*TracingRunner)(nil)

// TracingRunner wraps the batch job with OpenTelemetry tracing and run
// counters. Each Run creates one span carrying the summary attributes.
type TracingRunner struct {
	next   Runner
	tracer trace.Tracer

	checked      metric.Int64Counter
	transitioned metric.Int64Counter
	notified     metric.Int64Counter
	failures     metric.Int64Counter
}

// NewTracingRunner creates a tracing decorator around the given runner.
func NewTracingRunner(next Runner) (*TracingRunner, error) {
	meter := otel.Meter(meterName)

	checked, err := meter.Int64Counter("fleetpulse.run.tenants_checked",
		metric.WithDescription("Tenants evaluated per batch run"))
	if err != nil {
		return nil, err
	}
	transitioned, err := meter.Int64Counter("fleetpulse.run.transitions",
		metric.WithDescription("Lifecycle transitions recorded per batch run"))
	if err != nil {
		return nil, err
	}
	notified, err := meter.Int64Counter("fleetpulse.run.notifications",
		metric.WithDescription("At-risk notifications inserted per batch run"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("fleetpulse.run.tenant_errors",
		metric.WithDescription("Per-tenant failures recorded per batch run"))
	if err != nil {
		return nil, err
	}

	return &TracingRunner{
		next:         next,
		tracer:       otel.Tracer(tracerName),
		checked:      checked,
		transitioned: transitioned,
		notified:     notified,
		failures:     failures,
	}, nil
}

// Run executes the wrapped batch run inside a span and records counters.
func (r *TracingRunner) Run(ctx context.Context) (app.RunSummary, error) {
	ctx, span := r.tracer.Start(ctx, "Job.Run")
	defer span.End()

	sum, err := r.next.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}

	span.SetAttributes(
		attribute.Int("run.checked", sum.Checked),
		attribute.Int("run.computed", sum.Computed),
		attribute.Int("run.transitioned", sum.Transitioned),
		attribute.Int("run.notified", sum.Notified),
		attribute.Int("run.errors", len(sum.Errors)),
	)

	r.checked.Add(ctx, int64(sum.Checked))
	r.transitioned.Add(ctx, int64(sum.Transitioned))
	r.notified.Add(ctx, int64(sum.Notified))
	r.failures.Add(ctx, int64(len(sum.Errors)))

	return sum, nil
}
