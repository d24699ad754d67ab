package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer and metrics built from one Config.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry validates cfg and builds every component.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment, cfg.ResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return &Telemetry{Logger: logger, Tracer: tracer, Metrics: metrics, Config: cfg}, nil
}

// WithContext stores t and its logger in ctx for StartOperation.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(context.WithValue(ctx, telemetryContextKey{}, t))
}

// FromTelemetryContext returns the Telemetry stored by WithContext, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	t, _ := ctx.Value(telemetryContextKey{}).(*Telemetry)
	return t
}

// Shutdown flushes spans and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	if err := t.Metrics.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	return nil
}

// StartMetricsServer serves metrics when they are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Operation is one traced and timed unit of work, such as syncing a site.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation opens a span named name using the Telemetry in ctx. The
// operation logger carries the trace and span ids. Without Telemetry in ctx
// the span is a no-op and the context logger is used.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &Operation{
			Ctx:    ctx,
			Span:   trace.SpanFromContext(context.Background()),
			Logger: FromContext(ctx).WithField("operation", name),
			Timer:  NewTimer(),
		}
	}

	ctx, span := tel.Tracer.StartSpan(ctx, name, attrs...)
	logger := tel.Logger.WithField("operation", name)
	if traceID := TraceID(ctx); traceID != "" {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": traceID,
			"span_id":  SpanID(ctx),
		})
	}

	return &Operation{Ctx: ctx, Span: span, Logger: logger, Timer: NewTimer()}
}

// ForSite tags the operation with a local site id.
func (op *Operation) ForSite(siteID int64) *Operation {
	op.Span.SetAttributes(AttrSiteID.Int64(siteID))
	op.Logger = op.Logger.WithSiteID(siteID)
	return op
}

// End records err on the span and ends it. Failures are logged at warn
// level with the elapsed time.
func (op *Operation) End(err error) {
	if err != nil {
		op.Logger.WithError(err).
			WithField("duration_ms", op.Timer.Duration().Milliseconds()).
			Warn("operation failed")
		RecordError(op.Span, err)
	} else {
		RecordSuccess(op.Span)
	}
	op.Span.End()
}
