package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for themesync.
//
// A nil *Metrics and a Metrics created with collection disabled are both
// valid no-op collectors.
type Metrics struct {
	config MetricsConfig

	// Dispatch metrics
	actions    *prometheus.CounterVec
	rejections *prometheus.CounterVec
	queueDepth prometheus.Gauge

	// Remote gateway metrics
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	remoteRetries  *prometheus.CounterVec

	// Outcome metrics
	errorsByType  *prometheus.CounterVec
	notifications *prometheus.CounterVec

	// Cache metrics
	cachedThemes *prometheus.GaugeVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of actions handled by the theme store",
			},
			[]string{"action"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_rejections_total",
				Help:      "Total number of operations rejected by the capability gate",
			},
			[]string{"operation"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_queue_depth",
				Help:      "Current number of actions waiting in the dispatch queue",
			},
		),
		remoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of remote gateway calls",
			},
			[]string{"operation", "status"},
		),
		remoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of remote gateway calls in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		remoteRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_retries_total",
				Help:      "Total number of retried HTTP requests against the remote API",
			},
			[]string{"endpoint"},
		),
		errorsByType: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_type_total",
				Help:      "Total number of failed operations by error type",
			},
			[]string{"type"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notifications emitted",
			},
			[]string{"event", "status"},
		),
		cachedThemes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_themes",
				Help:      "Number of cached theme rows per partition and site",
			},
			[]string{"partition", "site"},
		),
	}

	registry.MustRegister(
		m.actions,
		m.rejections,
		m.queueDepth,
		m.remoteCalls,
		m.remoteDuration,
		m.remoteRetries,
		m.errorsByType,
		m.notifications,
		m.cachedThemes,
	)

	return m, nil
}

// Registry returns the metrics registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordAction counts an action entering the store.
func (m *Metrics) RecordAction(action string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(action).Inc()
}

// RecordRejection counts an operation rejected by the capability gate.
func (m *Metrics) RecordRejection(operation string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(operation).Inc()
}

// SetQueueDepth sets the number of queued actions.
func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordRemoteCall records a gateway call with its duration.
func (m *Metrics) RecordRemoteCall(operation string, duration time.Duration, failed bool) {
	if m == nil || m.remoteCalls == nil {
		return
	}
	m.remoteCalls.WithLabelValues(operation, statusLabel(failed)).Inc()
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRemoteRetry counts a retried HTTP request.
func (m *Metrics) RecordRemoteRetry(endpoint string) {
	if m == nil || m.remoteRetries == nil {
		return
	}
	m.remoteRetries.WithLabelValues(endpoint).Inc()
}

// RecordError records a failed operation by error type.
func (m *Metrics) RecordError(errorType string) {
	if m == nil || m.errorsByType == nil {
		return
	}
	m.errorsByType.WithLabelValues(errorType).Inc()
}

// RecordNotification records an emitted notification.
func (m *Metrics) RecordNotification(event string, failed bool) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(event, statusLabel(failed)).Inc()
}

// SetCachedThemes sets the number of cached rows for a partition of one
// site. The catalog is not site scoped and uses site 0.
func (m *Metrics) SetCachedThemes(partition string, siteID int64, count int) {
	if m == nil || m.cachedThemes == nil {
		return
	}
	m.cachedThemes.WithLabelValues(partition, strconv.FormatInt(siteID, 10)).Set(float64(count))
}

func statusLabel(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
