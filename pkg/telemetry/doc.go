// Package telemetry provides observability instrumentation for themesync.
//
// The package combines structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value built
// from a Config.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("gateway")
//	logger.WithSiteID(site.ID).WithThemeID("twentytwentyfour").Info("Activating theme")
//	logger.WithError(err).Error("Activation failed")
//
// Log levels: trace, debug, info, warn, error, fatal. Formats: console, json.
//
// # Distributed Tracing
//
// The theme store opens one span per handled action and one per remote call:
//
//	ctx, span := tel.Tracer.StartRemoteSpan(ctx, "activate_theme", site.ID)
//	defer span.End()
//
// Exporters:
//
//   - otlp: OTLP over gRPC to a collector
//   - stdout: pretty-printed spans, for development
//   - none: spans are created and sampled but never exported
//
// # Metrics
//
// All metrics live in a private registry under the configured namespace
// (default "themesync"):
//
//   - actions_total{action}
//   - capability_rejections_total{operation}
//   - dispatch_queue_depth
//   - remote_calls_total{operation,status}
//   - remote_call_duration_seconds{operation}
//   - remote_retries_total{endpoint}
//   - errors_by_type_total{type}
//   - notifications_total{event,status}
//   - cached_themes{partition,site}
//
// A nil *Metrics and one built with metrics disabled are valid no-ops.
//
// # Context Helpers
//
//	op := telemetry.StartOperation(ctx, "sync.site", telemetry.AttrSiteID.Int64(site.ID))
//	err := syncSite(op.Ctx)
//	op.End(err)
//
// # Configuration
//
//	service_name: themesync
//	environment: production
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
//	tracing:
//	  enabled: true
//	  exporter: otlp
//	  endpoint: otel-collector:4317
//	  sampling_rate: 0.1
//	metrics:
//	  enabled: true
//	  listen_address: ":9090"
//	  path: /metrics
package telemetry
