package telemetry_test

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/openfroyo/themesync/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	ctx := tel.WithContext(context.Background())
	telemetry.FromContext(ctx).Info("themesync started")
}

// Example_structuredLogging writes JSON log lines with theme fields.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.TimeFormat = "unix"

	logger := telemetry.NewLoggerWithWriter(cfg.Logging, os.Stdout).
		NewComponentLogger("gateway").
		WithSiteID(42).
		WithThemeID("twentytwentyfour")

	logger.Debug("not printed at info level")
	logger.WithError(errors.New("timeout")).Warn("activation failed")
}

// Example_remoteSpan traces a remote call with the stdout exporter.
func Example_remoteSpan() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartRemoteSpan(context.Background(), "activate_theme", 42)
	span.SetAttributes(telemetry.AttrThemeID.String("twentytwentyfour"))
	time.Sleep(time.Millisecond)
	telemetry.RecordSuccess(span)
	span.End()

	_ = telemetry.TraceID(ctx)
}

// Example_metricsCollection records store metrics.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()

	metrics, _ := telemetry.NewMetrics(cfg.Metrics)
	metrics.RecordAction("FETCH_WP_COM_THEMES")
	metrics.RecordRemoteCall("fetch_wpcom_themes", 120*time.Millisecond, false)
	metrics.RecordRejection("install_theme")
	metrics.RecordError("NOT_AVAILABLE")
	metrics.RecordNotification("theme_installed", true)
	metrics.SetCachedThemes("wpcom", 0, 250)
}

// Example_instrumentedOperation uses the operation helper around a sync.
func Example_instrumentedOperation() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	op := telemetry.StartOperation(ctx, "sync.site").ForSite(42)
	op.Logger.Info("syncing site")
	op.End(nil)
}

// Example_productionConfiguration shows production defaults.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()
	cfg.Tracing.Endpoint = "otel-collector:4317"
	cfg.ResourceAttributes["deployment"] = "eu-west"

	if err := cfg.Validate(); err != nil {
		panic(err)
	}
}
