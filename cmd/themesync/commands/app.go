package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/themesync/pkg/config"
	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/gateway/wpcom"
	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/stores"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

// shutdownTimeout bounds draining the dispatcher and flushing telemetry.
const shutdownTimeout = 10 * time.Second

// app holds the wired components shared by all commands.
type app struct {
	cfg        *config.Config
	tel        *telemetry.Telemetry
	cache      *stores.SQLiteStore
	gateway    *wpcom.Client
	bus        *engine.Bus
	themes     *engine.ThemeStore
	dispatcher *engine.ActionDispatcher
	logger     zerolog.Logger
}

// openApp loads configuration and wires the store, gateway and engine. The
// dispatcher is started and must be stopped with close.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return newApp(ctx, cfg)
}

// newApp wires an app from a loaded configuration.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	cache, err := openCache(ctx, cfg.Database)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	logger := tel.Logger.Zerolog()

	a := &app{
		cfg:   cfg,
		tel:   tel,
		cache: cache,
		gateway: wpcom.NewClient(cfg.WPCom,
			wpcom.WithLogger(logger),
			wpcom.WithMetrics(tel.Metrics),
		),
		bus:    engine.NewBus(logger),
		logger: logger,
	}

	a.themes = engine.NewThemeStore(a.gateway, a.cache, a.bus,
		engine.WithLogger(logger),
		engine.WithMetrics(tel.Metrics),
		engine.WithTracer(tel.Tracer),
	)
	a.dispatcher = engine.NewActionDispatcher(a.themes, cfg.Dispatcher.QueueSize, logger, tel.Metrics)
	a.themes.SetDispatcher(a.dispatcher)
	a.themes.Register()

	if err := a.dispatcher.Start(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to start dispatcher: %w", err)
	}

	return a, nil
}

func openCache(ctx context.Context, cfg stores.Config) (*stores.SQLiteStore, error) {
	cache, err := stores.NewSQLiteStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := cache.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := cache.Migrate(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return cache, nil
}

// close drains pending actions and releases resources.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.dispatcher != nil {
		if err := a.dispatcher.Stop(ctx); err != nil && !errors.Is(err, engine.ErrDispatcherStopped) {
			log.Warn().Err(err).Msg("Failed to stop dispatcher")
		}
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shutdown telemetry")
	}
}

// site resolves a configured site by local id.
func (a *app) site(id int64) (*models.Site, error) {
	if id <= 0 {
		return nil, fmt.Errorf("--site is required")
	}
	site, ok := a.cfg.Site(id)
	if !ok {
		return nil, fmt.Errorf("site %d is not configured", id)
	}
	return site, nil
}

// run dispatches action and waits for its notification. A notification
// carrying an error is returned together with that error.
func (a *app) run(ctx context.Context, action engine.Action) (engine.Event, error) {
	wait := a.bus.Await(ctx, engine.FilterByName(engine.EventFor(action)))

	if err := a.dispatcher.Dispatch(action); err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", action.Type(), err)
	}

	select {
	case event := <-wait:
		if themesErr := event.Err(); themesErr != nil {
			return event, themesErr
		}
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookupTheme finds a theme to act on, preferring the site's installed copy
// and falling back to the catalog. Unknown ids are passed through bare so
// the remote can decide.
func (a *app) lookupTheme(ctx context.Context, site *models.Site, themeID string) (*models.Theme, error) {
	installed, err := a.themes.GetThemesForSite(ctx, site)
	if err != nil {
		return nil, err
	}
	for _, t := range installed {
		if t.ThemeID == themeID {
			return t, nil
		}
	}

	catalog, err := a.themes.GetWPComThemeByThemeID(ctx, themeID)
	if err != nil {
		return nil, err
	}
	if catalog != nil {
		return catalog, nil
	}

	return &models.Theme{ThemeID: themeID}, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
