package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/themesync/pkg/config"
	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/models"
	"github.com/openfroyo/themesync/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		once        bool
		watchConfig bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the theme cache in sync",
		Long: `Run the sync loop in the foreground.

Every sync interval the catalog (when enabled), the installed themes of each
Jetpack site and the active theme of each site are refreshed. Notifications
are logged and metrics are served when enabled. The config file is watched
and sites, sync settings and the log level are reloaded on change.`,
		Example: `  # Sync every interval until interrupted
  themesync serve -c themesync.yaml

  # Sync once and exit
  themesync serve -c themesync.yaml --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			ctx = a.tel.WithContext(ctx)

			if err := a.tel.StartMetricsServer(); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}

			unsubscribe := a.bus.Subscribe(notificationLogger(a.tel.Logger.NewComponentLogger("sync")), nil)
			defer unsubscribe()

			s := &syncer{app: a, cfg: a.cfg}

			if once {
				return s.syncAll(ctx)
			}

			if watchConfig && configPath != "" {
				watcher := config.NewWatcher(configPath, a.logger)
				if err := watcher.Watch(ctx, s.reload); err != nil {
					return err
				}
				defer watcher.Stop()
			}

			return s.loop(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sync once and exit")
	cmd.Flags().BoolVar(&watchConfig, "watch", true, "reload the config file on change")

	return cmd
}

// syncer drives periodic refreshes over the configured sites.
type syncer struct {
	app *app

	mu  sync.RWMutex
	cfg *config.Config
}

func (s *syncer) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// reload swaps in a new configuration. Store and gateway settings need a
// restart; sites, sync settings and the log level apply on the next tick.
func (s *syncer) reload(cfg *config.Config) error {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	telemetry.SetGlobalLevel(cfg.Telemetry.Logging.Level)

	log.Info().
		Int("sites", len(cfg.Sites)).
		Dur("interval", cfg.Sync.Interval).
		Msg("Configuration reloaded")
	return nil
}

func (s *syncer) loop(ctx context.Context) error {
	if err := s.syncAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Initial sync finished with errors")
	}

	interval := s.config().Sync.Interval
	if interval <= 0 {
		log.Info().Msg("Periodic sync disabled, waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down sync loop")
			return nil
		case <-ticker.C:
			if next := s.config().Sync.Interval; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
			if err := s.syncAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("Sync finished with errors")
			}
		}
	}
}

// syncAll refreshes the catalog and every site. A failing site does not stop
// the others; the joined error is returned.
func (s *syncer) syncAll(ctx context.Context) error {
	cfg := s.config()
	var errs []error

	if cfg.Sync.Catalog {
		op := telemetry.StartOperation(ctx, "sync.catalog")
		_, err := s.app.run(op.Ctx, engine.FetchWPComThemes{})
		op.End(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: %w", err))
		}
	}

	for i := range cfg.Sites {
		site := &cfg.Sites[i]
		if err := s.syncSite(ctx, site); err != nil {
			errs = append(errs, fmt.Errorf("site %d: %w", site.ID, err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return errors.Join(errs...)
}

func (s *syncer) syncSite(ctx context.Context, site *models.Site) (err error) {
	op := telemetry.StartOperation(ctx, "sync.site",
		attribute.Bool("site.jetpack", site.IsJetpackConnected()),
	).ForSite(site.ID)
	defer func() { op.End(err) }()

	if site.IsJetpackConnected() {
		if _, err := s.app.run(op.Ctx, engine.FetchInstalledThemes{Site: site}); err != nil {
			return fmt.Errorf("installed themes: %w", err)
		}
	}

	if _, err := s.app.run(op.Ctx, engine.FetchCurrentTheme{Site: site}); err != nil {
		return fmt.Errorf("current theme: %w", err)
	}

	op.Logger.Debug("site synced")
	return nil
}

// notificationLogger logs every notification with its site and theme.
func notificationLogger(logger *telemetry.Logger) engine.Subscriber {
	return func(_ context.Context, event engine.Event) {
		l := logger.WithField("event", string(event.Name()))
		if site := engine.SiteOf(event); site != nil {
			l = l.WithSiteID(site.ID)
		}
		if theme := engine.ThemeOf(event); theme != nil {
			l = l.WithThemeID(theme.ThemeID)
		}
		if themesErr := event.Err(); themesErr != nil {
			l.WithField("error_type", string(themesErr.Type)).WithError(themesErr).Warn("Notification failed")
			return
		}
		l.Info("Notification")
	}
}
