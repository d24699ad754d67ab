package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/themesync/pkg/engine"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local theme cache",
		Long: `Apply database migrations to the local theme cache.

Every command migrates on startup; this command only does that and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cache, err := openCache(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer cache.Close()

			log.Info().Str("path", cfg.Database.Path).Msg("Theme cache migrated")
			return nil
		},
	}
}

func newFetchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch themes from WordPress.com into the local cache",
		Long: `Fetch themes from the remote API and reconcile the local cache.

  - catalog: the WordPress.com theme catalog
  - installed: themes installed on a Jetpack site
  - current: the active theme of a site`,
	}

	cmd.AddCommand(newFetchCatalogCommand())
	cmd.AddCommand(newFetchInstalledCommand())
	cmd.AddCommand(newFetchCurrentCommand())

	return cmd
}

func newFetchCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "catalog",
		Short:   "Refresh the WordPress.com catalog",
		Example: `  themesync fetch catalog`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.run(cmd.Context(), engine.FetchWPComThemes{}); err != nil {
				return fmt.Errorf("failed to fetch catalog: %w", err)
			}

			themes, err := a.themes.GetWPComThemes(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("count", len(themes)).Msg("Catalog refreshed")
			return nil
		},
	}
}

func newFetchInstalledCommand() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:     "installed",
		Short:   "Refresh the themes installed on a Jetpack site",
		Example: `  themesync fetch installed --site 1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			site, err := a.site(siteID)
			if err != nil {
				return err
			}

			if _, err := a.run(cmd.Context(), engine.FetchInstalledThemes{Site: site}); err != nil {
				return fmt.Errorf("failed to fetch installed themes: %w", err)
			}

			themes, err := a.themes.GetThemesForSite(cmd.Context(), site)
			if err != nil {
				return err
			}
			return printThemes(out(cmd), themes)
		},
	}

	cmd.Flags().Int64VarP(&siteID, "site", "s", 0, "local site id")

	return cmd
}

func newFetchCurrentCommand() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:     "current",
		Short:   "Fetch a site's active theme",
		Example: `  themesync fetch current --site 1`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			site, err := a.site(siteID)
			if err != nil {
				return err
			}

			event, err := a.run(cmd.Context(), engine.FetchCurrentTheme{Site: site})
			if err != nil {
				return fmt.Errorf("failed to fetch current theme: %w", err)
			}

			fetched, _ := event.(engine.OnCurrentThemeFetched)
			return printTheme(out(cmd), fetched.Theme)
		},
	}

	cmd.Flags().Int64VarP(&siteID, "site", "s", 0, "local site id")

	return cmd
}
