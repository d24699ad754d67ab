package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/themesync/pkg/engine"
	"github.com/openfroyo/themesync/pkg/models"
)

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM",
		Short: "Search the WordPress.com catalog",
		Long: `Search the WordPress.com catalog. Results are added to the local catalog
cache; existing entries are updated, never duplicated.`,
		Example: `  themesync search portfolio`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			event, err := a.run(cmd.Context(), engine.SearchThemes{SearchTerm: args[0]})
			if err != nil {
				return fmt.Errorf("failed to search themes: %w", err)
			}

			searched, _ := event.(engine.OnThemesSearched)
			return printThemes(out(cmd), searched.Results)
		},
	}
}

// themeMutation describes a site-scoped remote theme operation.
type themeMutation struct {
	use     string
	short   string
	long    string
	example string
	verb    string
	action  func(p *engine.ThemePayload) engine.Action
}

func newThemeMutationCommand(m themeMutation) *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:     m.use,
		Short:   m.short,
		Long:    m.long,
		Example: m.example,
		Args:    cobra.ExactArgs(1),
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

			theme, err := a.lookupTheme(cmd.Context(), site, args[0])
			if err != nil {
				return err
			}

			log.Info().
				Int64("site_id", site.ID).
				Str("theme_id", theme.ThemeID).
				Msgf("%s theme", m.verb)

			if _, err := a.run(cmd.Context(), m.action(engine.NewThemePayload(site, theme))); err != nil {
				return fmt.Errorf("failed to %s theme %s: %w", m.verb, theme.ThemeID, err)
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

func newActivateCommand() *cobra.Command {
	return newThemeMutationCommand(themeMutation{
		use:   "activate THEME",
		short: "Activate a theme on a site",
		long: `Activate a theme on a site through the remote API.

Available for Jetpack-connected sites and sites using the WordPress.com REST
API. On success the theme becomes the site's only active theme in the cache.`,
		example: `  themesync activate --site 1 twentytwentyfour`,
		verb:    "activate",
		action:  func(p *engine.ThemePayload) engine.Action { return engine.ActivateTheme{Payload: p} },
	})
}

func newInstallCommand() *cobra.Command {
	return newThemeMutationCommand(themeMutation{
		use:     "install THEME",
		short:   "Install a catalog theme on a Jetpack site",
		long:    `Install a WordPress.com catalog theme on a Jetpack-connected site.`,
		example: `  themesync install --site 1 twentytwentyfour`,
		verb:    "install",
		action:  func(p *engine.ThemePayload) engine.Action { return engine.InstallTheme{Payload: p} },
	})
}

func newDeleteCommand() *cobra.Command {
	return newThemeMutationCommand(themeMutation{
		use:     "delete THEME",
		short:   "Delete an installed theme from a Jetpack site",
		long:    `Delete an installed theme from a Jetpack-connected site and from the cache.`,
		example: `  themesync delete --site 1 twentytwentyfour`,
		verb:    "delete",
		action:  func(p *engine.ThemePayload) engine.Action { return engine.DeleteTheme{Payload: p} },
	})
}

func newRemoveCommand() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:   "remove THEME",
		Short: "Remove a theme from the local cache only",
		Long: `Remove one cached theme row without contacting the remote API.

With --site the site's installed copy is removed, otherwise the catalog entry.`,
		Example: `  # Drop a catalog entry
  themesync remove twentytwenty

  # Drop a site's installed copy
  themesync remove --site 1 twentytwenty`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			theme := &models.Theme{ThemeID: args[0], IsWPComTheme: true}
			if siteID != 0 {
				site, err := a.site(siteID)
				if err != nil {
					return err
				}
				theme = theme.ForSite(site)
			}

			if _, err := a.run(cmd.Context(), engine.RemoveTheme{Theme: theme}); err != nil {
				return fmt.Errorf("failed to remove theme: %w", err)
			}

			log.Info().Str("theme", theme.Key().String()).Msg("Theme removed from cache")
			return nil
		},
	}

	cmd.Flags().Int64VarP(&siteID, "site", "s", 0, "local site id")

	return cmd
}

func newRemoveSiteCommand() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:   "remove-site",
		Short: "Drop every cached theme of a site",
		Long: `Remove all cached theme rows of a site, for example after the site was
disconnected. The catalog is not affected.`,
		Example: `  themesync remove-site --site 1`,
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

			if _, err := a.run(cmd.Context(), engine.RemoveSiteThemes{Site: site}); err != nil {
				return fmt.Errorf("failed to remove site themes: %w", err)
			}

			log.Info().Int64("site_id", site.ID).Msg("Site themes removed from cache")
			return nil
		},
	}

	cmd.Flags().Int64VarP(&siteID, "site", "s", 0, "local site id")

	return cmd
}
