package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/themesync/pkg/stores"
)

func newListCommand() *cobra.Command {
	var (
		siteID     int64
		search     string
		activeOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list [catalog|installed|active]",
		Short: "List cached themes",
		Long: `List themes from the local cache without contacting the remote API.

  - catalog: cached WordPress.com catalog
  - installed: themes installed on a site (requires --site)
  - active: the active theme of a site (requires --site)

Without an argument every cached row is listed, narrowed by the flags.`,
		Example: `  # Everything in the cache
  themesync list

  # Catalog entries matching a term
  themesync list catalog --search twenty

  # A site's active theme as JSON
  themesync list active --site 1 --json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"catalog", "installed", "active"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			filter := stores.ThemeFilter{Query: search, ActiveOnly: activeOnly, Limit: limit}

			kind := ""
			if len(args) > 0 {
				kind = args[0]
			}

			switch kind {
			case "active":
				site, err := a.site(siteID)
				if err != nil {
					return err
				}
				theme, err := a.themes.GetActiveThemeForSite(ctx, site)
				if err != nil {
					return err
				}
				return printTheme(out(cmd), theme)

			case "catalog":
				filter.Partition = stores.PartitionCatalog

			case "installed":
				site, err := a.site(siteID)
				if err != nil {
					return err
				}
				filter.Partition = stores.PartitionInstalled
				filter.SiteID = &site.ID

			case "":
				if siteID != 0 {
					filter.SiteID = &siteID
				}

			default:
				return fmt.Errorf("unknown list kind %q", kind)
			}

			themes, err := a.cache.ListThemes(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list themes: %w", err)
			}
			if err := printThemes(out(cmd), themes); err != nil {
				return err
			}

			if jsonOutput {
				return nil
			}
			counts, err := a.cache.CountThemes(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "\n%d shown, %d catalog, %d installed\n", len(themes), counts.Catalog, counts.Installed)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&siteID, "site", "s", 0, "local site id")
	cmd.Flags().StringVar(&search, "search", "", "filter by theme id or name")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active themes")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 for all)")

	return cmd
}
