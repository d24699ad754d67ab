package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "themesync",
		Short: "themesync - WordPress theme cache and sync engine",
		Long: `themesync keeps a local cache of WordPress.com themes and of the themes
installed on your sites in sync with the remote API.

Features:
  - Catalog, installed and active theme sync per site
  - Theme activation, install and delete with capability checks
  - Local SQLite cache with partitioned refresh
  - Periodic sync with metrics and tracing (serve)`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newActivateCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newRemoveCommand())
	rootCmd.AddCommand(newRemoveSiteCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}

// out is where command results are written.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
