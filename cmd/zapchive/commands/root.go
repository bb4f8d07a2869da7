// Package commands implements the zapchive CLI using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zapchive",
		Short: "zapchive - WhatsApp group archive with daily summaries",
		Long: `zapchive archives WhatsApp group messages, generates one summary per
group per day, and makes the archive semantically searchable.

Examples:
  zapchive setup
  zapchive serve
  zapchive groups
  zapchive summary 1203630xxxx@g.us 2026-08-29
  zapchive search "decisão sobre o deploy"`,
		Version: version,
	}

	rootCmd.AddCommand(
		newSetupCmd(),
		newServeCmd(),
		newGroupsCmd(),
		newSummaryCmd(),
		newSearchCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
