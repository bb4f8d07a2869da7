package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/config"
	"github.com/jpereira/zapchive/pkg/zapchive/summarize"
)

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <group-jid> [date]",
		Short: "Show or generate the daily summary for a group",
		Long: `Prints the stored daily summary for a group, generating it first when it
does not exist yet. The date is a local calendar day (YYYY-MM-DD) and
defaults to yesterday.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runSummary,
	}
}

func runSummary(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	groupJID := args[0]
	date := time.Now().In(loc).AddDate(0, 0, -1).Format("2006-01-02")
	if len(args) > 1 {
		if _, err := time.Parse("2006-01-02", args[1]); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
		}
		date = args[1]
	}

	store, err := archive.NewStore(cfg.Database.Path, 0, nil)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	generator, err := summarize.NewGenerator(cfg.Summary)
	if err != nil {
		return err
	}
	pipeline := summarize.NewPipeline(store, generator, loc, nil)

	text, err := pipeline.GenerateAndStore(cmd.Context(), groupJID, date)
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	if text == "" {
		fmt.Printf("No archived messages for %s on %s.\n", groupJID, date)
		return nil
	}

	fmt.Printf("Summary for %s on %s:\n\n%s\n", groupJID, date, text)
	return nil
}
