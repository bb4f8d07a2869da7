package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/config"
)

func newGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List archived groups",
		Long:  "Lists every archived group with its message count and last activity.",
		RunE:  runGroups,
	}
}

func runGroups(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := archive.NewStore(cfg.Database.Path, 0, nil)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	groups, err := store.ListGroups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No archived groups yet. Run 'zapchive serve' to start archiving.")
		return nil
	}

	fmt.Printf("%-50s %-30s %10s  %s\n", "JID", "NAME", "MESSAGES", "LAST MESSAGE")
	for _, g := range groups {
		last := "-"
		if !g.LastMessage.IsZero() {
			last = g.LastMessage.In(loc).Format("2006-01-02 15:04")
		}
		name := g.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-50s %-30s %10d  %s\n", g.JID, name, g.MessageCount, last)
	}
	return nil
}
