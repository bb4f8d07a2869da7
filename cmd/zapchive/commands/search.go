package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/config"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
	"github.com/jpereira/zapchive/pkg/zapchive/search"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over archived messages",
		Long: `Searches the archive by meaning, not keywords. Requires an embedding
provider to be configured; messages archived before embeddings were enabled
are not searchable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().StringP("group", "g", "", "restrict the search to one group JID")
	cmd.Flags().IntP("limit", "n", search.DefaultLimit, "maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	groupJID, _ := cmd.Flags().GetString("group")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	embedder := embed.NewProvider(cfg.Embedding)

	store, err := archive.NewStore(cfg.Database.Path, embedder.Dimensions(), nil)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	searcher := search.New(store, embedder, nil)
	if !searcher.Available() {
		return fmt.Errorf("semantic search unavailable: set embedding.provider in %s", configPath)
	}

	query := strings.Join(args, " ")

	hits, err := searcher.Search(cmd.Context(), query, groupJID, limit)
	if err != nil {
		return err
	}

	fmt.Println(search.FormatResults(hits, loc))
	return nil
}
