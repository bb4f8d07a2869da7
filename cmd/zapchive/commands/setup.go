package commands

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jpereira/zapchive/pkg/zapchive/config"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		Long: `Walks through the initial configuration: timezone, summary provider,
API keys and semantic search. API keys are stored in the OS keyring when
possible, never in the config file. Writes the config and exits.`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	// Re-running setup edits the existing config instead of resetting it.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var (
		summaryKey   string
		embeddingKey string
		enableSearch = cfg.Embedding.Provider == "openai"
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Timezone").
				Description("IANA timezone for day boundaries, e.g. America/Sao_Paulo").
				Value(&cfg.Timezone).
				Validate(func(s string) error {
					if _, err := time.LoadLocation(s); err != nil {
						return fmt.Errorf("unknown timezone %q", s)
					}
					return nil
				}),

			huh.NewSelect[string]().
				Title("Summary provider").
				Options(
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("Anthropic", "anthropic"),
				).
				Value(&cfg.Summary.Provider),

			huh.NewInput().
				Title("Summary model").
				Description("Leave empty for the provider default").
				Value(&cfg.Summary.Model),

			huh.NewInput().
				Title("Summary API key").
				Description("Leave empty to keep the current key or use the environment").
				EchoMode(huh.EchoModePassword).
				Value(&summaryKey),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable semantic search?").
				Description("Embeds every archived message via the OpenAI Embeddings API").
				Value(&enableSearch),

			huh.NewInput().
				Title("Embedding API key").
				Description("Leave empty to reuse the summary key or the environment").
				EchoMode(huh.EchoModePassword).
				Value(&embeddingKey),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Daily summary time").
				Description("Local time the daily summaries run, HH:MM").
				Value(&cfg.Scheduler.TriggerTime).
				Validate(func(s string) error {
					if _, err := time.Parse("15:04", s); err != nil {
						return fmt.Errorf("expected HH:MM, got %q", s)
					}
					return nil
				}),

			huh.NewInput().
				Title("Chat command prefix").
				Value(&cfg.WhatsApp.CommandPrefix),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	if enableSearch {
		cfg.Embedding.Provider = "openai"
	} else {
		cfg.Embedding.Provider = "none"
	}

	// Keys go to the OS keyring; the config file only records the providers.
	if summaryKey != "" {
		if err := config.StoreKeyring(cfg.Summary.Provider, summaryKey); err != nil {
			fmt.Printf("Keyring unavailable (%v); set %s in the environment instead.\n",
				err, config.ProviderKeyEnvName(cfg.Summary.Provider))
		}
	}
	if embeddingKey != "" && enableSearch {
		if err := config.StoreKeyring(cfg.Embedding.Provider, embeddingKey); err != nil {
			fmt.Printf("Keyring unavailable (%v); set %s in the environment instead.\n",
				err, config.ProviderKeyEnvName(cfg.Embedding.Provider))
		}
	}
	cfg.Summary.APIKey = ""
	cfg.Embedding.APIKey = ""

	if err := config.Save(cfg, configPath); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s.\nNext: zapchive serve\n", configPath)
	return nil
}
