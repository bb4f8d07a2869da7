package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/channels/whatsapp"
	"github.com/jpereira/zapchive/pkg/zapchive/config"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
	"github.com/jpereira/zapchive/pkg/zapchive/scheduler"
	"github.com/jpereira/zapchive/pkg/zapchive/search"
	"github.com/jpereira/zapchive/pkg/zapchive/summarize"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to WhatsApp and archive group messages",
		Long: `Connects to WhatsApp, archives incoming group messages, answers chat
commands and runs the daily summary scheduler. On first run a QR code is
printed for device linking. Runs until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging.Level, verbose)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	embedder := embed.NewProvider(cfg.Embedding)

	// The store's vector subsystem is sized to the embedder; a null embedder
	// disables it rather than leaving an unfillable table around.
	store, err := archive.NewStore(cfg.Database.Path, embedder.Dimensions(), logger)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	generator, err := summarize.NewGenerator(cfg.Summary)
	if err != nil {
		return err
	}

	pipeline := summarize.NewPipeline(store, generator, loc, logger)
	searcher := search.New(store, embedder, logger)

	sched := scheduler.New(cfg.Scheduler, loc, store, pipeline, logger)

	channel := whatsapp.New(cfg.WhatsApp, store, pipeline, searcher, embedder, loc, logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to WhatsApp: %w", err)
	}
	defer channel.Disconnect()

	sched.Start(ctx)
	defer sched.Stop()

	logger.Info("zapchive running",
		"timezone", loc.String(),
		"summary_provider", generator.Name(),
		"search_enabled", searcher.Available(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	return nil
}

// newLogger builds the process logger from the configured level. The verbose
// flag forces debug.
func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
