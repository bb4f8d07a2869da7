// Package whatsapp implements the WhatsApp connection for zapchive using
// whatsmeow. It feeds inbound group messages into the archive, answers chat
// commands, and kicks off fire-and-forget embedding writes.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
	"github.com/jpereira/zapchive/pkg/zapchive/search"
	"github.com/jpereira/zapchive/pkg/zapchive/summarize"
)

// Config holds WhatsApp connection configuration.
type Config struct {
	// SessionPath is the SQLite database file for the WhatsApp session
	// (whatsmeow_ tables). Kept separate from the archive database.
	SessionPath string `yaml:"session_path"`

	// CommandPrefix marks chat commands (e.g. "!resumo"). Messages starting
	// with it are handled, not archived.
	CommandPrefix string `yaml:"command_prefix"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionPath:   "./data/session.db",
		CommandPrefix: "!",
	}
}

// Channel is the WhatsApp ingestion and command surface.
type Channel struct {
	cfg      Config
	client   *whatsmeow.Client
	store    *archive.Store
	pipeline *summarize.Pipeline
	searcher *search.Searcher
	embedder embed.Provider
	loc      *time.Location
	logger   *slog.Logger

	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates the WhatsApp channel.
func New(cfg Config, st *archive.Store, pipeline *summarize.Pipeline, searcher *search.Searcher, embedder embed.Provider, loc *time.Location, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = DefaultConfig().CommandPrefix
	}
	return &Channel{
		cfg:      cfg,
		store:    st,
		pipeline: pipeline,
		searcher: searcher,
		embedder: embedder,
		loc:      loc,
		logger:   logger.With("component", "whatsapp"),
	}
}

// Connect opens the session store and connects to WhatsApp. On first run it
// prints QR login codes to the log until the device is linked.
func (c *Channel) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	container, err := sqlstore.New(c.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", c.cfg.SessionPath),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	device, err := container.GetFirstDevice(c.ctx)
	if err != nil {
		return fmt.Errorf("getting device: %w", err)
	}

	store.SetOSInfo("Zapchive", [3]uint32{1, 0, 0})

	c.client = whatsmeow.NewClient(device, waLog.Noop)
	c.client.AddEventHandler(c.handleEvent)
	c.client.EnableAutoReconnect = true

	if c.client.Store.ID == nil {
		// First login — stream QR codes until paired.
		qrChan, _ := c.client.GetQRChannel(c.ctx)
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connecting for QR login: %w", err)
		}
		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					c.logger.Info("scan QR code to link device", "code", evt.Code)
					fmt.Printf("\nQR code: %s\n\n", evt.Code)
				case "success":
					c.logger.Info("device linked")
				default:
					c.logger.Warn("QR login event", "event", evt.Event)
				}
			}
		}()
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	c.connected.Store(true)
	c.logger.Info("connected", "jid", c.client.Store.ID.String())
	return nil
}

// Disconnect closes the WhatsApp connection.
func (c *Channel) Disconnect() {
	c.connected.Store(false)
	if c.cancel != nil {
		c.cancel()
	}
	if c.client != nil {
		c.client.Disconnect()
	}
	c.logger.Info("disconnected")
}

// IsConnected reports whether the client is connected.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// sendText sends a plain text message to a chat.
func (c *Channel) sendText(ctx context.Context, to types.JID, text string) error {
	msg := &waE2E.Message{Conversation: proto.String(text)}
	if _, err := c.client.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("sending message to %s: %w", to, err)
	}
	return nil
}

// parseJID converts a string to a types.JID, accepting bare group IDs.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}
	return types.NewJID(s, types.GroupServer), nil
}
