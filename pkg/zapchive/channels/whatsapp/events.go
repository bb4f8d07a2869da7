// Package whatsapp – events.go processes incoming whatsmeow events and feeds
// archivable group messages into the store.
package whatsapp

import (
	"context"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
)

// embedTimeout bounds the detached embedding write for one message.
const embedTimeout = 30 * time.Second

// handleEvent is the main whatsmeow event dispatcher.
func (c *Channel) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		c.handleMessageEvt(evt)

	case *events.Connected:
		c.connected.Store(true)
		c.logger.Info("connection established")

	case *events.Disconnected:
		c.connected.Store(false)
		c.logger.Warn("connection lost, auto-reconnect pending")

	case *events.LoggedOut:
		c.connected.Store(false)
		c.logger.Error("device logged out, re-link required")

	case *events.GroupInfo:
		// Opportunistic group name refresh; empty names never overwrite.
		if evt.Name != nil {
			if err := c.store.SetGroupName(evt.JID.String(), evt.Name.Name); err != nil {
				c.logger.Warn("group name update failed", "group", evt.JID.String(), "error", err)
			}
		}
	}
}

// handleMessageEvt archives one inbound group message. Messages from the
// linked device itself, broadcasts and direct chats are not archivable.
// Redelivered events are safe: the archive insert is idempotent on the
// platform message ID.
func (c *Channel) handleMessageEvt(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}
	if evt.Info.Chat.Server == "broadcast" {
		return
	}
	if !evt.Info.IsGroup {
		return
	}

	content := extractText(evt.Message)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, c.cfg.CommandPrefix) {
		c.handleCommand(evt, content)
		return
	}

	msg := archive.Message{
		ID:         string(evt.Info.ID),
		GroupJID:   evt.Info.Chat.String(),
		SenderID:   evt.Info.Sender.String(),
		SenderName: evt.Info.PushName,
		Content:    content,
		Timestamp:  evt.Info.Timestamp.UnixMilli(),
	}

	id, err := c.store.InsertMessage(msg)
	if err != nil {
		c.logger.Error("archive insert failed", "group", msg.GroupJID, "error", err)
		return
	}

	// Detached embedding write: ingestion neither waits for it nor sees its
	// failure — absence of a vector only degrades search for this message.
	if c.store.VectorEnabled() && c.embedder.Dimensions() > 0 {
		go c.embedMessage(id, content)
	}
}

// embedMessage generates and stores the embedding for one archived message.
func (c *Channel) embedMessage(messageID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	vectors, err := c.embedder.Embed(ctx, []string{content})
	if err != nil {
		c.logger.Warn("embedding failed", "message_id", messageID, "error", err)
		return
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return
	}
	if err := c.store.InsertEmbedding(messageID, vectors[0]); err != nil {
		c.logger.Warn("embedding write failed", "message_id", messageID, "error", err)
	}
}

// extractText pulls the text content out of a WhatsApp message: plain
// conversation, extended text, or a media caption.
func extractText(waMsg *waE2E.Message) string {
	if waMsg == nil {
		return ""
	}
	if waMsg.Conversation != nil {
		return waMsg.GetConversation()
	}
	if ext := waMsg.ExtendedTextMessage; ext != nil {
		return ext.GetText()
	}
	if img := waMsg.ImageMessage; img != nil {
		return img.GetCaption()
	}
	if vid := waMsg.VideoMessage; vid != nil {
		return vid.GetCaption()
	}
	return ""
}
