package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
)

// transcriptBudget is the maximum transcript size sent to the backend.
// Longer transcripts are truncated, never rejected.
const transcriptBudget = 100_000

// truncationMarker is appended when a transcript is cut at the budget.
const truncationMarker = "\n[transcript truncated]"

// systemPrompt is the fixed instruction sent with every transcript.
const systemPrompt = `You summarize a single day of group chat messages.
Respond in the same language as the conversation.
Extract decisions, action items, discussion topics and announcements.
Use bullet points. Be concise. Use headers when there are multiple topics.`

// Pipeline generates and stores one daily summary per (group, date).
type Pipeline struct {
	store     *archive.Store
	generator Generator
	loc       *time.Location
	logger    *slog.Logger
}

// NewPipeline creates a summary pipeline. loc is the timezone used for day
// boundaries and transcript timestamps.
func NewPipeline(store *archive.Store, generator Generator, loc *time.Location, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{
		store:     store,
		generator: generator,
		loc:       loc,
		logger:    logger.With("component", "summarize"),
	}
}

// GenerateAndStore returns the summary for (groupJID, date), generating and
// persisting it on first request. An existing summary is returned as-is with
// no backend call. A day with no messages returns empty text and stores
// nothing, so a later retry can still produce a summary once messages exist.
// Backend failures propagate and leave no partial row behind.
func (p *Pipeline) GenerateAndStore(ctx context.Context, groupJID, date string) (string, error) {
	existing, err := p.store.GetSummary(groupJID, date)
	if err != nil {
		return "", err
	}
	if existing != nil {
		p.logger.Debug("summary cache hit", "group", groupJID, "date", date)
		return existing.SummaryText, nil
	}

	startUTC, endUTC, err := archive.ResolveDayRangeUTC(date, p.loc)
	if err != nil {
		return "", err
	}

	msgs, err := p.store.GetMessagesByGroupAndDateRange(groupJID, startUTC, endUTC)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		p.logger.Debug("no messages to summarize", "group", groupJID, "date", date)
		return "", nil
	}

	transcript := BuildTranscript(msgs, p.loc)

	text, err := p.generator.Generate(ctx, systemPrompt, transcript)
	if err != nil {
		return "", fmt.Errorf("generate summary for %s/%s: %w", groupJID, date, err)
	}

	if err := p.store.InsertSummary(groupJID, date, text, len(msgs)); err != nil {
		return "", err
	}

	p.logger.Info("summary generated",
		"group", groupJID,
		"date", date,
		"messages", len(msgs),
		"provider", p.generator.Name(),
	)
	return text, nil
}

// BuildTranscript renders messages as "[15:04] sender: content" lines in
// ascending timestamp order, truncated to the transcript budget.
func BuildTranscript(msgs []archive.Message, loc *time.Location) string {
	var b strings.Builder
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		ts := time.UnixMilli(m.Timestamp).In(loc)
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", ts.Format("15:04"), sender, m.Content))

		if b.Len() > transcriptBudget {
			break
		}
	}

	transcript := b.String()
	if len(transcript) > transcriptBudget {
		// Back off to a rune boundary so the cut never splits a character.
		cut := transcriptBudget
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut] + truncationMarker
	}
	return transcript
}
