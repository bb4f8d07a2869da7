// Package search embeds a query string and ranks archived messages by vector
// similarity via the archive store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
)

// DefaultLimit is the result count when the caller does not pass one.
const DefaultLimit = 10

// snippetLen caps the message content shown per result.
const snippetLen = 120

// Searcher performs semantic search over the archive.
type Searcher struct {
	store    *archive.Store
	embedder embed.Provider
	logger   *slog.Logger
}

// New creates a Searcher.
func New(store *archive.Store, embedder embed.Provider, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		store:    store,
		embedder: embedder,
		logger:   logger.With("component", "search"),
	}
}

// Available reports whether semantic search can run. Callers should check
// this and report "unavailable" instead of calling Search.
func (s *Searcher) Available() bool {
	return s.store.VectorEnabled() && s.embedder.Dimensions() > 0
}

// Search embeds the query and returns up to limit messages ranked by
// descending similarity, optionally scoped to one group (empty = all).
// Assumes Available() was checked by the caller.
func (s *Searcher) Search(ctx context.Context, query, groupJID string, limit int) ([]archive.SearchHit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}

	hits, err := s.store.SearchSimilar(vectors[0], limit, groupJID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("semantic search", "query_len", len(query), "group", groupJID, "hits", len(hits))
	return hits, nil
}

// FormatResults renders hits for chat or terminal display: percent score,
// local time, sender and a truncated snippet. Pure transform over the hits.
func FormatResults(hits []archive.SearchHit, loc *time.Location) string {
	if len(hits) == 0 {
		return "Nenhum resultado encontrado."
	}
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	for i, h := range hits {
		sender := h.Message.SenderName
		if sender == "" {
			sender = h.Message.SenderID
		}
		ts := time.UnixMilli(h.Message.Timestamp).In(loc)
		b.WriteString(fmt.Sprintf("%d. [%.0f%%] %s %s: %s\n",
			i+1,
			h.Score*100,
			ts.Format("2006-01-02 15:04"),
			sender,
			Snippet(h.Message.Content, snippetLen),
		))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Snippet truncates content for display, appending an ellipsis when cut.
// The cut lands on a rune boundary so accented text stays valid UTF-8.
func Snippet(content string, max int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= max {
		return content
	}
	for max > 0 && !utf8.RuneStart(content[max]) {
		max--
	}
	return content[:max] + "…"
}
