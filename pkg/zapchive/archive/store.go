// Package archive – store.go implements the SQLite-backed archive for groups,
// messages and daily summaries, plus an optional in-process vector index for
// semantic search. Embeddings are stored as JSON-encoded float32 arrays and
// searched with in-memory cosine similarity, so no sqlite extension is needed.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimensionality the store was configured with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Group is a chat conversation being archived, keyed by its JID.
type Group struct {
	JID          string
	Name         string
	FirstSeen    time.Time
	LastMessage  time.Time
	MessageCount int64
}

// Message is a single archived chat message. Immutable once inserted.
type Message struct {
	// ID is the message identity. When empty on insert, a UUID is generated.
	// Platform message IDs may be supplied so redelivered events are no-ops.
	ID         string
	GroupJID   string
	SenderID   string
	SenderName string
	Content    string
	// Timestamp is epoch milliseconds, the ordering key.
	Timestamp int64
	// Metadata is an opaque JSON payload, may be empty.
	Metadata string
}

// DailySummary is one generated summary for a (group, date) pair.
// Date is a YYYY-MM-DD calendar string in the configured timezone.
type DailySummary struct {
	ID           string
	GroupJID     string
	Date         string
	SummaryText  string
	MessageCount int
	CreatedAt    time.Time
}

// SearchHit is a message matched by vector similarity.
type SearchHit struct {
	Message Message
	// Score is 1 - cosine distance; higher is more similar.
	Score float64
}

// vectorEntry holds one message embedding in the in-memory index.
type vectorEntry struct {
	messageID string
	groupJID  string
	embedding []float32
}

// Store owns all persisted state. All other components read and write data
// only through it. Safe for concurrent use: database/sql serializes access
// and writes go through transactions.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// vectorDims is the store-wide embedding width. Zero disables the
	// vector subsystem; vector methods then degrade to safe no-ops.
	vectorDims int

	// vectorCache holds all message embeddings for in-memory cosine search.
	vectorCacheMu sync.RWMutex
	vectorCache   []vectorEntry
}

// NewStore opens or creates the archive database at dbPath.
// vectorDims fixes the embedding width for the lifetime of the store; pass 0
// to run without the vector subsystem (semantic search reports unavailable).
// Fails if the database cannot be opened or the schema cannot be created.
func NewStore(dbPath string, vectorDims int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{
		db:         db,
		logger:     logger.With("component", "archive"),
		vectorDims: vectorDims,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if s.VectorEnabled() {
		if err := s.refreshVectorCache(); err != nil {
			s.logger.Warn("failed to load vector cache", "error", err)
		}
	}

	return s, nil
}

// initSchema creates the required tables and indices.
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS groups (
			jid           TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			first_seen    INTEGER NOT NULL,
			last_message  INTEGER NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			group_jid   TEXT NOT NULL REFERENCES groups(jid),
			sender_id   TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			metadata    TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_messages_group_ts ON messages(group_jid, timestamp);
		CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(timestamp);

		CREATE TABLE IF NOT EXISTS daily_summaries (
			id            TEXT PRIMARY KEY,
			group_jid     TEXT NOT NULL REFERENCES groups(jid),
			date          TEXT NOT NULL,
			summary_text  TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			created_at    INTEGER NOT NULL,
			UNIQUE(group_jid, date)
		);

		CREATE TABLE IF NOT EXISTS message_embeddings (
			message_id TEXT PRIMARY KEY REFERENCES messages(id),
			embedding  TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// VectorEnabled reports whether the vector subsystem is available.
// Callers must check this before relying on embedding features.
func (s *Store) VectorEnabled() bool {
	return s.vectorDims > 0
}

// VectorDims returns the configured embedding width (0 when disabled).
func (s *Store) VectorDims() int {
	return s.vectorDims
}

// UpsertGroup creates the group row if absent. On an existing row it updates
// the name only when a non-empty name is supplied, bumps last_message to now
// and increments message_count. Never an error for an existing jid.
func (s *Store) UpsertGroup(jid, name string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO groups (jid, name, first_seen, last_message, message_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(jid) DO UPDATE SET
			name          = CASE WHEN excluded.name != '' THEN excluded.name ELSE groups.name END,
			last_message  = excluded.last_message,
			message_count = groups.message_count + 1
	`, jid, name, now, now)
	if err != nil {
		return fmt.Errorf("upsert group %q: %w", jid, err)
	}
	return nil
}

// InsertMessage persists a message, creating or updating its group row in the
// same transaction. Insertion is idempotent on ID: a redelivered message is a
// no-op and the group counters are not bumped twice. Returns the identity used.
func (s *Store) InsertMessage(msg Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin insert message: %w", err)
	}
	defer tx.Rollback()

	// Ensure the group row exists before the message references it.
	// Counters are only bumped below, once we know the insert was not a dup.
	_, err = tx.Exec(`
		INSERT INTO groups (jid, name, first_seen, last_message, message_count)
		VALUES (?, '', ?, ?, 0)
		ON CONFLICT(jid) DO NOTHING
	`, msg.GroupJID, msg.Timestamp, msg.Timestamp)
	if err != nil {
		return "", fmt.Errorf("ensure group %q: %w", msg.GroupJID, err)
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO messages (id, group_jid, sender_id, sender_name, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.GroupJID, msg.SenderID, msg.SenderName, msg.Content, msg.Timestamp, msg.Metadata)
	if err != nil {
		return "", fmt.Errorf("insert message %q: %w", msg.ID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert message %q: %w", msg.ID, err)
	}

	if inserted > 0 {
		_, err = tx.Exec(`
			UPDATE groups SET
				last_message  = ?,
				message_count = message_count + 1
			WHERE jid = ?
		`, msg.Timestamp, msg.GroupJID)
		if err != nil {
			return "", fmt.Errorf("bump group %q: %w", msg.GroupJID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit insert message: %w", err)
	}

	return msg.ID, nil
}

// SetGroupName updates a group's display name. Empty names are ignored so a
// known name is never overwritten with nothing.
func (s *Store) SetGroupName(jid, name string) error {
	if name == "" {
		return nil
	}
	_, err := s.db.Exec("UPDATE groups SET name = ? WHERE jid = ?", name, jid)
	if err != nil {
		return fmt.Errorf("set group name %q: %w", jid, err)
	}
	return nil
}

// GetMessagesByGroupAndDateRange returns the group's messages with
// startUTC <= timestamp < endUTC (epoch millis), ascending by timestamp.
func (s *Store) GetMessagesByGroupAndDateRange(jid string, startUTC, endUTC int64) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, group_jid, sender_id, sender_name, content, timestamp, metadata
		FROM messages
		WHERE group_jid = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`, jid, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("query messages for %q: %w", jid, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.GroupJID, &m.SenderID, &m.SenderName, &m.Content, &m.Timestamp, &m.Metadata); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// InsertEmbedding stores a message embedding, replace-on-write keyed by
// message ID. No-op when the vector subsystem is disabled. Fails with
// ErrDimensionMismatch when the vector width is wrong.
func (s *Store) InsertEmbedding(messageID string, vector []float32) error {
	if !s.VectorEnabled() {
		return nil
	}
	if len(vector) != s.vectorDims {
		return fmt.Errorf("%w: got %d, store configured for %d", ErrDimensionMismatch, len(vector), s.vectorDims)
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	var groupJID string
	if err := s.db.QueryRow("SELECT group_jid FROM messages WHERE id = ?", messageID).Scan(&groupJID); err != nil {
		return fmt.Errorf("embedding for unknown message %q: %w", messageID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO message_embeddings (message_id, embedding) VALUES (?, ?)
		ON CONFLICT(message_id) DO UPDATE SET embedding = excluded.embedding
	`, messageID, string(data))
	if err != nil {
		return fmt.Errorf("insert embedding %q: %w", messageID, err)
	}

	s.vectorCacheMu.Lock()
	replaced := false
	for i := range s.vectorCache {
		if s.vectorCache[i].messageID == messageID {
			s.vectorCache[i].embedding = vector
			replaced = true
			break
		}
	}
	if !replaced {
		s.vectorCache = append(s.vectorCache, vectorEntry{messageID: messageID, groupJID: groupJID, embedding: vector})
	}
	s.vectorCacheMu.Unlock()

	return nil
}

// SearchSimilar returns up to limit messages ranked by descending cosine
// similarity to queryVector, optionally filtered to one group (empty groupJID
// means all groups). Returns an empty result when the vector subsystem is
// disabled or the query vector is empty — never an error for those cases.
func (s *Store) SearchSimilar(queryVector []float32, limit int, groupJID string) ([]SearchHit, error) {
	if !s.VectorEnabled() || len(queryVector) == 0 {
		return nil, nil
	}
	if len(queryVector) != s.vectorDims {
		return nil, fmt.Errorf("%w: query has %d, store configured for %d", ErrDimensionMismatch, len(queryVector), s.vectorDims)
	}
	if limit <= 0 {
		limit = 10
	}

	type scored struct {
		messageID string
		score     float64
	}

	// The read lock covers the whole scoring pass: InsertEmbedding's
	// replace path mutates cache entries in place, so entries must not be
	// read after the lock is released.
	s.vectorCacheMu.RLock()
	var candidates []scored
	for _, e := range s.vectorCache {
		if groupJID != "" && e.groupJID != groupJID {
			continue
		}
		if len(e.embedding) != s.vectorDims {
			continue
		}
		candidates = append(candidates, scored{messageID: e.messageID, score: cosineSimilarity(queryVector, e.embedding)})
	}
	s.vectorCacheMu.RUnlock()

	// Stable sort keeps ties in cache order for a given snapshot.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]SearchHit, 0, len(candidates))
	for _, c := range candidates {
		msg, err := s.getMessageByID(c.messageID)
		if err != nil {
			s.logger.Warn("similarity hit references missing message", "message_id", c.messageID, "error", err)
			continue
		}
		hits = append(hits, SearchHit{Message: msg, Score: c.score})
	}
	return hits, nil
}

// getMessageByID fetches a single message row.
func (s *Store) getMessageByID(id string) (Message, error) {
	var m Message
	err := s.db.QueryRow(`
		SELECT id, group_jid, sender_id, sender_name, content, timestamp, metadata
		FROM messages WHERE id = ?
	`, id).Scan(&m.ID, &m.GroupJID, &m.SenderID, &m.SenderName, &m.Content, &m.Timestamp, &m.Metadata)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// InsertSummary stores a daily summary, replace-on-write keyed by (jid, date).
// The summary pipeline enforces read-before-write idempotency; other callers
// must not call this for an existing key.
func (s *Store) InsertSummary(jid, date, text string, messageCount int) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_summaries (id, group_jid, date, summary_text, message_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_jid, date) DO UPDATE SET
			summary_text  = excluded.summary_text,
			message_count = excluded.message_count,
			created_at    = excluded.created_at
	`, uuid.NewString(), jid, date, text, messageCount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert summary %s/%s: %w", jid, date, err)
	}
	return nil
}

// GetSummary returns the stored summary for (jid, date), or nil when absent.
func (s *Store) GetSummary(jid, date string) (*DailySummary, error) {
	var (
		ds        DailySummary
		createdAt int64
	)
	err := s.db.QueryRow(`
		SELECT id, group_jid, date, summary_text, message_count, created_at
		FROM daily_summaries WHERE group_jid = ? AND date = ?
	`, jid, date).Scan(&ds.ID, &ds.GroupJID, &ds.Date, &ds.SummaryText, &ds.MessageCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary %s/%s: %w", jid, date, err)
	}
	ds.CreatedAt = time.UnixMilli(createdAt)
	return &ds, nil
}

// GetGroupsWithMessagesOnDate returns the distinct group JIDs with at least
// one message in [startUTC, endUTC).
func (s *Store) GetGroupsWithMessagesOnDate(startUTC, endUTC int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT group_jid FROM messages
		WHERE timestamp >= ? AND timestamp < ?
	`, startUTC, endUTC)
	if err != nil {
		return nil, fmt.Errorf("query groups with messages: %w", err)
	}
	defer rows.Close()

	var jids []string
	for rows.Next() {
		var jid string
		if err := rows.Scan(&jid); err != nil {
			return nil, fmt.Errorf("scan group jid: %w", err)
		}
		jids = append(jids, jid)
	}
	return jids, rows.Err()
}

// ListGroups returns all groups ordered by most-recent activity first.
func (s *Store) ListGroups() ([]Group, error) {
	rows, err := s.db.Query(`
		SELECT jid, name, first_seen, last_message, message_count
		FROM groups ORDER BY last_message DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var (
			g           Group
			firstSeen   int64
			lastMessage int64
		)
		if err := rows.Scan(&g.JID, &g.Name, &firstSeen, &lastMessage, &g.MessageCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.FirstSeen = time.UnixMilli(firstSeen)
		g.LastMessage = time.UnixMilli(lastMessage)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// refreshVectorCache loads all stored embeddings into memory.
func (s *Store) refreshVectorCache() error {
	rows, err := s.db.Query(`
		SELECT e.message_id, m.group_jid, e.embedding
		FROM message_embeddings e
		JOIN messages m ON m.id = e.message_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var cache []vectorEntry
	for rows.Next() {
		var (
			e       vectorEntry
			embJSON string
		)
		if err := rows.Scan(&e.messageID, &e.groupJID, &embJSON); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(embJSON), &e.embedding); err != nil {
			continue
		}
		cache = append(cache, e)
	}

	s.vectorCacheMu.Lock()
	s.vectorCache = cache
	s.vectorCacheMu.Unlock()

	s.logger.Debug("vector cache loaded", "embeddings", len(cache))
	return rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
