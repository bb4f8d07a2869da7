package search

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jpereira/zapchive/pkg/zapchive/archive"
	"github.com/jpereira/zapchive/pkg/zapchive/embed"
)

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	vec  []float32
	dims int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Model() string   { return "fake" }

func newTestStore(t *testing.T, dims int) *archive.Store {
	t.Helper()
	store, err := archive.NewStore(filepath.Join(t.TempDir(), "test.db"), dims, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAvailable(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		s := New(newTestStore(t, 3), &fakeEmbedder{dims: 3}, nil)
		if !s.Available() {
			t.Error("expected available with vectors and embedder")
		}
	})

	t.Run("store disabled", func(t *testing.T) {
		s := New(newTestStore(t, 0), &fakeEmbedder{dims: 3}, nil)
		if s.Available() {
			t.Error("expected unavailable without vector subsystem")
		}
	})

	t.Run("null embedder", func(t *testing.T) {
		s := New(newTestStore(t, 3), &embed.NullProvider{}, nil)
		if s.Available() {
			t.Error("expected unavailable with null embedder")
		}
	})
}

func TestSearch(t *testing.T) {
	store := newTestStore(t, 3)

	if _, err := store.InsertMessage(archive.Message{ID: "m1", GroupJID: "a@g.us", SenderID: "u", SenderName: "Ana", Content: "deploy amanhã cedo", Timestamp: 1000}); err != nil {
		t.Fatalf("InsertMessage failed: %v", err)
	}
	if err := store.InsertEmbedding("m1", []float32{1, 0, 0}); err != nil {
		t.Fatalf("InsertEmbedding failed: %v", err)
	}

	s := New(store, &fakeEmbedder{vec: []float32{1, 0, 0}, dims: 3}, nil)

	hits, err := s.Search(context.Background(), "quando é o deploy?", "", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Message.ID != "m1" {
		t.Fatalf("expected m1, got %+v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("expected score ~1.0, got %f", hits[0].Score)
	}
}

func TestSearch_NullEmbedderReturnsNothing(t *testing.T) {
	s := New(newTestStore(t, 3), &embed.NullProvider{}, nil)

	hits, err := s.Search(context.Background(), "qualquer coisa", "", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if hits != nil {
		t.Errorf("expected no hits, got %+v", hits)
	}
}

func TestFormatResults(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) // 14:00 local

	hits := []archive.SearchHit{
		{
			Message: archive.Message{SenderName: "Ana", Content: "vamos fechar o contrato", Timestamp: ts.UnixMilli()},
			Score:   0.87,
		},
		{
			Message: archive.Message{SenderID: "5511999@s.whatsapp.net", Content: "ok", Timestamp: ts.UnixMilli()},
			Score:   0.52,
		},
	}

	got := FormatResults(hits, loc)

	if !strings.Contains(got, "1. [87%] 2024-06-15 14:00 Ana: vamos fechar o contrato") {
		t.Errorf("unexpected first line in %q", got)
	}
	if !strings.Contains(got, "2. [52%] 2024-06-15 14:00 5511999@s.whatsapp.net: ok") {
		t.Errorf("unexpected second line in %q", got)
	}
}

func TestFormatResults_Empty(t *testing.T) {
	got := FormatResults(nil, time.UTC)
	if got != "Nenhum resultado encontrado." {
		t.Errorf("unexpected empty message %q", got)
	}
}

func TestSnippet(t *testing.T) {
	t.Run("short passthrough", func(t *testing.T) {
		if got := Snippet("oi", 120); got != "oi" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("truncates with ellipsis", func(t *testing.T) {
		got := Snippet(strings.Repeat("a", 200), 120)
		if len(got) != 120+len("…") {
			t.Errorf("got %d chars", len(got))
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})

	t.Run("newlines flattened", func(t *testing.T) {
		if got := Snippet("linha 1\nlinha 2", 120); got != "linha 1 linha 2" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("never splits a rune", func(t *testing.T) {
		// 2-byte runes with an odd cap: the cut lands mid-rune.
		got := Snippet(strings.Repeat("ã", 100), 15)
		if !utf8.ValidString(got) {
			t.Errorf("snippet is not valid UTF-8: %q", got)
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})
}
