package embed

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewProvider(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		p := NewProvider(Config{Provider: "openai", Dimensions: 256})
		if p.Name() != "openai" {
			t.Errorf("got %q", p.Name())
		}
		if p.Dimensions() != 256 {
			t.Errorf("got %d dimensions", p.Dimensions())
		}
	})

	t.Run("none degrades to null", func(t *testing.T) {
		p := NewProvider(Config{Provider: "none"})
		if p.Dimensions() != 0 {
			t.Errorf("expected 0 dimensions, got %d", p.Dimensions())
		}
	})

	t.Run("unknown degrades to null", func(t *testing.T) {
		p := NewProvider(Config{Provider: "acme"})
		if p.Name() != "none" {
			t.Errorf("got %q", p.Name())
		}
	})
}

func TestOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider(Config{Provider: "openai"})
	if p.Model() != "text-embedding-3-small" {
		t.Errorf("got %q", p.Model())
	}
	if p.Dimensions() != 1536 {
		t.Errorf("got %d", p.Dimensions())
	}
}

func TestNullProvider(t *testing.T) {
	p := &NullProvider{}
	vecs, err := p.Embed(context.Background(), []string{"qualquer coisa"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vecs != nil {
		t.Errorf("expected nil, got %v", vecs)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("curto", 100); got != "curto" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("a", 100)
	if got := Truncate(long, 10); len(got) != 10 {
		t.Errorf("got %d chars", len(got))
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "ç" is 2 bytes; an odd cap lands mid-rune and must back off.
	text := strings.Repeat("ç", 50)
	got := Truncate(text, 9)
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got)
	}
	if len(got) > 9 {
		t.Errorf("expected at most 9 bytes, got %d", len(got))
	}
	if len(got) != 8 {
		t.Errorf("expected cut at previous rune boundary (8 bytes), got %d", len(got))
	}
}
