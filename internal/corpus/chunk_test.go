package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SetsIdentityKey(t *testing.T) {
	c, err := New("Binary search halves the interval.", Metadata{
		Source:  "algo.html",
		DocType: DocTextbook,
		Chapter: Int(3),
	})
	require.NoError(t, err)
	assert.Len(t, c.ID, 16)
	assert.Equal(t, IdentityKey(c.Content, c.Meta), c.ID)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		meta    Metadata
	}{
		{"empty content", "   ", Metadata{Source: "a.html", DocType: DocHTML}},
		{"missing source", "text", Metadata{DocType: DocHTML}},
		{"unknown doc type", "text", Metadata{Source: "a.html", DocType: "pamphlet"}},
		{"negative slide", "text", Metadata{Source: "a.html", DocType: DocSlides, Slide: Int(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.content, tt.meta)
			assert.ErrorIs(t, err, ErrInvalidChunk)
		})
	}
}

func TestIdentityKey_StableAndPositional(t *testing.T) {
	meta := Metadata{Source: "deck.html", DocType: DocSlides, Slide: Int(1), CourseID: "CSC225", Version: "2025-09-01"}
	a := IdentityKey("Heaps", meta)
	b := IdentityKey("Heaps", meta)
	assert.Equal(t, a, b)

	other := meta
	other.Slide = Int(2)
	assert.NotEqual(t, a, IdentityKey("Heaps", other))

	otherVersion := meta
	otherVersion.Version = "2026-01-05"
	assert.NotEqual(t, a, IdentityKey("Heaps", otherVersion))
}

func TestIdentityKey_OnlyPrefixMatters(t *testing.T) {
	meta := Metadata{Source: "book.html", DocType: DocTextbook, Chapter: Int(1), ChunkIndex: Int(0)}
	prefix := strings.Repeat("é", 200)
	assert.Equal(t,
		IdentityKey(prefix+" tail one", meta),
		IdentityKey(prefix+" tail two", meta),
	)
}

func TestFields(t *testing.T) {
	m := Metadata{
		Source:     "deck.html",
		DocType:    DocSlides,
		Slide:      Int(4),
		ChunkIndex: Int(0),
		Extra:      map[string]string{"source": "ignored", "lang": "en"},
	}
	f := m.Fields()
	assert.Equal(t, "deck.html", f["source"])
	assert.Equal(t, "slides", f["doc_type"])
	assert.Equal(t, "4", f["slide"])
	assert.Equal(t, "0", f["chunk_index"])
	assert.Equal(t, "en", f["lang"])
	assert.NotContains(t, f, "chapter")
}

func TestCitation(t *testing.T) {
	tb, _ := New("x", Metadata{Source: "a.html", DocType: DocTextbook, Chapter: Int(2), BookTitle: "Algorithms"})
	sl, _ := New("x", Metadata{Source: "b.html", DocType: DocSlides, Slide: Int(7), DeckTitle: "lec03"})
	gen, _ := New("x", Metadata{Source: "c.html", DocType: DocHTML, Heading: "Intro"})

	assert.Equal(t, "[Algorithms ch 2]", tb.Citation())
	assert.Equal(t, "[lec03 slide 7]", sl.Citation())
	assert.Equal(t, "[c.html]", gen.Citation())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"heap's", "height", "o", "log", "n"}, Tokenize("The heap's height is O(log n)."))
	assert.Empty(t, Tokenize("the and of"))
	assert.Equal(t, []string{"chapter", "3"}, Tokenize("Chapter 3"))
}
