package corpus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DocType classifies where a chunk came from.
type DocType string

const (
	DocTextbook DocType = "textbook"
	DocSlides   DocType = "slides"
	DocHTML     DocType = "html"
)

// Valid reports whether t is one of the known document types.
func (t DocType) Valid() bool {
	switch t {
	case DocTextbook, DocSlides, DocHTML:
		return true
	}
	return false
}

// ErrInvalidChunk is returned by New when a chunk is missing required fields.
var ErrInvalidChunk = errors.New("invalid chunk")

// Metadata is the structural provenance of a chunk. Source and DocType are
// always present; optional integers are nil when the producing strategy does
// not know them.
type Metadata struct {
	Source       string            `json:"source"`
	DocType      DocType           `json:"doc_type"`
	Chapter      *int              `json:"chapter,omitempty"`
	ChapterTitle string            `json:"chapter_title,omitempty"`
	Slide        *int              `json:"slide,omitempty"`
	Heading      string            `json:"heading,omitempty"`
	ChunkIndex   *int              `json:"chunk_index,omitempty"`
	CourseID     string            `json:"course_id,omitempty"`
	Version      string            `json:"version,omitempty"`
	BookTitle    string            `json:"book_title,omitempty"`
	DeckTitle    string            `json:"deck_title,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Chunk is one retrievable unit of text. Chunks are immutable once built.
type Chunk struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Meta    Metadata `json:"metadata"`
}

// Int returns a pointer to n, for the optional metadata fields.
func Int(n int) *int { return &n }

// New validates content and metadata and returns a chunk with its identity key set.
func New(content string, meta Metadata) (Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return Chunk{}, fmt.Errorf("%w: empty content", ErrInvalidChunk)
	}
	if meta.Source == "" {
		return Chunk{}, fmt.Errorf("%w: missing source", ErrInvalidChunk)
	}
	if !meta.DocType.Valid() {
		return Chunk{}, fmt.Errorf("%w: doc_type %q", ErrInvalidChunk, meta.DocType)
	}
	if meta.Chapter != nil && *meta.Chapter < 0 {
		return Chunk{}, fmt.Errorf("%w: negative chapter", ErrInvalidChunk)
	}
	if meta.Slide != nil && *meta.Slide < 0 {
		return Chunk{}, fmt.Errorf("%w: negative slide", ErrInvalidChunk)
	}
	return Chunk{
		ID:      IdentityKey(content, meta),
		Content: content,
		Meta:    meta,
	}, nil
}

const identityPrefixRunes = 200

// IdentityKey fingerprints a chunk's provenance: course, version, source,
// structural position and the first 200 characters of content. Equal keys
// denote the same logical chunk across rebuilds.
func IdentityKey(content string, meta Metadata) string {
	h, _ := blake2b.New(8, nil)
	parts := []string{meta.CourseID, meta.Version, meta.Source}
	if meta.Slide != nil {
		parts = append(parts, "slide:"+strconv.Itoa(*meta.Slide))
	}
	if meta.Chapter != nil {
		parts = append(parts, "chapter:"+strconv.Itoa(*meta.Chapter))
	}
	if meta.Heading != "" {
		parts = append(parts, "heading:"+meta.Heading)
	}
	if meta.ChunkIndex != nil {
		parts = append(parts, "chunk:"+strconv.Itoa(*meta.ChunkIndex))
	}
	parts = append(parts, prefixRunes(content, identityPrefixRunes))
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Fields flattens the metadata into string pairs for stores that only keep
// string maps.
func (m Metadata) Fields() map[string]string {
	out := map[string]string{
		"source":   m.Source,
		"doc_type": string(m.DocType),
	}
	if m.Chapter != nil {
		out["chapter"] = strconv.Itoa(*m.Chapter)
	}
	if m.ChapterTitle != "" {
		out["chapter_title"] = m.ChapterTitle
	}
	if m.Slide != nil {
		out["slide"] = strconv.Itoa(*m.Slide)
	}
	if m.Heading != "" {
		out["heading"] = m.Heading
	}
	if m.ChunkIndex != nil {
		out["chunk_index"] = strconv.Itoa(*m.ChunkIndex)
	}
	if m.CourseID != "" {
		out["course_id"] = m.CourseID
	}
	if m.Version != "" {
		out["version"] = m.Version
	}
	if m.BookTitle != "" {
		out["book_title"] = m.BookTitle
	}
	if m.DeckTitle != "" {
		out["deck_title"] = m.DeckTitle
	}
	for k, v := range m.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// Citation renders a short bracketed reference used in prompts.
func (c Chunk) Citation() string {
	m := c.Meta
	switch {
	case m.DocType == DocTextbook && m.Chapter != nil:
		book := m.BookTitle
		if book == "" {
			book = "textbook"
		}
		return fmt.Sprintf("[%s ch %d]", book, *m.Chapter)
	case m.DocType == DocSlides && m.Slide != nil:
		deck := m.DeckTitle
		if deck == "" {
			deck = "slides"
		}
		return fmt.Sprintf("[%s slide %d]", deck, *m.Slide)
	}
	return fmt.Sprintf("[%s]", m.Source)
}
