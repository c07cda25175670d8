package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/embed"
)

// Snapshot is a loaded, read-only view of an index. It is safe for
// concurrent readers.
type Snapshot struct {
	manifest *Manifest
	chunks   []corpus.Chunk
	byID     map[string]corpus.Chunk
	lexical  *Lexical
	semantic *Semantic
}

// FamilyAt returns the embedding family recorded for the index at dir.
func FamilyAt(dir string) (string, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return "", err
	}
	return m.EmbedFamily, nil
}

// Open loads the index at dir for querying with e.
func Open(ctx context.Context, dir string, e embed.Embedder, log *slog.Logger) (*Snapshot, error) {
	if log == nil {
		log = slog.Default()
	}
	exists, err := Exists(dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(dir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := checkFamily(ctx, store, e, false); err != nil {
		return nil, err
	}
	chunks, err := store.All(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := OpenVector(dir, e.Family())
	if err != nil {
		return nil, err
	}
	if vector.Count() != len(chunks) {
		log.Warn("vector and chunk counts differ", "vectors", vector.Count(), "chunks", len(chunks))
	}

	byID := make(map[string]corpus.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	log.Info("index loaded", "chunks", len(chunks), "files", len(manifest.Files), "embed_family", e.Family())

	return &Snapshot{
		manifest: manifest,
		chunks:   chunks,
		byID:     byID,
		lexical:  NewLexical(chunks),
		semantic: &Semantic{vector: vector, embedder: e},
	}, nil
}

// Manifest returns the manifest the snapshot was loaded with.
func (s *Snapshot) Manifest() *Manifest { return s.manifest }

// Len returns the number of chunks.
func (s *Snapshot) Len() int { return len(s.chunks) }

// Chunks returns every chunk in insertion order. Callers must not modify
// the slice.
func (s *Snapshot) Chunks() []corpus.Chunk { return s.chunks }

// Chunk looks up a chunk by id.
func (s *Snapshot) Chunk(id string) (corpus.Chunk, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Lexical returns the BM25 index over all chunks.
func (s *Snapshot) Lexical() *Lexical { return s.lexical }

// Semantic returns the text-in vector search.
func (s *Snapshot) Semantic() *Semantic { return s.semantic }

// Semantic embeds a query and searches the vector index.
type Semantic struct {
	vector   *Vector
	embedder embed.Embedder
}

// Search returns up to k nearest chunk ids for query.
func (s *Semantic) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	vec, err := embed.Query(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != s.embedder.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d dims, index expects %d; rebuild with matching embeddings",
			ErrDimensionMismatch, len(vec), s.embedder.Dimensions())
	}
	return s.vector.Search(ctx, vec, k)
}
