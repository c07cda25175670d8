package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/dgallion1/coursegest/internal/corpus"
)

const (
	vectorDir      = "vectors"
	collectionName = "chunks"
)

var errNoEmbedding = errors.New("vector index stores precomputed embeddings only")

// noEmbedding keeps chromem from calling its default embedding service.
// Every document and query arrives with its vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Vector is the persistent nearest-neighbour index. chromem keeps the
// collection in memory and writes each document to disk as it is added.
type Vector struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// OpenVector opens or creates the collection under dir/vectors.
func OpenVector(dir, family string) (*Vector, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, vectorDir), true)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	coll, err := db.GetOrCreateCollection(collectionName, map[string]string{"embed_family": family}, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection: %w", err)
	}
	return &Vector{db: db, coll: coll}, nil
}

// Count returns the number of stored vectors.
func (v *Vector) Count() int { return v.coll.Count() }

// Add stores chunks with their precomputed embeddings.
func (v *Vector) Add(ctx context.Context, chunks []corpus.Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("add vectors: %d chunks, %d embeddings", len(chunks), len(vecs))
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Metadata:  c.Meta.Fields(),
			Embedding: vecs[i],
			Content:   c.Content,
		}
	}
	if err := v.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	return nil
}

// Search returns up to k nearest chunk ids for an embedded query.
func (v *Vector) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	n := min(k, v.coll.Count())
	if n <= 0 {
		return nil, nil
	}
	res, err := v.coll.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]Hit, len(res))
	for i, r := range res {
		hits[i] = Hit{ID: r.ID, Score: float64(r.Similarity)}
	}
	return hits, nil
}

// Delete removes vectors by chunk id.
func (v *Vector) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := v.coll.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}
