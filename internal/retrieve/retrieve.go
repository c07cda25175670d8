// Package retrieve combines lexical and vector search into one ranked list,
// optionally restricted to a metadata-filtered subset of the corpus.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/index"
)

// ErrNoMatch is returned when a subset predicate selects no chunks.
var ErrNoMatch = errors.New("no chunks match the filter")

// VectorIndex ranks chunk ids by semantic similarity to a query.
type VectorIndex interface {
	Search(ctx context.Context, query string, k int) ([]index.Hit, error)
}

// LexicalIndex ranks chunk ids by term overlap with a query.
type LexicalIndex interface {
	Search(query string, k int) []index.Hit
}

// Corpus resolves chunk ids and lists every chunk.
type Corpus interface {
	Chunks() []corpus.Chunk
	Chunk(id string) (corpus.Chunk, bool)
}

// Weights of the two ranked lists in the fusion.
type Weights struct {
	Lexical float64
	Vector  float64
}

var (
	// CorpusWeights apply to whole-corpus queries.
	CorpusWeights = Weights{Lexical: 0.4, Vector: 0.6}
	// SubsetWeights apply to filtered queries.
	SubsetWeights = Weights{Lexical: 0.5, Vector: 0.5}
)

// rrfC dampens the contribution of top ranks in reciprocal-rank fusion.
const rrfC = 60

// minDepth is the shortest list fetched from either index.
const minDepth = 8

// Result is one fused hit.
type Result struct {
	Chunk corpus.Chunk
	Score float64
}

// Retriever is a hybrid retriever over one corpus view. It holds no
// mutable state and is safe for concurrent use.
type Retriever struct {
	lookup  func(id string) (corpus.Chunk, bool)
	lexical LexicalIndex
	vector  VectorIndex
	weights Weights
	size    int
}

// NewHybrid retrieves over the whole corpus.
func NewHybrid(c Corpus, lex LexicalIndex, vec VectorIndex) *Retriever {
	return &Retriever{
		lookup:  c.Chunk,
		lexical: lex,
		vector:  vec,
		weights: CorpusWeights,
		size:    len(c.Chunks()),
	}
}

// WithWeights returns a copy of r using w.
func (r *Retriever) WithWeights(w Weights) *Retriever {
	cp := *r
	cp.weights = w
	return &cp
}

// Size returns the number of chunks r can return.
func (r *Retriever) Size() int { return r.size }

// Search returns up to k chunks, best first.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	return r.search(ctx, query, k, k)
}

// SearchUnion fetches both lists at depth max(8, k) and returns their
// whole fused union, best first. The result may hold up to twice the
// depth.
func (r *Retriever) SearchUnion(ctx context.Context, query string, k int) ([]Result, error) {
	return r.search(ctx, query, k, 0)
}

// search fuses both lists and keeps at most limit chunks; limit 0 keeps
// them all.
func (r *Retriever) search(ctx context.Context, query string, k, limit int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	depth := max(minDepth, k)

	lexHits := r.lexical.Search(query, depth)
	vecHits, err := r.vector.Search(ctx, query, depth)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	fused := fuse([]weighted{
		{hits: lexHits, weight: r.weights.Lexical},
		{hits: vecHits, weight: r.weights.Vector},
	})

	out := make([]Result, 0, len(fused))
	for _, h := range fused {
		c, ok := r.lookup(h.ID)
		if !ok {
			continue
		}
		out = append(out, Result{Chunk: c, Score: h.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type weighted struct {
	hits   []index.Hit
	weight float64
}

// fuse merges ranked lists by weighted reciprocal rank. Ids are
// deduplicated; ties keep the order in which ids were first seen.
func fuse(lists []weighted) []index.Hit {
	scores := make(map[string]float64)
	var order []string
	for _, l := range lists {
		for rank, h := range l.hits {
			if _, seen := scores[h.ID]; !seen {
				order = append(order, h.ID)
			}
			scores[h.ID] += l.weight / float64(rrfC+rank+1)
		}
	}
	out := make([]index.Hit, len(order))
	for i, id := range order {
		out[i] = index.Hit{ID: id, Score: scores[id]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
