package retrieve

import (
	"context"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/index"
)

// Predicate selects chunks by metadata.
type Predicate func(corpus.Metadata) bool

// Any matches every chunk.
func Any(corpus.Metadata) bool { return true }

// Subset over-fetch: the vector index cannot filter by metadata, so it is
// asked for more than needed and out-of-subset hits are dropped.
const (
	overfetchFactor = 3
	overfetchMin    = 12
)

// NewSubset materializes the chunks matching pred, builds a lexical index
// over exactly those chunks and wraps vec with a membership filter.
// It returns ErrNoMatch when nothing matches.
func NewSubset(c Corpus, vec VectorIndex, pred Predicate) (*Retriever, error) {
	members := make(map[string]corpus.Chunk)
	var subset []corpus.Chunk
	for _, ch := range c.Chunks() {
		if !pred(ch.Meta) {
			continue
		}
		if _, dup := members[ch.ID]; dup {
			continue
		}
		members[ch.ID] = ch
		subset = append(subset, ch)
	}
	if len(subset) == 0 {
		return nil, ErrNoMatch
	}
	return &Retriever{
		lookup: func(id string) (corpus.Chunk, bool) {
			ch, ok := members[id]
			return ch, ok
		},
		lexical: index.NewLexical(subset),
		vector:  &filteredVector{inner: vec, members: members},
		weights: SubsetWeights,
		size:    len(subset),
	}, nil
}

type filteredVector struct {
	inner   VectorIndex
	members map[string]corpus.Chunk
}

// Search may return fewer than k hits when the subset is sparse.
func (f *filteredVector) Search(ctx context.Context, query string, k int) ([]index.Hit, error) {
	fetch := max(overfetchMin, overfetchFactor*k)
	hits, err := f.inner.Search(ctx, query, fetch)
	if err != nil {
		return nil, err
	}
	out := make([]index.Hit, 0, k)
	for _, h := range hits {
		if _, ok := f.members[h.ID]; !ok {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out, nil
}
