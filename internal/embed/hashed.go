package embed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/dgallion1/coursegest/internal/corpus"
)

// Hashed is a dependency-free bag-of-words embedder: each token is hashed
// into one of dims buckets with a sign bit, and the vector is L2
// normalized. No corpus preparation is needed.
type Hashed struct {
	dims int
}

func NewHashed(dims int) *Hashed {
	return &Hashed{dims: dims}
}

func (h *Hashed) Dimensions() int { return h.dims }
func (h *Hashed) Family() string  { return fmt.Sprintf("local:hashed-bow-%d", h.dims) }

func (h *Hashed) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hashed) vector(text string) []float32 {
	vec := make([]float64, h.dims)
	for _, tok := range corpus.Tokenize(text) {
		sum := blake2b.Sum256([]byte(tok))
		bucket := binary.LittleEndian.Uint64(sum[:8]) % uint64(h.dims)
		if sum[8]&1 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, h.dims)
	if norm == 0 {
		// Zero vectors cannot be normalized.
		out[0] = 1
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
