package index

import (
	"errors"

	"github.com/dgallion1/coursegest/internal/embed"
)

var (
	// ErrEmptyCorpus is returned when a fresh build is given no chunks.
	ErrEmptyCorpus = errors.New("no chunks to index")

	// ErrNotFound is returned when no index exists at a location.
	ErrNotFound = errors.New("index not found")

	// ErrDimensionMismatch is returned when an index was built with an
	// embedding family other than the active one. It is the embedder's
	// error value, so either package's sentinel matches.
	ErrDimensionMismatch = embed.ErrDimensionMismatch
)

// Hit is one ranked search result.
type Hit struct {
	ID    string
	Score float64
}
