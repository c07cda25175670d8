package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/embed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeChunks(t *testing.T, source string, n int) []corpus.Chunk {
	t.Helper()
	out := make([]corpus.Chunk, n)
	for i := range n {
		c, err := corpus.New(fmt.Sprintf("section %d of %s covers topic%d in depth", i, source, i), corpus.Metadata{
			Source:     source,
			DocType:    corpus.DocHTML,
			Heading:    "notes",
			ChunkIndex: corpus.Int(i),
		})
		require.NoError(t, err)
		out[i] = c
	}
	return out
}

// flakyEmbedder fails on the call numbered failOn (1-based).
type flakyEmbedder struct {
	*embed.Hashed
	calls  int
	failOn int
}

var errEmbedDown = errors.New("embedding service down")

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errEmbedDown
	}
	return f.Hashed.Embed(ctx, texts)
}

// wrongDimsEmbedder reports a size mismatch the way the remote clients do.
type wrongDimsEmbedder struct {
	*embed.Hashed
}

func (w *wrongDimsEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: model test returned 3 dimensions, expected %d", embed.ErrDimensionMismatch, w.Dimensions())
}
