package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/embed"
)

func build(t *testing.T, dir string, e embed.Embedder, fresh bool, chunks []corpus.Chunk) int {
	t.Helper()
	ctx := context.Background()
	w, err := OpenWriter(ctx, dir, e, WriterOptions{Fresh: fresh, Log: discardLogger()})
	require.NoError(t, err)
	defer w.Close()
	n, err := w.Add(ctx, chunks)
	require.NoError(t, err)
	require.NoError(t, NewManifest(e.Family()).Save(dir))
	return n
}

func TestWriter_EmptyCorpusLeavesLocationAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	w, err := OpenWriter(ctx, dir, embed.NewHashed(32), WriterOptions{Log: discardLogger()})
	require.NoError(t, err)
	_, err = w.Add(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	require.NoError(t, w.Close())

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_FreshEmptyCorpusLeavesIndexUnmodified(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	e := embed.NewHashed(32)
	build(t, dir, e, false, makeChunks(t, "a.html", 3))

	ctx := context.Background()
	w, err := OpenWriter(ctx, dir, e, WriterOptions{Fresh: true, Log: discardLogger()})
	require.NoError(t, err)
	_, err = w.Add(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	require.NoError(t, w.Close())

	snap, err := Open(ctx, dir, e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
}

func TestWriter_BatchesAndAppends(t *testing.T) {
	dir := t.TempDir()
	e := embed.NewHashed(64)
	ctx := context.Background()

	assert.Equal(t, 130, build(t, dir, e, false, makeChunks(t, "a.html", 130)))
	assert.Equal(t, 5, build(t, dir, e, false, makeChunks(t, "b.html", 5)))

	snap, err := Open(ctx, dir, e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 135, snap.Len())
	assert.Equal(t, 135, snap.Lexical().Len())
	assert.Equal(t, "a.html", snap.Chunks()[0].Meta.Source)
	assert.Equal(t, "b.html", snap.Chunks()[134].Meta.Source)

	target := snap.Chunks()[7]
	hits, err := snap.Semantic().Search(ctx, target.Content, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, target.ID, hits[0].ID)

	got, ok := snap.Chunk(target.ID)
	require.True(t, ok)
	assert.Equal(t, 7, *got.Meta.ChunkIndex)
}

func TestWriter_FailedBatchIsRolledBack(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	e := &flakyEmbedder{Hashed: embed.NewHashed(32), failOn: 2}

	w, err := OpenWriter(ctx, dir, e, WriterOptions{BatchSize: 4, Log: discardLogger()})
	require.NoError(t, err)
	n, err := w.Add(ctx, makeChunks(t, "a.html", 10))
	assert.ErrorIs(t, err, errEmbedDown)
	assert.Equal(t, 4, n)
	require.NoError(t, w.Close())
	require.NoError(t, NewManifest(e.Family()).Save(dir))

	snap, err := Open(ctx, dir, e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, 4, snap.Semantic().vector.Count())
}

func TestWriter_RemoveSource(t *testing.T) {
	dir := t.TempDir()
	e := embed.NewHashed(32)
	ctx := context.Background()
	build(t, dir, e, false, append(makeChunks(t, "a.html", 3), makeChunks(t, "b.html", 2)...))

	w, err := OpenWriter(ctx, dir, e, WriterOptions{Log: discardLogger()})
	require.NoError(t, err)
	removed, err := w.RemoveSource(ctx, "a.html")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	require.NoError(t, w.Close())

	snap, err := Open(ctx, dir, e, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 2, snap.Semantic().vector.Count())
	for _, c := range snap.Chunks() {
		assert.Equal(t, "b.html", c.Meta.Source)
	}
}

func TestWriter_FreshRebuild(t *testing.T) {
	dir := t.TempDir()
	e := embed.NewHashed(32)
	build(t, dir, e, false, makeChunks(t, "old.html", 4))
	build(t, dir, e, true, makeChunks(t, "new.html", 2))

	snap, err := Open(context.Background(), dir, e, discardLogger())
	require.NoError(t, err)
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, "new.html", snap.Chunks()[0].Meta.Source)
}

func TestWriter_DuplicateIDsStoredOnce(t *testing.T) {
	dir := t.TempDir()
	e := embed.NewHashed(32)
	chunks := makeChunks(t, "a.html", 2)
	assert.Equal(t, 2, build(t, dir, e, false, append(chunks, chunks...)))
}

func TestOpen_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	build(t, dir, embed.NewHashed(32), false, makeChunks(t, "a.html", 2))

	_, err := Open(context.Background(), dir, embed.NewHashed(48), discardLogger())
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "rebuild with matching embeddings")

	_, err = OpenWriter(context.Background(), dir, embed.NewHashed(48), WriterOptions{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestWriter_EmbedderDimensionErrorMatches(t *testing.T) {
	ctx := context.Background()
	e := &wrongDimsEmbedder{Hashed: embed.NewHashed(32)}

	w, err := OpenWriter(ctx, t.TempDir(), e, WriterOptions{Log: discardLogger()})
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Add(ctx, makeChunks(t, "a.html", 2))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, embed.ErrDimensionMismatch)
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"), embed.NewHashed(8), discardLogger())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = FamilyAt(t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFamilyAt(t *testing.T) {
	dir := t.TempDir()
	build(t, dir, embed.NewHashed(16), false, makeChunks(t, "a.html", 1))
	family, err := FamilyAt(dir)
	require.NoError(t, err)
	assert.Equal(t, "local:hashed-bow-16", family)
}
