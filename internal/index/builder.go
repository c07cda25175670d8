package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/embed"
)

// DefaultBatchSize keeps a batch under embedding request limits.
const DefaultBatchSize = 64

// WriterOptions configure a Writer.
type WriterOptions struct {
	// Fresh destroys the index location before the first batch is written.
	Fresh     bool
	BatchSize int
	Log       *slog.Logger
}

// Writer appends chunks to the index at one location. A location supports
// a single writer at a time; callers serialize.
type Writer struct {
	dir       string
	embedder  embed.Embedder
	batchSize int
	fresh     bool
	log       *slog.Logger

	store  *Store
	vector *Vector
}

// OpenWriter prepares a writer for dir. Nothing on disk is created or
// destroyed until the first non-empty Add.
func OpenWriter(ctx context.Context, dir string, e embed.Embedder, opts WriterOptions) (*Writer, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	w := &Writer{
		dir:       dir,
		embedder:  e,
		batchSize: opts.BatchSize,
		fresh:     opts.Fresh,
		log:       opts.Log.With("index", dir),
	}
	if opts.Fresh {
		return w, nil
	}
	exists, err := Exists(dir)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := w.open(ctx, false); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Exists reports whether dir holds an index.
func Exists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, storeFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat index: %w", err)
}

func (w *Writer) open(ctx context.Context, create bool) error {
	if create {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}
	store, err := OpenStore(w.dir)
	if err != nil {
		return err
	}
	if err := checkFamily(ctx, store, w.embedder, create); err != nil {
		store.Close()
		return err
	}
	vector, err := OpenVector(w.dir, w.embedder.Family())
	if err != nil {
		store.Close()
		return err
	}
	w.store, w.vector = store, vector
	return nil
}

// checkFamily compares the recorded embedding family with e. A new index
// records e instead.
func checkFamily(ctx context.Context, store *Store, e embed.Embedder, create bool) error {
	family, ok, err := store.Meta(ctx, metaEmbedFamily)
	if err != nil {
		return err
	}
	dimsRaw, _, err := store.Meta(ctx, metaDimensions)
	if err != nil {
		return err
	}
	if !ok {
		if !create {
			return fmt.Errorf("%w: index has no recorded embedding family", ErrNotFound)
		}
		if err := store.SetMeta(ctx, metaEmbedFamily, e.Family()); err != nil {
			return err
		}
		return store.SetMeta(ctx, metaDimensions, strconv.Itoa(e.Dimensions()))
	}
	dims, _ := strconv.Atoi(dimsRaw)
	if family != e.Family() || dims != e.Dimensions() {
		return fmt.Errorf("%w: index built with %s (%d dims), active family %s (%d dims); rebuild with matching embeddings",
			ErrDimensionMismatch, family, dims, e.Family(), e.Dimensions())
	}
	return nil
}

// Close releases the chunk store. The vector index needs no closing.
func (w *Writer) Close() error {
	if w.store == nil {
		return nil
	}
	return w.store.Close()
}

// RemoveSource deletes every chunk previously indexed from source.
func (w *Writer) RemoveSource(ctx context.Context, source string) (int, error) {
	if w.store == nil {
		return 0, nil
	}
	ids, err := w.store.DeleteSource(ctx, source)
	if err != nil {
		return 0, err
	}
	if err := w.vector.Delete(ctx, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Add embeds and stores chunks in batches. Each batch is committed before
// the next starts; a failing batch is rolled back and ends the run.
func (w *Writer) Add(ctx context.Context, chunks []corpus.Chunk) (int, error) {
	chunks = dedupe(chunks)
	if w.store == nil {
		if len(chunks) == 0 {
			return 0, ErrEmptyCorpus
		}
		if w.fresh {
			if err := os.RemoveAll(w.dir); err != nil {
				return 0, fmt.Errorf("remove index: %w", err)
			}
			w.log.Info("removed index for fresh build")
		}
		if err := w.open(ctx, true); err != nil {
			return 0, err
		}
	}

	added := 0
	for start := 0; start < len(chunks); start += w.batchSize {
		end := min(start+w.batchSize, len(chunks))
		if err := w.addBatch(ctx, chunks[start:end]); err != nil {
			return added, fmt.Errorf("batch at chunk %d: %w", start, err)
		}
		added += end - start
		w.log.Debug("batch committed", "chunks", end-start, "total", added)
	}
	return added, nil
}

func (w *Writer) addBatch(ctx context.Context, batch []corpus.Chunk) error {
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
		ids[i] = c.ID
	}

	vecs, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d chunks", len(vecs), len(batch))
	}
	for _, v := range vecs {
		if len(v) != w.embedder.Dimensions() {
			return fmt.Errorf("%w: embedder returned %d dims, expected %d; rebuild with matching embeddings",
				ErrDimensionMismatch, len(v), w.embedder.Dimensions())
		}
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertChunks(ctx, tx, batch); err != nil {
		return err
	}
	if err := w.vector.Add(ctx, batch, vecs); err != nil {
		w.discard(ctx, ids)
		return err
	}
	if err := tx.Commit(); err != nil {
		w.discard(ctx, ids)
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (w *Writer) discard(ctx context.Context, ids []string) {
	if err := w.vector.Delete(context.WithoutCancel(ctx), ids...); err != nil {
		w.log.Error("failed to discard vectors of rolled back batch", "chunks", len(ids), "error", err)
	}
}

func dedupe(chunks []corpus.Chunk) []corpus.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]corpus.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
