package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/chunker"
	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/embed"
	"github.com/dgallion1/coursegest/internal/index"
)

// ErrNoInputs is returned when the ingest sources hold no HTML files.
var ErrNoInputs = errors.New("no html inputs found")

// Input is a file or directory of HTML whose files share one role.
type Input struct {
	Role corpus.DocType `json:"role"`
	Path string         `json:"path"`
}

// IngestOptions describe one ingest run.
type IngestOptions struct {
	Inputs   []Input
	IndexDir string
	CourseID string
	Version  string
	// Fresh rebuilds the index from nothing.
	Fresh bool
	// TargetWords overrides the window target for every role when set.
	TargetWords int
	BatchSize   int

	// OnPhase and OnFile observe progress. Either may be nil.
	OnPhase func(phase string)
	OnFile  func(FileReport)
}

// File outcomes.
const (
	FileSkipped = "skipped"
	FileIndexed = "indexed"
	FileEmpty   = "empty"
	FileFailed  = "failed"
)

// FileReport is the outcome for one input file.
type FileReport struct {
	Name     string         `json:"name"`
	Role     corpus.DocType `json:"role"`
	Status   string         `json:"status"`
	Strategy string         `json:"strategy,omitempty"`
	Chunks   int            `json:"chunks"`
	Error    string         `json:"error,omitempty"`
}

// IngestReport summarizes a run.
type IngestReport struct {
	RunID   string       `json:"run_id"`
	Files   []FileReport `json:"files"`
	Added   int          `json:"chunks_added"`
	Removed int          `json:"chunks_removed"`
}

// Count returns the number of files with the given status.
func (r *IngestReport) Count(status string) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Ingester turns HTML inputs into index updates. Runs against one index
// location must not overlap.
type Ingester struct {
	embedder embed.Embedder
	catalog  *catalog.Catalog
	log      *slog.Logger
}

func NewIngester(e embed.Embedder, cat *catalog.Catalog, log *slog.Logger) *Ingester {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingester{embedder: e, catalog: cat, log: log}
}

type inputFile struct {
	path string
	name string
	role corpus.DocType
	sum  string
}

// Run hashes every input, chunks the files whose bytes changed since the
// last run, replaces their chunks in the index and saves the manifest.
func (in *Ingester) Run(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	report := &IngestReport{RunID: uuid.NewString()}
	log := in.log.With("run_id", report.RunID, "index", opts.IndexDir)
	phase := func(p string) {
		log.Debug("ingest phase", "phase", p)
		if opts.OnPhase != nil {
			opts.OnPhase(p)
		}
	}
	addFile := func(f FileReport) {
		report.Files = append(report.Files, f)
		if opts.OnFile != nil {
			opts.OnFile(f)
		}
	}

	phase("collecting")
	files, err := collectInputs(opts.Inputs, log)
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		return report, ErrNoInputs
	}

	manifest := in.loadManifest(opts, log)

	phase("hashing")
	var changed []inputFile
	for _, f := range files {
		sum, err := index.SHA1File(f.path)
		if err != nil {
			addFile(FileReport{Name: f.name, Role: f.role, Status: FileFailed, Error: err.Error()})
			continue
		}
		f.sum = sum
		if !opts.Fresh && manifest.Unchanged(f.name, sum) {
			addFile(FileReport{Name: f.name, Role: f.role, Status: FileSkipped})
			continue
		}
		changed = append(changed, f)
	}

	phase("chunking")
	var chunks []corpus.Chunk
	var chunked []inputFile
	for _, f := range changed {
		res, err := chunker.ChunkFile(f.path, in.chunkOptions(f, opts))
		if err != nil {
			log.Error("chunking failed", "file", f.name, "error", err)
			addFile(FileReport{Name: f.name, Role: f.role, Status: FileFailed, Error: err.Error()})
			continue
		}
		status := FileIndexed
		if len(res.Chunks) == 0 {
			status = FileEmpty
		}
		log.Info("chunked file", "file", f.name, "strategy", res.Strategy, "chunks", len(res.Chunks))
		addFile(FileReport{Name: f.name, Role: f.role, Status: status, Strategy: string(res.Strategy), Chunks: len(res.Chunks)})
		chunks = append(chunks, res.Chunks...)
		chunked = append(chunked, f)
	}

	phase("indexing")
	w, err := index.OpenWriter(ctx, opts.IndexDir, in.embedder, index.WriterOptions{
		Fresh:     opts.Fresh,
		BatchSize: opts.BatchSize,
		Log:       log,
	})
	if err != nil {
		return report, err
	}
	defer w.Close()

	// Forget hashes before touching chunks so an interrupted run leaves
	// these files marked as changed.
	for _, f := range chunked {
		delete(manifest.Files, f.name)
	}
	if !opts.Fresh {
		for _, f := range chunked {
			n, err := w.RemoveSource(ctx, f.name)
			if err != nil {
				in.saveQuietly(manifest, opts.IndexDir, log)
				return report, fmt.Errorf("remove old chunks of %s: %w", f.name, err)
			}
			report.Removed += n
		}
	}

	added, err := w.Add(ctx, chunks)
	report.Added = added
	if err != nil {
		if !errors.Is(err, index.ErrEmptyCorpus) {
			in.saveQuietly(manifest, opts.IndexDir, log)
		}
		return report, fmt.Errorf("build index: %w", err)
	}

	for _, f := range chunked {
		manifest.Record(f.name, f.sum)
	}
	if err := manifest.Save(opts.IndexDir); err != nil {
		return report, err
	}
	log.Info("ingest complete",
		"files", len(report.Files),
		"skipped", report.Count(FileSkipped),
		"failed", report.Count(FileFailed),
		"added", report.Added,
		"removed", report.Removed,
	)
	return report, nil
}

func (in *Ingester) loadManifest(opts IngestOptions, log *slog.Logger) *index.Manifest {
	if opts.Fresh {
		return index.NewManifest(in.embedder.Family())
	}
	m, err := index.LoadManifest(opts.IndexDir)
	if err != nil {
		if !errors.Is(err, index.ErrNotFound) {
			log.Warn("manifest unreadable, treating every file as changed", "error", err)
		}
		return index.NewManifest(in.embedder.Family())
	}
	m.EmbedFamily = in.embedder.Family()
	return m
}

func (in *Ingester) saveQuietly(m *index.Manifest, dir string, log *slog.Logger) {
	if _, err := os.Stat(dir); err != nil {
		return
	}
	if err := m.Save(dir); err != nil {
		log.Error("failed to save manifest after error", "error", err)
	}
}

func (in *Ingester) chunkOptions(f inputFile, opts IngestOptions) chunker.Options {
	co := chunker.Options{
		Source:   f.name,
		DocType:  f.role,
		CourseID: opts.CourseID,
		Version:  opts.Version,
		Config:   chunker.DefaultConfig(f.role),
	}
	if opts.TargetWords > 0 {
		co.Config.TargetWords = opts.TargetWords
	}
	switch f.role {
	case corpus.DocTextbook:
		co.BookTitle = in.catalog.BookTitleForFile(f.name)
	case corpus.DocSlides:
		co.DeckTitle = strings.TrimSuffix(f.name, filepath.Ext(f.name))
	}
	return co
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// collectInputs lists the HTML files of every input in sorted order. File
// names key the manifest, so a repeated name keeps its first occurrence.
func collectInputs(inputs []Input, log *slog.Logger) ([]inputFile, error) {
	var out []inputFile
	seen := make(map[string]string)
	for _, input := range inputs {
		role := input.Role
		if role == "" {
			role = corpus.DocHTML
		}
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q for %s", input.Role, input.Path)
		}
		info, err := os.Stat(input.Path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input.Path, err)
		}

		var paths []string
		if !info.IsDir() {
			if isHTML(input.Path) {
				paths = append(paths, input.Path)
			}
		} else {
			err := filepath.WalkDir(input.Path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isHTML(p) {
					paths = append(paths, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", input.Path, err)
			}
			sort.Strings(paths)
		}

		for _, p := range paths {
			name := filepath.Base(p)
			if prev, dup := seen[name]; dup {
				log.Warn("duplicate file name, keeping first", "file", name, "kept", prev, "ignored", p)
				continue
			}
			seen[name] = p
			out = append(out, inputFile{path: p, name: name, role: role})
		}
	}
	return out, nil
}
