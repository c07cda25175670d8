package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/coursegest/internal/parser"
)

// ErrNoInputs is returned by Collect when nothing convertible was found.
var ErrNoInputs = errors.New("no input files found")

// FileResult is the per-file line of a batch report.
type FileResult struct {
	Source string
	Output string
	Method string
	Status string
	OK     bool
}

// Converter turns source documents into HTML pages under OutDir.
type Converter struct {
	tools     *Tools
	cascade   *Cascade
	outDir    string
	workers   int
	log       *slog.Logger
	pageCount func(ctx context.Context, path string) int
}

// NewConverter returns a Converter writing into outDir with a pool of
// workers.
func NewConverter(tools *Tools, cascade *Cascade, outDir string, workers int, log *slog.Logger) *Converter {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Converter{
		tools:   tools,
		cascade: cascade,
		outDir:  outDir,
		workers: workers,
		log:     log,
	}
	c.pageCount = func(ctx context.Context, path string) int { return PageCount(ctx, tools, path) }
	return c
}

// Collect lists convertible files under input (a file or a directory,
// walked recursively), sorted by path.
func Collect(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		if !convertible(input) {
			return nil, fmt.Errorf("%w: %s", ErrNoInputs, input)
		}
		return []string{input}, nil
	}

	var files []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && convertible(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk input: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoInputs, input)
	}
	sort.Strings(files)
	return files, nil
}

func convertible(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || parser.IsSupportedExtension(path)
}

// ConvertAll converts files in parallel, each into its own output file.
// Per-file failures become status lines; results are sorted by source path.
func (c *Converter) ConvertAll(ctx context.Context, files []string) ([]FileResult, error) {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		mu      sync.Mutex
		results = make([]FileResult, 0, len(files))
	)
	outputs := c.planOutputs(files)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, f := range files {
		g.Go(func() error {
			r := c.convertTo(gctx, f, outputs[f])
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	return results, nil
}

// planOutputs assigns every input its own output file. The first input
// (in path order) keeps the plain stem; later inputs with the same stem
// get their parent folder prepended, then a numeric suffix.
func (c *Converter) planOutputs(files []string) map[string]string {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	used := make(map[string]bool, len(sorted))
	outputs := make(map[string]string, len(sorted))
	for _, f := range sorted {
		if _, ok := outputs[f]; ok {
			continue
		}
		stem := parser.SafeStem(f)
		if used[strings.ToLower(stem)] {
			prefixed := parser.SafeStem(filepath.Base(filepath.Dir(f)) + "_" + filepath.Base(f))
			renamed := prefixed
			for n := 2; used[strings.ToLower(renamed)]; n++ {
				renamed = fmt.Sprintf("%s-%d", prefixed, n)
			}
			c.log.Warn("output name taken, renaming", "file", f, "stem", stem, "output", renamed+".html")
			stem = renamed
		}
		used[strings.ToLower(stem)] = true
		outputs[f] = filepath.Join(c.outDir, stem+".html")
	}
	return outputs
}

// ConvertFile converts one file and never returns an error: failures are
// folded into the status string.
func (c *Converter) ConvertFile(ctx context.Context, path string) FileResult {
	return c.convertTo(ctx, path, filepath.Join(c.outDir, parser.SafeStem(path)+".html"))
}

func (c *Converter) convertTo(ctx context.Context, path, out string) (res FileResult) {
	res.Source = path
	log := c.log.With("file", filepath.Base(path))
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Status = fmt.Sprintf("[ERROR] panic: %v", r)
			log.Error("conversion panicked", "panic", r)
		}
	}()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		in := Input{
			Path:  path,
			Title: parser.Stem(path),
			Pages: c.pageCount(ctx, path),
			Out:   out,
		}
		r, err := c.cascade.Run(ctx, in)
		switch {
		case err != nil:
			res.Status = errorStatus(err)
			log.Error("conversion failed", "error", err)
		case !r.OK:
			res.Status = "[FAIL] no method succeeded"
			log.Warn("no method succeeded", "pages", in.Pages)
		default:
			res.OK = true
			res.Method = r.Method
			res.Output = r.Output
			res.Status = fmt.Sprintf("[OK] %s → %s", r.Method, filepath.Base(r.Output))
		}
		return res
	}

	method, err := c.convertDocument(path, out)
	if err != nil {
		res.Status = errorStatus(err)
		log.Error("conversion failed", "error", err)
		return res
	}
	res.OK = true
	res.Method = method
	res.Output = out
	res.Status = fmt.Sprintf("[OK] %s → %s", method, filepath.Base(out))
	log.Info("converted", "method", method)
	return res
}

func (c *Converter) convertDocument(path, out string) (string, error) {
	p, err := parser.ForFile(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	page, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, page.HTML(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."), nil
}

func errorStatus(err error) string {
	return fmt.Sprintf("[ERROR] %s: %v", errorKind(err), err)
}

func errorKind(err error) string {
	var exitErr *exec.ExitError
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, ErrToolMissing):
		return "ToolMissing"
	case errors.As(err, &exitErr):
		return "ExitError"
	case errors.As(err, &pathErr):
		return "PathError"
	}
	return "Error"
}

// Report writes one line per file and a summary. It returns the success
// and failure counts.
func Report(w io.Writer, results []FileResult, outDir string) (ok, failed int) {
	for _, r := range results {
		tag := "OK"
		if r.OK {
			ok++
		} else {
			tag = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "%s %s: %s\n", tag, filepath.Base(r.Source), r.Status)
	}
	fmt.Fprintf(w, "Done. Success: %d, Failures: %d, Output: %s\n", ok, failed, outDir)
	return ok, failed
}
