package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/coursegest/internal/parser"
)

// Options control which steps the PDF cascade includes.
type Options struct {
	EnableOCR          bool
	TextOnly           bool
	Thresholds         Thresholds
	LineTolerance      float64
	ParagraphTolerance float64
	OCRJobs            int
}

// DefaultOptions returns the stock thresholds and tolerances.
func DefaultOptions() Options {
	return Options{
		Thresholds:         DefaultThresholds(),
		LineTolerance:      6,
		ParagraphTolerance: 18,
		OCRJobs:            runtime.NumCPU(),
	}
}

// NewPDFCascade assembles the standard method order: pdftotext (layout,
// default, raw), mutool, the in-process reader, positional XML, OCR when
// enabled, and page images unless text-only.
func NewPDFCascade(tools *Tools, opts Options, log *slog.Logger) *Cascade {
	th := opts.Thresholds
	steps := []Step{
		pdftotextStep(tools, "layout", th.Text),
		pdftotextStep(tools, "default", th.Text),
		pdftotextStep(tools, "raw", th.Text),
		{
			Name:      "mutool",
			Rank:      2,
			Threshold: th.Text,
			Requires:  []string{ToolMutool},
			Extract:   func(ctx context.Context, in Input) (Extraction, error) { return mutoolText(ctx, tools, in.Path) },
		},
		{
			Name:      "gopdf",
			Rank:      3,
			Threshold: th.Text,
			Extract: func(_ context.Context, in Input) (Extraction, error) {
				text, err := libraryText(in.Path)
				return Extraction{Text: text}, err
			},
		},
		{
			Name:      "pdftohtml-xml",
			Rank:      4,
			Threshold: th.XML,
			Requires:  []string{ToolPdftohtml},
			Extract: func(ctx context.Context, in Input) (Extraction, error) {
				return positionalText(ctx, tools, in.Path, opts.LineTolerance, opts.ParagraphTolerance)
			},
		},
	}
	if opts.EnableOCR {
		jobs := opts.OCRJobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		steps = append(steps, Step{
			Name:      "ocrmypdf",
			Rank:      5,
			Threshold: th.OCR,
			Requires:  []string{ToolOcrmypdf, ToolPdftotext},
			Extract:   func(ctx context.Context, in Input) (Extraction, error) { return ocrText(ctx, tools, in.Path, jobs) },
		})
	}

	var fallback *Fallback
	if !opts.TextOnly {
		fallback = &Fallback{
			Name:     "pdftohtml-images",
			Rank:     6,
			Requires: []string{ToolPdftohtml},
			Render:   func(ctx context.Context, in Input) (string, error) { return pageImages(ctx, tools, in) },
		}
	}
	return NewCascade(tools, steps, fallback, log)
}

var pdftotextArgs = map[string][]string{
	"layout":  {"-layout"},
	"default": nil,
	"raw":     {"-raw"},
}

func pdftotextStep(tools *Tools, variant string, threshold int) Step {
	return Step{
		Name:      "pdftotext",
		Variant:   variant,
		Rank:      1,
		Threshold: threshold,
		Requires:  []string{ToolPdftotext},
		Extract: func(ctx context.Context, in Input) (Extraction, error) {
			text, err := pdftotext(ctx, tools, in.Path, pdftotextArgs[variant]...)
			return Extraction{Text: text}, err
		},
	}
}

func pdftotext(ctx context.Context, tools *Tools, path string, extra ...string) (string, error) {
	args := append([]string{"-enc", "UTF-8"}, extra...)
	args = append(args, path, "-")
	out, err := tools.Output(ctx, ToolPdftotext, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mutoolText(ctx context.Context, tools *Tools, path string) (Extraction, error) {
	return withTempDir(func(dir string) (Extraction, error) {
		pattern := filepath.Join(dir, "p-%06d.txt")
		if err := tools.Run(ctx, ToolMutool, "draw", "-F", "txt", "-o", pattern, path); err != nil {
			return Extraction{}, err
		}
		files, err := filepath.Glob(filepath.Join(dir, "p-*.txt"))
		if err != nil {
			return Extraction{}, err
		}
		sort.Strings(files)
		pages := make([]string, 0, len(files))
		for _, f := range files {
			b, err := os.ReadFile(f)
			if err != nil {
				return Extraction{}, fmt.Errorf("read page text: %w", err)
			}
			pages = append(pages, string(b))
		}
		return Extraction{Text: strings.Join(pages, "\n\n")}, nil
	})
}

// libraryText extracts page text in-process with the ledongthuc reader.
func libraryText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, t)
	}
	return strings.Join(pages, "\n\n"), nil
}

func positionalText(ctx context.Context, tools *Tools, path string, lineTol, paraTol float64) (Extraction, error) {
	return withTempDir(func(dir string) (Extraction, error) {
		base := filepath.Join(dir, "positions")
		if err := tools.Run(ctx, ToolPdftohtml, "-xml", "-q", "-i", path, base); err != nil {
			return Extraction{}, err
		}
		f, err := os.Open(base + ".xml")
		if err != nil {
			return Extraction{}, fmt.Errorf("open positional xml: %w", err)
		}
		defer f.Close()

		runs, err := ParseRuns(f)
		if err != nil {
			return Extraction{}, err
		}
		paras := Paragraphs(runs, lineTol, paraTol)
		return Extraction{
			Text: strings.Join(paras, "\n\n"),
			Body: parser.ParagraphBody(paras),
		}, nil
	})
}

func ocrText(ctx context.Context, tools *Tools, path string, jobs int) (Extraction, error) {
	return withTempDir(func(dir string) (Extraction, error) {
		ocrPDF := filepath.Join(dir, "ocr.pdf")
		err := tools.Run(ctx, ToolOcrmypdf,
			"--force-ocr", "--rotate-pages", "--deskew",
			"--jobs", strconv.Itoa(jobs),
			"--language", "eng",
			path, ocrPDF,
		)
		if err != nil {
			return Extraction{}, err
		}
		text, err := pdftotext(ctx, tools, ocrPDF, "-layout")
		return Extraction{Text: text}, err
	})
}

func pageImages(ctx context.Context, tools *Tools, in Input) (string, error) {
	base := strings.TrimSuffix(in.Out, filepath.Ext(in.Out))
	err := tools.Run(ctx, ToolPdftohtml,
		"-s", "-noframes", "-hidden", "-i", "-q",
		"-zoom", "1.3", "-p",
		in.Path, base,
	)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{base + ".html", base + "-html.html", base + "s.html"} {
		if _, err := os.Stat(candidate); err == nil {
			if candidate != in.Out {
				if err := os.Rename(candidate, in.Out); err != nil {
					return "", fmt.Errorf("rename page images output: %w", err)
				}
			}
			return in.Out, nil
		}
	}
	return "", fmt.Errorf("pdftohtml produced no html for %s", filepath.Base(in.Path))
}
