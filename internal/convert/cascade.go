package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/coursegest/internal/parser"
)

// Outcome tags the result of one cascade step.
type Outcome int

const (
	// Unavailable means a required tool is missing; the step was skipped.
	Unavailable Outcome = iota
	// LowYield means the step ran (or failed) without enough text.
	LowYield
	// Accepted means the step's output is used.
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Unavailable:
		return "unavailable"
	case LowYield:
		return "low_yield"
	case Accepted:
		return "accepted"
	}
	return "unknown"
}

// Input is one PDF going through the cascade.
type Input struct {
	Path  string
	Title string
	Pages int
	Out   string
}

// Extraction is what a step produced. Body is optional pre-rendered
// markup; when empty the text is rendered as paragraphs.
type Extraction struct {
	Text string
	Body string
}

// Step is one extraction method.
type Step struct {
	Name      string
	Variant   string
	Rank      int
	Threshold int
	Requires  []string
	Extract   func(ctx context.Context, in Input) (Extraction, error)
}

// Fallback is the final step. It writes its own output and has no yield
// check.
type Fallback struct {
	Name     string
	Rank     int
	Requires []string
	Render   func(ctx context.Context, in Input) (string, error)
}

// Attempt records one step's outcome for diagnostics.
type Attempt struct {
	Step    string
	Variant string
	Outcome Outcome
	Chars   int
	Err     error
}

// Result is the outcome of converting one PDF.
type Result struct {
	Method   string
	Rank     int
	OK       bool
	Text     string
	Pages    int
	Yield    float64
	Output   string
	Attempts []Attempt
}

// Cascade tries steps in order and stops at the first accepted one.
type Cascade struct {
	tools    *Tools
	steps    []Step
	fallback *Fallback
	log      *slog.Logger
}

// NewCascade builds a cascade from explicit steps. fallback may be nil.
func NewCascade(tools *Tools, steps []Step, fallback *Fallback, log *slog.Logger) *Cascade {
	if log == nil {
		log = slog.Default()
	}
	return &Cascade{tools: tools, steps: steps, fallback: fallback, log: log}
}

// Steps returns the configured steps in order.
func (c *Cascade) Steps() []Step { return c.steps }

// Run converts in.Path and writes in.Out. A Result with OK false and a nil
// error means every step was skipped or rejected and there was no fallback.
// An error is only returned for failures of the fallback or of writing output.
func (c *Cascade) Run(ctx context.Context, in Input) (Result, error) {
	log := c.log.With("file", filepath.Base(in.Path))
	res := Result{Pages: in.Pages}

	for _, step := range c.steps {
		ex, att := c.attempt(ctx, step, in)
		res.Attempts = append(res.Attempts, att)
		log.Debug("cascade step",
			"step", step.Name,
			"variant", step.Variant,
			"chars", att.Chars,
			"pages", in.Pages,
			"outcome", att.Outcome.String(),
			"error", att.Err,
		)
		if att.Outcome != Accepted {
			continue
		}

		page := parser.Page{Title: in.Title, Generator: step.Name, Body: ex.Body}
		if err := os.WriteFile(in.Out, page.HTML(), 0o644); err != nil {
			return res, fmt.Errorf("write %s: %w", in.Out, err)
		}
		res.Method = step.Name
		res.Rank = step.Rank
		res.OK = true
		res.Text = ex.Text
		res.Yield = Yield(ex.Text, in.Pages)
		res.Output = in.Out
		log.Info("extracted", "method", step.Name, "variant", step.Variant, "yield", res.Yield)
		return res, nil
	}

	if c.fallback == nil {
		return res, nil
	}
	if missing := c.tools.Missing(c.fallback.Requires...); len(missing) > 0 {
		res.Attempts = append(res.Attempts, Attempt{Step: c.fallback.Name, Outcome: Unavailable})
		return res, nil
	}
	out, err := c.fallback.Render(ctx, in)
	if err != nil {
		return res, fmt.Errorf("%s: %w", c.fallback.Name, err)
	}
	res.Attempts = append(res.Attempts, Attempt{Step: c.fallback.Name, Outcome: Accepted})
	res.Method = c.fallback.Name
	res.Rank = c.fallback.Rank
	res.OK = true
	res.Output = out
	log.Info("extracted", "method", c.fallback.Name)
	return res, nil
}

func (c *Cascade) attempt(ctx context.Context, step Step, in Input) (Extraction, Attempt) {
	att := Attempt{Step: step.Name, Variant: step.Variant}
	if missing := c.tools.Missing(step.Requires...); len(missing) > 0 {
		att.Outcome = Unavailable
		return Extraction{}, att
	}

	ex, err := step.Extract(ctx, in)
	if err != nil {
		att.Outcome = LowYield
		att.Err = err
		return Extraction{}, att
	}
	ex.Text = strings.TrimSpace(ex.Text)
	att.Chars = len([]rune(ex.Text))
	if ex.Text == "" || (step.Threshold > 0 && IsLowYield(ex.Text, in.Pages, step.Threshold)) {
		att.Outcome = LowYield
		return Extraction{}, att
	}
	if ex.Body == "" {
		ex.Body = parser.TextBody(ex.Text)
	}
	att.Outcome = Accepted
	return ex, att
}

// withTempDir runs fn with a scratch directory that is removed on every
// exit path.
func withTempDir(fn func(dir string) (Extraction, error)) (Extraction, error) {
	dir, err := os.MkdirTemp("", "coursegest-*")
	if err != nil {
		return Extraction{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}
