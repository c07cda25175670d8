package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// External binaries used by the cascade.
const (
	ToolPdftotext = "pdftotext"
	ToolPdftohtml = "pdftohtml"
	ToolPdfinfo   = "pdfinfo"
	ToolMutool    = "mutool"
	ToolOcrmypdf  = "ocrmypdf"
)

// HardTools must be present for a conversion run to start.
var HardTools = []string{ToolPdftotext, ToolPdftohtml}

// SoftTools only enable optional cascade steps.
var SoftTools = []string{ToolMutool, ToolOcrmypdf}

// ErrToolMissing is returned when a required binary is not on PATH.
var ErrToolMissing = errors.New("required tool missing")

// Tools is the glue around system binaries. Absence is detected with
// LookPath before any invocation.
type Tools struct {
	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewTools returns Tools backed by the process PATH.
func NewTools() *Tools {
	return &Tools{
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
}

// Available reports whether name resolves on PATH.
func (t *Tools) Available(name string) bool {
	_, err := t.lookPath(name)
	return err == nil
}

// Missing returns the subset of names not found on PATH.
func (t *Tools) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !t.Available(n) {
			out = append(out, n)
		}
	}
	return out
}

// RequireHard fails when any hard tool is absent.
func (t *Tools) RequireHard() error {
	if missing := t.Missing(HardTools...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Output runs name and returns its stdout. A non-zero exit is an error
// carrying the tail of stderr.
func (t *Tools) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if !t.Available(name) {
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	cmd := t.command(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 300))
	}
	return out, nil
}

// Run executes name for its side effects (files written to disk).
func (t *Tools) Run(ctx context.Context, name string, args ...string) error {
	_, err := t.Output(ctx, name, args...)
	return err
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
