package convert

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
)

// Thresholds are the minimum characters per page each method must reach.
type Thresholds struct {
	Text int
	XML  int
	OCR  int
}

// DefaultThresholds returns 200/100/150 characters per page.
func DefaultThresholds() Thresholds {
	return Thresholds{Text: 200, XML: 100, OCR: 150}
}

// IsLowYield reports whether text is too short for a document of the given
// page count. Empty text or an unknown page count is always low-yield.
func IsLowYield(text string, pages, minCharsPerPage int) bool {
	if text == "" || pages <= 0 {
		return true
	}
	return float64(utf8.RuneCountInString(text))/float64(pages) < float64(minCharsPerPage)
}

// Yield is characters per page, 0 when pages is unknown.
func Yield(text string, pages int) float64 {
	if pages <= 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(text)) / float64(pages)
}

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// PageCount asks pdfinfo for the page count, falling back to the in-process
// PDF reader. It returns 0 when neither can tell.
func PageCount(ctx context.Context, tools *Tools, path string) int {
	if out, err := tools.Output(ctx, ToolPdfinfo, path); err == nil {
		if m := pagesLine.FindSubmatch(out); m != nil {
			if n, err := strconv.Atoi(string(m[1])); err == nil {
				return n
			}
		}
	}
	n, err := libraryPageCount(path)
	if err != nil {
		return 0
	}
	return n
}

func libraryPageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return reader.NumPage(), nil
}
