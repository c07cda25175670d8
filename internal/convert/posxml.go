package convert

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TextRun is one positioned run of text from the positional XML dump.
type TextRun struct {
	Page int
	Top  float64
	Left float64
	Text string
}

// ParseRuns reads pdftohtml -xml output. Runs parsed before a syntax error
// are returned together with the error.
func ParseRuns(r io.Reader) ([]TextRun, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		runs  []TextRun
		cur   *TextRun
		buf   strings.Builder
		depth int
		page  = 1
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return runs, nil
		}
		if err != nil {
			return runs, fmt.Errorf("parse positional xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if cur != nil {
				depth++
				continue
			}
			switch t.Name.Local {
			case "page":
				page = atoiOr(attr(t, "number"), 1)
			case "text":
				cur = &TextRun{
					Page: page,
					Top:  floatOr(attr(t, "top")),
					Left: floatOr(attr(t, "left")),
				}
				buf.Reset()
				depth = 0
			}
		case xml.EndElement:
			if cur == nil {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			if text := strings.TrimSpace(buf.String()); text != "" {
				cur.Text = text
				runs = append(runs, *cur)
			}
			cur = nil
		case xml.CharData:
			if cur != nil {
				buf.Write(t)
			}
		}
	}
}

// Paragraphs rebuilds reading order from positioned runs. Runs are sorted
// by page, top and left; vertical jumps above lineTol start a new line and
// jumps above paraTol start a new paragraph. A page change always closes
// the paragraph. Runs with identical positions keep their input order.
func Paragraphs(runs []TextRun, lineTol, paraTol float64) []string {
	sorted := make([]TextRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		return a.Left < b.Left
	})

	var (
		paragraphs []string
		lines      []string
		line       []TextRun
		curPage    int
		curY       float64
		started    bool
	)
	flushLine := func() {
		if len(line) == 0 {
			return
		}
		sort.SliceStable(line, func(i, j int) bool { return line[i].Left < line[j].Left })
		parts := make([]string, 0, len(line))
		for _, r := range line {
			if r.Text != "" {
				parts = append(parts, r.Text)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
		line = line[:0]
	}
	flushParagraph := func() {
		if len(lines) == 0 {
			return
		}
		if p := strings.TrimSpace(strings.Join(lines, " ")); p != "" {
			paragraphs = append(paragraphs, p)
		}
		lines = nil
	}

	for _, r := range sorted {
		if !started || r.Page != curPage {
			flushLine()
			flushParagraph()
			curPage = r.Page
			curY = r.Top
			started = true
		}
		if dy := math.Abs(r.Top - curY); dy > lineTol {
			flushLine()
			if dy > paraTol {
				flushParagraph()
			}
			curY = r.Top
		}
		line = append(line, r)
	}
	flushLine()
	flushParagraph()
	return paragraphs
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func floatOr(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
