package parser

import (
	"html"
	"path/filepath"
	"regexp"
	"strings"
)

// Page is a minimal standalone HTML document: a title, the tool that
// produced it, and pre-rendered body markup. Raw, when set, is emitted
// unchanged.
type Page struct {
	Title     string
	Generator string
	Body      string
	Raw       []byte
}

const pageStyle = `body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Arial,sans-serif;line-height:1.5;margin:2rem;max-width:60rem}p{margin:0 0 1em 0}`

// HTML renders the page.
func (p Page) HTML() []byte {
	if p.Raw != nil {
		return p.Raw
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(p.Title) + "</title>\n")
	if p.Generator != "" {
		b.WriteString("<meta name=\"generator\" content=\"" + html.EscapeString(p.Generator) + "\">\n")
	}
	b.WriteString("<style>" + pageStyle + "</style>\n</head>\n<body>\n")
	b.WriteString(p.Body)
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)
	unsafeRun = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// TextBody renders extracted plain text as paragraphs. Blank lines split
// paragraphs, single newlines become line breaks and double spaces are
// kept visible.
func TextBody(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")

	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		esc := html.EscapeString(para)
		esc = strings.ReplaceAll(esc, "  ", "&nbsp;&nbsp;")
		esc = strings.ReplaceAll(esc, "\n", "<br/>")
		b.WriteString("<p>" + esc + "</p>\n")
	}
	return b.String()
}

// ParagraphBody renders already-reconstructed paragraphs, one element each.
func ParagraphBody(paras []string) string {
	var b strings.Builder
	for _, para := range paras {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString("<p>" + html.EscapeString(para) + "</p>\n")
	}
	return b.String()
}

// SafeStem turns a path into a file-system safe output stem.
func SafeStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ReplaceAll(stem, " ", "_")
	stem = unsafeRun.ReplaceAllString(stem, "_")
	if len(stem) > 120 {
		stem = stem[:120]
	}
	if stem == "" || stem == "." {
		return "file"
	}
	return stem
}

// Stem is the file name without directory or extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
