package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser passes HTML through unchanged, taking the title from the
// document when present.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Page{}, err
	}
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	title := Stem(filename)
	if t := findTitle(doc); t != "" {
		title = t
	}
	return Page{Title: title, Raw: src}, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		var buf strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				buf.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
