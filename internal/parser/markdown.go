package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Page{}, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var body bytes.Buffer
	if err := md.Renderer().Render(&body, src, doc); err != nil {
		return Page{}, fmt.Errorf("render markdown: %w", err)
	}

	return Page{
		Title:     Stem(filename),
		Generator: "goldmark",
		Body:      body.String(),
	}, nil
}

