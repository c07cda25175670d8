package parser

import (
	"io"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Title:     Stem(filename),
		Generator: "coursegest text",
		Body:      TextBody(string(src)),
	}, nil
}
