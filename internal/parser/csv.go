package parser

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"
)

// CSVParser renders CSV files as a single table. Every cell becomes a
// block element the chunker collects.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (Page, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Page{}, fmt.Errorf("parse csv: %w", err)
	}

	page := Page{Title: Stem(filename), Generator: "coursegest csv"}
	if len(records) == 0 {
		return page, nil
	}

	var b strings.Builder
	b.WriteString("<table>\n<tr>")
	for _, h := range records[0] {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr>\n")
	for _, row := range records[1:] {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	page.Body = b.String()
	return page, nil
}
