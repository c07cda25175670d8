package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Book describes one course text and the hints used to recognise it in
// file names, chunk metadata and free-text requests.
type Book struct {
	Tag        string   `yaml:"tag"`
	Name       string   `yaml:"name"`
	Title      string   `yaml:"title"`
	Keywords   []string `yaml:"keywords"`
	TitleHints []string `yaml:"title_hints"`
	FileHints  []string `yaml:"file_hints"`
}

// Catalog is an ordered list of books. Order decides which book wins when
// a request mentions more than one.
type Catalog struct {
	Books []Book `yaml:"books"`
}

// Default returns the built-in catalog for the two course textbooks.
func Default() *Catalog {
	return &Catalog{Books: []Book{
		{
			Tag:        "algorithms",
			Name:       "Algorithms",
			Title:      "Algorithms (Goodrich & Tamassia)",
			Keywords:   []string{"algorithm", "goodrich", "tamassia"},
			TitleHints: []string{"algorithm", "goodrich", "tamassia"},
			FileHints:  []string{"goodrich", "algorithms"},
		},
		{
			Tag:        "discrete",
			Name:       "Discrete Math",
			Title:      "Discrete & Combinatorial Mathematics",
			Keywords:   []string{"discrete", "combinator"},
			TitleHints: []string{"discrete", "combinatorial"},
			FileHints:  []string{"discrete", "combinatorial"},
		},
	}}
}

// Load reads a YAML catalog. An empty path or a missing file yields the
// default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, b := range c.Books {
		if b.Tag == "" {
			return nil, fmt.Errorf("catalog book %d: missing tag", i)
		}
		if b.Name == "" {
			c.Books[i].Name = b.Tag
		}
		if b.Title == "" {
			c.Books[i].Title = c.Books[i].Name
		}
	}
	return &c, nil
}

// Lookup returns the book with the given tag.
func (c *Catalog) Lookup(tag string) (Book, bool) {
	for _, b := range c.Books {
		if b.Tag == tag {
			return b, true
		}
	}
	return Book{}, false
}

// BookTitleForFile maps a textbook file to its display title, falling back
// to the file stem.
func (c *Catalog) BookTitleForFile(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	lower := strings.ToLower(stem)
	for _, b := range c.Books {
		if containsAny(lower, b.FileHints) {
			return b.Title
		}
	}
	return stem
}

// Detect returns the tag of the first book mentioned in text, or "".
func (c *Catalog) Detect(text string) string {
	lower := strings.ToLower(text)
	for _, b := range c.Books {
		if containsAny(lower, b.Keywords) {
			return b.Tag
		}
	}
	return ""
}

// MatchesTitle reports whether a chunk's book_title belongs to b.
func (b Book) MatchesTitle(bookTitle string) bool {
	return containsAny(strings.ToLower(bookTitle), b.TitleHints)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
