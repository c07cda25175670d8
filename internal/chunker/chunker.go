package chunker

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/coursegest/internal/corpus"
)

// Config controls word windowing. The effective step is
// max(MinWords, TargetWords).
type Config struct {
	TargetWords int
	MinWords    int
}

// Step returns the window size in words.
func (c Config) Step() int {
	return max(c.MinWords, c.TargetWords, 1)
}

// DefaultConfig returns the window defaults for a document type.
func DefaultConfig(dt corpus.DocType) Config {
	switch dt {
	case corpus.DocTextbook:
		return Config{TargetWords: 300, MinWords: 180}
	case corpus.DocSlides:
		return Config{TargetWords: 350}
	}
	return Config{TargetWords: 350, MinWords: 120}
}

// Options describe the provenance stamped on every chunk. DocType may be
// left empty to infer it from the document shape.
type Options struct {
	Source    string
	DocType   corpus.DocType
	CourseID  string
	Version   string
	BookTitle string
	DeckTitle string
	Config    Config
}

// Strategy names which segmentation produced the chunks.
type Strategy string

const (
	StrategySlides   Strategy = "slides"
	StrategyChapters Strategy = "chapters"
	StrategyHeadings Strategy = "headings"
	StrategyBody     Strategy = "body"
	StrategyEmpty    Strategy = "empty"
)

// Result is the chunker output for one document.
type Result struct {
	Strategy Strategy
	DocType  corpus.DocType
	Chunks   []corpus.Chunk
}

var (
	chapterHeading = regexp.MustCompile(`(?i)^\s*chapter\s+(\d+)\b[:.\s]*(.*)$`)
	slideIDPattern = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^page(\d+)-div$`),
		regexp.MustCompile(`(?i)^page\s*(\d+)$`),
	}
)

// ChunkFile reads an HTML file and chunks it. Source defaults to the file
// name.
func ChunkFile(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	if opts.Source == "" {
		opts.Source = filepath.Base(path)
	}
	return Chunk(bytes.NewReader(data), opts)
}

// Chunk segments an HTML document. Strategies are tried in order: slide
// containers, "Chapter N" headings, generic h1-h3 headings, whole body.
func Chunk(r io.Reader, opts Options) (Result, error) {
	if opts.Source == "" {
		return Result{}, fmt.Errorf("chunk: missing source name")
	}
	doc, err := html.Parse(r)
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	stripNonContent(doc)

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	if slides := findSlides(root); len(slides) > 0 {
		return chunkSlides(slides, opts)
	}

	elems := outline(root)
	if sections := chapterSections(elems); len(sections) > 0 {
		return chunkSections(StrategyChapters, sections, opts, corpus.DocTextbook)
	}

	dt := opts.DocType
	if dt == "" {
		dt = corpus.DocHTML
	}
	if sections := headingSections(elems, stem(opts.Source)); len(sections) > 0 {
		return chunkSections(StrategyHeadings, sections, opts, dt)
	}

	body := CleanText(textContent(root, "\n"))
	if body == "" {
		return Result{Strategy: StrategyEmpty, DocType: dt}, nil
	}
	sec := section{heading: "body", text: body}
	if dt == corpus.DocTextbook {
		sec = section{chapter: 1, chapterTitle: "Chapter 1", text: body}
	}
	return chunkSections(StrategyBody, []section{sec}, opts, dt)
}

type slide struct {
	num  int
	text string
}

func slideNumber(n *html.Node) (int, bool) {
	if id, ok := getAttr(n, "id"); ok {
		id = strings.TrimSpace(id)
		for _, pat := range slideIDPattern {
			if m := pat.FindStringSubmatch(id); m != nil {
				num, err := strconv.Atoi(m[1])
				return num, err == nil
			}
		}
	}
	if hasClass(n, "pc") {
		if v, ok := getAttr(n, "data-page-no"); ok {
			num, err := strconv.Atoi(v)
			return num, err == nil
		}
	}
	return 0, false
}

// findSlides collects slide containers sorted by slide number. Containers
// with identical numbers keep document order.
func findSlides(root *html.Node) []slide {
	var out []slide
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" {
			if num, ok := slideNumber(n); ok {
				if t := CleanText(textContent(n, "\n")); t != "" {
					out = append(out, slide{num: num, text: t})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool { return out[i].num < out[j].num })
	return out
}

func chunkSlides(slides []slide, opts Options) (Result, error) {
	dt := opts.DocType
	if dt == "" {
		dt = corpus.DocSlides
	}
	res := Result{Strategy: StrategySlides, DocType: dt}
	for _, s := range slides {
		meta := baseMeta(opts, dt)
		meta.Slide = corpus.Int(s.num)
		c, err := corpus.New(s.text, meta)
		if err != nil {
			return Result{}, fmt.Errorf("slide %d: %w", s.num, err)
		}
		res.Chunks = append(res.Chunks, c)
	}
	return res, nil
}

type section struct {
	chapter      int
	chapterTitle string
	heading      string
	text         string
}

// chapterSections groups blocks under "Chapter N" headings. Other headings
// do not end a chapter. Content before the first chapter heading and
// chapters without content are dropped.
func chapterSections(elems []element) []section {
	var (
		out     []section
		cur     *section
		parts   []string
		matched bool
	)
	flush := func() {
		if cur != nil && len(parts) > 0 {
			cur.text = CleanText(strings.Join(parts, "\n"))
			if cur.text != "" {
				out = append(out, *cur)
			}
		}
		parts = nil
	}
	for _, e := range elems {
		if e.level > 0 {
			m := chapterHeading.FindStringSubmatch(e.text)
			if m == nil {
				continue
			}
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			matched = true
			flush()
			title := strings.TrimSpace(m[2])
			if title == "" {
				title = "Chapter " + strconv.Itoa(num)
			}
			cur = &section{chapter: num, chapterTitle: title}
			continue
		}
		if cur != nil {
			parts = append(parts, e.text)
		}
	}
	flush()
	if !matched {
		return nil
	}
	return out
}

// headingSections groups blocks under each h1-h3. A heading with no text
// is named after the document.
func headingSections(elems []element, fallbackTitle string) []section {
	var (
		out   []section
		cur   *section
		parts []string
	)
	flush := func() {
		if cur != nil && len(parts) > 0 {
			cur.text = CleanText(strings.Join(parts, "\n"))
			if cur.text != "" {
				out = append(out, *cur)
			}
		}
		parts = nil
	}
	for _, e := range elems {
		if e.level > 0 {
			flush()
			title := e.text
			if title == "" {
				title = fallbackTitle
			}
			cur = &section{heading: title}
			continue
		}
		if cur != nil {
			parts = append(parts, e.text)
		}
	}
	flush()
	return out
}

func chunkSections(strategy Strategy, sections []section, opts Options, dt corpus.DocType) (Result, error) {
	if opts.DocType != "" {
		dt = opts.DocType
	}
	cfg := opts.Config
	if cfg.TargetWords <= 0 {
		cfg = DefaultConfig(dt)
	}
	step := cfg.Step()

	res := Result{Strategy: strategy, DocType: dt}
	for _, sec := range sections {
		for i, piece := range Windows(sec.text, step) {
			meta := baseMeta(opts, dt)
			if sec.chapter > 0 {
				meta.Chapter = corpus.Int(sec.chapter)
				meta.ChapterTitle = sec.chapterTitle
			}
			meta.Heading = sec.heading
			meta.ChunkIndex = corpus.Int(i)
			c, err := corpus.New(piece, meta)
			if err != nil {
				return Result{}, fmt.Errorf("section %q window %d: %w", sec.heading+sec.chapterTitle, i, err)
			}
			res.Chunks = append(res.Chunks, c)
		}
	}
	return res, nil
}

func baseMeta(opts Options, dt corpus.DocType) corpus.Metadata {
	return corpus.Metadata{
		Source:    opts.Source,
		DocType:   dt,
		CourseID:  opts.CourseID,
		Version:   opts.Version,
		BookTitle: opts.BookTitle,
		DeckTitle: opts.DeckTitle,
	}
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
