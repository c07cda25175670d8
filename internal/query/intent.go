package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/retrieve"
)

// DefaultQuestions is the quiz length when the request names none.
const DefaultQuestions = 10

// DefaultTopic stands in for a quiz request with no topic text.
const DefaultTopic = "course material"

const quizPrefix = "/quiz"

var (
	chapterRangeRe  = regexp.MustCompile(`(?i)chapters?\s+(\d+)\s*[-–]\s*(\d+)`)
	chapterSingleRe = regexp.MustCompile(`(?i)chapter\s+(\d+)\b`)
	countRe         = regexp.MustCompile(`\bn=(\d+)`)
	countStripRe    = regexp.MustCompile(`\bn=\d+\b`)
)

// Kind selects the flow a request is routed to.
type Kind int

const (
	KindAsk Kind = iota
	KindQuiz
)

func (k Kind) String() string {
	if k == KindQuiz {
		return "quiz"
	}
	return "ask"
}

// Request is a parsed line of user input.
type Request struct {
	Kind Kind
	// Text is the question, or the quiz topic text with the count
	// directive removed.
	Text string
	// Count is the number of quiz questions requested.
	Count int
}

// ParseRequest routes a line: "/quiz ..." becomes a quiz request, anything
// else a question.
func ParseRequest(line string) Request {
	line = strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(line, quizPrefix)
	if !ok {
		return Request{Kind: KindAsk, Text: line}
	}
	return ParseQuiz(rest)
}

// ParseQuiz extracts the "n=<count>" directive from quiz text.
func ParseQuiz(text string) Request {
	text = strings.TrimSpace(text)
	count := DefaultQuestions
	if m := countRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			count = n
		}
	}
	text = strings.Join(strings.Fields(countStripRe.ReplaceAllString(text, "")), " ")
	return Request{Kind: KindQuiz, Text: text, Count: count}
}

// Topic returns the retrieval topic for a quiz request.
func (r Request) Topic() string {
	if r.Text == "" {
		return DefaultTopic
	}
	return r.Text
}

// Filter restricts a quiz to a book and a set of chapters. Zero values
// match anything.
type Filter struct {
	Book     string `json:"book,omitempty"`
	Chapters []int  `json:"chapters,omitempty"`
}

// ParseFilter detects a book from the catalog's keyword hints and a
// chapter or inclusive chapter range.
func ParseFilter(text string, cat *catalog.Catalog) Filter {
	f := Filter{Book: cat.Detect(text)}
	if m := chapterRangeRe.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		for c := min(a, b); c <= max(a, b); c++ {
			f.Chapters = append(f.Chapters, c)
		}
	} else if m := chapterSingleRe.FindStringSubmatch(text); m != nil {
		c, _ := strconv.Atoi(m[1])
		f.Chapters = []int{c}
	}
	return f
}

// Empty reports whether f matches every chunk.
func (f Filter) Empty() bool {
	return f.Book == "" && len(f.Chapters) == 0
}

// Predicate turns f into a metadata test. A chapter constraint admits
// textbook chunks only.
func (f Filter) Predicate(cat *catalog.Catalog) retrieve.Predicate {
	if f.Empty() {
		return retrieve.Any
	}
	book, hasBook := cat.Lookup(f.Book)
	chapters := make(map[int]bool, len(f.Chapters))
	for _, c := range f.Chapters {
		chapters[c] = true
	}
	return func(m corpus.Metadata) bool {
		if f.Book != "" {
			if !hasBook || !book.MatchesTitle(m.BookTitle) {
				return false
			}
		}
		if len(chapters) > 0 {
			if m.DocType != corpus.DocTextbook || m.Chapter == nil || !chapters[*m.Chapter] {
				return false
			}
		}
		return true
	}
}

// Title names a quiz after its filter, e.g. "Algorithms Ch 1-2-3 Quiz".
func (f Filter) Title(cat *catalog.Catalog) string {
	var bits []string
	if book, ok := cat.Lookup(f.Book); ok {
		bits = append(bits, book.Name)
	}
	if len(f.Chapters) > 0 {
		chs := append([]int(nil), f.Chapters...)
		sort.Ints(chs)
		parts := make([]string, len(chs))
		for i, c := range chs {
			parts[i] = strconv.Itoa(c)
		}
		bits = append(bits, "Ch "+strings.Join(parts, "-"))
	}
	if len(bits) == 0 {
		return "Course Quiz"
	}
	return fmt.Sprintf("%s Quiz", strings.Join(bits, " "))
}
