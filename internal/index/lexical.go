package index

import (
	"math"
	"sort"

	"github.com/dgallion1/coursegest/internal/corpus"
)

// BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type posting struct {
	doc int
	tf  int
}

// Lexical is an in-memory BM25 index over chunk content. It is immutable
// after construction and safe for concurrent readers.
type Lexical struct {
	ids      []string
	lengths  []int
	avgLen   float64
	postings map[string][]posting
}

// NewLexical indexes chunks in the given order. Order breaks score ties.
func NewLexical(chunks []corpus.Chunk) *Lexical {
	l := &Lexical{
		ids:      make([]string, 0, len(chunks)),
		lengths:  make([]int, 0, len(chunks)),
		postings: make(map[string][]posting),
	}
	total := 0
	for i, c := range chunks {
		tokens := corpus.Tokenize(c.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t, n := range tf {
			l.postings[t] = append(l.postings[t], posting{doc: i, tf: n})
		}
		l.ids = append(l.ids, c.ID)
		l.lengths = append(l.lengths, len(tokens))
		total += len(tokens)
	}
	if len(chunks) > 0 {
		l.avgLen = float64(total) / float64(len(chunks))
	}
	return l
}

// Len returns the number of indexed chunks.
func (l *Lexical) Len() int { return len(l.ids) }

// Search returns up to k chunk ids with a positive BM25 score, best first.
func (l *Lexical) Search(query string, k int) []Hit {
	if k <= 0 || len(l.ids) == 0 {
		return nil
	}
	n := float64(len(l.ids))
	scores := make(map[int]float64)
	seen := make(map[string]bool)
	for _, term := range corpus.Tokenize(query) {
		if seen[term] {
			continue
		}
		seen[term] = true
		plist := l.postings[term]
		if len(plist) == 0 {
			continue
		}
		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - bm25B + bm25B*float64(l.lengths[p.doc])/math.Max(l.avgLen, 1)
			scores[p.doc] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for d, s := range scores {
		if s > 0 {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		si, sj := scores[docs[i]], scores[docs[j]]
		if si != sj {
			return si > sj
		}
		return docs[i] < docs[j]
	})
	if len(docs) > k {
		docs = docs[:k]
	}
	hits := make([]Hit, len(docs))
	for i, d := range docs {
		hits[i] = Hit{ID: l.ids[d], Score: scores[d]}
	}
	return hits
}
