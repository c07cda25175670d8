// Package query routes free-text requests to question answering or quiz
// generation over the course index.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/llm"
	"github.com/dgallion1/coursegest/internal/retrieve"
)

// NoMatchMessage is shown when a quiz filter selects nothing.
const NoMatchMessage = "Sorry, I couldn't find matching chapters/books in the corpus."

// ErrEmptyRequest is returned for blank input.
var ErrEmptyRequest = errors.New("empty request")

// Options tune retrieval depth.
type Options struct {
	// TopK is the number of chunks given to a question.
	TopK int
	// QuizK is the number of chunks given to a quiz.
	QuizK int
	Log   *slog.Logger
}

// Orchestrator answers questions and generates quizzes. It is safe for
// concurrent use.
type Orchestrator struct {
	corpus    retrieve.Corpus
	vector    retrieve.VectorIndex
	hybrid    *retrieve.Retriever
	completer llm.Completer
	catalog   *catalog.Catalog
	topK      int
	quizK     int
	log       *slog.Logger
}

// New builds an orchestrator over one corpus view.
func New(c retrieve.Corpus, lex retrieve.LexicalIndex, vec retrieve.VectorIndex, completer llm.Completer, cat *catalog.Catalog, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.QuizK <= 0 {
		opts.QuizK = 12
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &Orchestrator{
		corpus:    c,
		vector:    vec,
		hybrid:    retrieve.NewHybrid(c, lex, vec),
		completer: completer,
		catalog:   cat,
		topK:      opts.TopK,
		quizK:     opts.QuizK,
		log:       opts.Log,
	}
}

// FromSnapshot builds an orchestrator over a loaded index.
func FromSnapshot(s *index.Snapshot, completer llm.Completer, cat *catalog.Catalog, opts Options) *Orchestrator {
	return New(s, s.Lexical(), s.Semantic(), completer, cat, opts)
}

// Answer is the result of the question flow.
type Answer struct {
	Text    string         `json:"answer"`
	Sources []corpus.Chunk `json:"sources"`
}

// QuizResult is the result of the quiz flow. NoMatch is set, with no
// quiz, when the filter selected nothing.
type QuizResult struct {
	Quiz    *Quiz          `json:"quiz,omitempty"`
	NoMatch bool           `json:"no_match,omitempty"`
	Message string         `json:"message,omitempty"`
	Filter  Filter         `json:"filter"`
	Sources []corpus.Chunk `json:"sources,omitempty"`
}

// Response carries whichever flow a line was routed to.
type Response struct {
	Kind   Kind
	Answer *Answer
	Quiz   *QuizResult
}

// Handle routes one line of input.
func (o *Orchestrator) Handle(ctx context.Context, line string) (*Response, error) {
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyRequest
	}
	req := ParseRequest(line)
	if req.Kind == KindQuiz {
		res, err := o.Quiz(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Response{Kind: KindQuiz, Quiz: res}, nil
	}
	ans, err := o.Ask(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: KindAsk, Answer: ans}, nil
}

// Ask answers a question from whole-corpus hybrid retrieval. Both ranked
// lists are fetched at depth max(8, TopK) and their whole fused union is
// given to the model.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyRequest
	}
	results, err := o.hybrid.SearchUnion(ctx, question, o.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	o.log.Debug("retrieved context", "flow", "ask", "chunks", len(results))

	text, err := o.completer.Complete(ctx, "ask", "", BuildAnswerPrompt(question, results))
	if err != nil {
		return nil, fmt.Errorf("complete answer: %w", err)
	}
	return &Answer{Text: strings.TrimSpace(text), Sources: chunksOf(results)}, nil
}

// Quiz generates a quiz from the chunks matching the request's filter.
func (o *Orchestrator) Quiz(ctx context.Context, req Request) (*QuizResult, error) {
	filter := ParseFilter(req.Text, o.catalog)
	log := o.log.With("flow", "quiz", "book", filter.Book, "chapters", filter.Chapters)

	sub, err := retrieve.NewSubset(o.corpus, o.vector, filter.Predicate(o.catalog))
	if errors.Is(err, retrieve.ErrNoMatch) {
		log.Info("quiz filter matched nothing")
		return &QuizResult{NoMatch: true, Message: NoMatchMessage, Filter: filter}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("subset: %w", err)
	}

	topic := req.Topic()
	results, err := sub.Search(ctx, topic, o.quizK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	log.Debug("retrieved context", "subset", sub.Size(), "chunks", len(results))

	count := req.Count
	if count <= 0 {
		count = DefaultQuestions
	}
	system, prompt := BuildQuizPrompt(filter.Title(o.catalog), topic, count, results)
	text, err := o.completer.Complete(ctx, "quiz", system, prompt)
	if err != nil {
		return nil, fmt.Errorf("complete quiz: %w", err)
	}

	var quiz Quiz
	if err := llm.DecodeJSON(text, &quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if len(quiz.Questions) != count {
		log.Warn("quiz length differs from request", "requested", count, "got", len(quiz.Questions))
	}
	return &QuizResult{Quiz: &quiz, Filter: filter, Sources: chunksOf(results)}, nil
}

func chunksOf(results []retrieve.Result) []corpus.Chunk {
	out := make([]corpus.Chunk, len(results))
	for i, r := range results {
		out[i] = r.Chunk
	}
	return out
}
