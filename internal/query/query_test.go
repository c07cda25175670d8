package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/index"
)

type memCorpus struct {
	chunks []corpus.Chunk
}

func (m *memCorpus) Chunks() []corpus.Chunk { return m.chunks }

func (m *memCorpus) Chunk(id string) (corpus.Chunk, bool) {
	for _, c := range m.chunks {
		if c.ID == id {
			return c, true
		}
	}
	return corpus.Chunk{}, false
}

// orderVector ranks every chunk in corpus order.
type orderVector struct {
	c *memCorpus
}

func (v *orderVector) Search(_ context.Context, _ string, k int) ([]index.Hit, error) {
	var hits []index.Hit
	for _, c := range v.c.chunks {
		if len(hits) == k {
			break
		}
		hits = append(hits, index.Hit{ID: c.ID})
	}
	return hits, nil
}

type call struct {
	op, system, prompt string
}

type fakeCompleter struct {
	reply string
	err   error
	calls []call
}

func (f *fakeCompleter) Complete(_ context.Context, op, system, prompt string) (string, error) {
	f.calls = append(f.calls, call{op: op, system: system, prompt: prompt})
	return f.reply, f.err
}

func textbookChunk(t *testing.T, book string, chapter int, content string) corpus.Chunk {
	t.Helper()
	c, err := corpus.New(content, corpus.Metadata{
		Source:       "book.html",
		DocType:      corpus.DocTextbook,
		Chapter:      corpus.Int(chapter),
		ChapterTitle: "Intro",
		ChunkIndex:   corpus.Int(0),
		BookTitle:    book,
	})
	require.NoError(t, err)
	return c
}

func slideChunk(t *testing.T, slide int, content string) corpus.Chunk {
	t.Helper()
	c, err := corpus.New(content, corpus.Metadata{
		Source:    "lec01.html",
		DocType:   corpus.DocSlides,
		Slide:     corpus.Int(slide),
		DeckTitle: "lec01",
	})
	require.NoError(t, err)
	return c
}

func newTestOrchestrator(t *testing.T, completer *fakeCompleter) (*Orchestrator, *memCorpus) {
	t.Helper()
	algo := "Algorithms (Goodrich & Tamassia)"
	disc := "Discrete & Combinatorial Mathematics"
	c := &memCorpus{chunks: []corpus.Chunk{
		textbookChunk(t, algo, 1, "Asymptotic analysis uses big-oh notation."),
		textbookChunk(t, algo, 2, "Stacks and queues are linear structures."),
		textbookChunk(t, algo, 3, "Heaps implement priority queues."),
		textbookChunk(t, disc, 1, "Propositional logic and truth tables."),
		slideChunk(t, 4, "Binary heap insert bubbles up."),
	}}
	o := New(c, index.NewLexical(c.chunks), &orderVector{c: c}, completer, catalog.Default(), Options{
		TopK: 3,
		Log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return o, c
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line  string
		kind  Kind
		text  string
		count int
		topic string
	}{
		{"what is a heap?", KindAsk, "what is a heap?", 0, "what is a heap?"},
		{"/quiz algorithms chapters 1-3 n=8", KindQuiz, "algorithms chapters 1-3", 8, "algorithms chapters 1-3"},
		{"/quiz discrete chapter 2 n=5", KindQuiz, "discrete chapter 2", 5, "discrete chapter 2"},
		{"/quiz", KindQuiz, "", DefaultQuestions, DefaultTopic},
		{"/quiz n=0 heaps", KindQuiz, "heaps", DefaultQuestions, "heaps"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := ParseRequest(tt.line)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.text, r.Text)
			assert.Equal(t, tt.count, r.Count)
			assert.Equal(t, tt.topic, r.Topic())
		})
	}
}

func TestParseFilter(t *testing.T) {
	cat := catalog.Default()
	tests := []struct {
		text     string
		book     string
		chapters []int
		title    string
	}{
		{"algorithms chapters 1-3", "algorithms", []int{1, 2, 3}, "Algorithms Ch 1-2-3 Quiz"},
		{"Tamassia Chapters 3 – 1", "algorithms", []int{1, 2, 3}, "Algorithms Ch 1-2-3 Quiz"},
		{"discrete chapter 2", "discrete", []int{2}, "Discrete Math Ch 2 Quiz"},
		{"chapter 12 recursion", "", []int{12}, "Ch 12 Quiz"},
		{"heaps", "", nil, "Course Quiz"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f := ParseFilter(tt.text, cat)
			assert.Equal(t, tt.book, f.Book)
			assert.Equal(t, tt.chapters, f.Chapters)
			assert.Equal(t, tt.title, f.Title(cat))
		})
	}
}

func TestFilterPredicate(t *testing.T) {
	cat := catalog.Default()
	algo := textbookChunk(t, "Algorithms (Goodrich & Tamassia)", 2, "x")
	disc := textbookChunk(t, "Discrete & Combinatorial Mathematics", 2, "x")
	slide := slideChunk(t, 2, "x")

	byBook := Filter{Book: "algorithms"}.Predicate(cat)
	assert.True(t, byBook(algo.Meta))
	assert.False(t, byBook(disc.Meta))
	assert.False(t, byBook(slide.Meta))

	byChapter := Filter{Chapters: []int{2}}.Predicate(cat)
	assert.True(t, byChapter(algo.Meta))
	assert.True(t, byChapter(disc.Meta))
	assert.False(t, byChapter(slide.Meta))

	matchAll := Filter{}.Predicate(cat)
	assert.True(t, matchAll(slide.Meta))

	unknown := Filter{Book: "physics"}.Predicate(cat)
	assert.False(t, unknown(algo.Meta))
}

func TestQuizValidate(t *testing.T) {
	mc := Question{ID: 1, Question: "q", Type: TypeMultipleChoice,
		Options: []Option{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}, CorrectAnswer: "b"}
	text := Question{ID: 2, Question: "q", Type: TypeTextInput, CorrectAnswer: "heap"}

	tests := []struct {
		name string
		quiz Quiz
		ok   bool
	}{
		{"valid", Quiz{Title: "T", Questions: []Question{mc, text}}, true},
		{"no title", Quiz{Questions: []Question{mc}}, false},
		{"no questions", Quiz{Title: "T"}, false},
		{"one option", Quiz{Title: "T", Questions: []Question{{Question: "q", Type: TypeMultipleChoice, Options: mc.Options[:1], CorrectAnswer: "a"}}}, false},
		{"answer not an option", Quiz{Title: "T", Questions: []Question{{Question: "q", Type: TypeMultipleChoice, Options: mc.Options, CorrectAnswer: "z"}}}, false},
		{"unknown type", Quiz{Title: "T", Questions: []Question{{Question: "q", Type: "essay"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quiz.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidQuiz)
			}
		})
	}
}

func TestAsk(t *testing.T) {
	fc := &fakeCompleter{reply: "  A heap is a tree. [lec01 slide 4]  "}
	o, _ := newTestOrchestrator(t, fc)

	ans, err := o.Ask(context.Background(), "what is a heap")
	require.NoError(t, err)
	assert.Equal(t, "A heap is a tree. [lec01 slide 4]", ans.Text)
	// Vector ranks all five chunks; the fused union is not cut to TopK.
	assert.Len(t, ans.Sources, 5)

	require.Len(t, fc.calls, 1)
	p := fc.calls[0].prompt
	assert.Equal(t, "ask", fc.calls[0].op)
	assert.True(t, strings.HasPrefix(p, "You are a helpful TA. Use ONLY the context to answer."))
	assert.Contains(t, p, "Question: what is a heap")
	assert.Contains(t, p, "[lec01 slide 4] Binary heap insert bubbles up.")
	assert.Contains(t, p, "\n---\n")
	assert.True(t, strings.HasSuffix(p, "Answer concisely. Cite slide or chapter when available."))

	_, err = o.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

const validQuiz = "```json\n" + `{"title":"Algorithms Ch 3 Quiz","questions":[
 {"id":1,"question":"What do heaps implement?","type":"multiple-choice",
  "options":[{"id":"a","text":"priority queues"},{"id":"b","text":"hash maps"}],"correctAnswer":"a"}]}` + "\n```"

func TestQuiz(t *testing.T) {
	fc := &fakeCompleter{reply: validQuiz}
	o, _ := newTestOrchestrator(t, fc)

	res, err := o.Quiz(context.Background(), ParseRequest("/quiz algorithms chapter 3 n=1"))
	require.NoError(t, err)
	require.False(t, res.NoMatch)
	require.NotNil(t, res.Quiz)
	assert.Equal(t, "Algorithms Ch 3 Quiz", res.Quiz.Title)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, 3, *res.Sources[0].Meta.Chapter)

	require.Len(t, fc.calls, 1)
	c := fc.calls[0]
	assert.Equal(t, "quiz", c.op)
	assert.Contains(t, c.system, "You are a strict quiz generator for a CS course.")
	assert.Contains(t, c.system, "JSON schema:\n{")
	assert.Contains(t, c.prompt, "Create a quiz titled: Algorithms Ch 3 Quiz\nTopic: algorithms chapter 3\nNumber of questions: 1")
	assert.Contains(t, c.prompt, "[book.html] Heaps implement priority queues.")
	assert.NotContains(t, c.prompt, "Stacks")
}

func TestQuiz_NoMatch(t *testing.T) {
	fc := &fakeCompleter{reply: validQuiz}
	o, _ := newTestOrchestrator(t, fc)

	res, err := o.Quiz(context.Background(), ParseRequest("/quiz discrete chapter 9"))
	require.NoError(t, err)
	assert.True(t, res.NoMatch)
	assert.Equal(t, NoMatchMessage, res.Message)
	assert.Nil(t, res.Quiz)
	assert.Empty(t, fc.calls)
}

func TestQuiz_InvalidOutput(t *testing.T) {
	fc := &fakeCompleter{reply: `{"title":"T","questions":[]}`}
	o, _ := newTestOrchestrator(t, fc)
	_, err := o.Quiz(context.Background(), ParseRequest("/quiz heaps"))
	assert.ErrorIs(t, err, ErrInvalidQuiz)

	fc.reply = "I cannot do that"
	_, err = o.Quiz(context.Background(), ParseRequest("/quiz heaps"))
	assert.ErrorIs(t, err, ErrInvalidQuiz)
}

func TestHandle(t *testing.T) {
	fc := &fakeCompleter{reply: validQuiz}
	o, _ := newTestOrchestrator(t, fc)

	resp, err := o.Handle(context.Background(), "/quiz chapter 3")
	require.NoError(t, err)
	assert.Equal(t, KindQuiz, resp.Kind)
	require.NotNil(t, resp.Quiz)
	assert.Nil(t, resp.Answer)

	resp, err = o.Handle(context.Background(), "explain stacks")
	require.NoError(t, err)
	assert.Equal(t, KindAsk, resp.Kind)
	require.NotNil(t, resp.Answer)

	_, err = o.Handle(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyRequest)

	boom := errors.New("service down")
	fc.err = boom
	_, err = o.Handle(context.Background(), "explain stacks")
	assert.ErrorIs(t, err, boom)
}
