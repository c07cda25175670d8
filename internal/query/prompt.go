package query

import (
	"fmt"
	"strings"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/retrieve"
)

const contextSeparator = "\n---\n"

const answerPrompt = `You are a helpful TA. Use ONLY the context to answer.
If the answer isn't in the context, say you don't know.

Question: %s

Context:
%s

Answer concisely. Cite slide or chapter when available.`

const quizSystem = "You are a strict quiz generator for a CS course. " +
	"Use ONLY the provided context to write questions. " +
	"If a fact isn't supported by the context, do not include it.\n" +
	"Rules:\n" +
	"- Output MUST strictly match the JSON schema below (no extra keys, no commentary).\n" +
	"- For multiple-choice, provide 3–5 plausible options with single-letter ids ('a','b','c','d', ...), " +
	"and ensure 'correctAnswer' matches one option's id.\n" +
	"- For text-input, set 'acceptableAnswers' to common surface forms (lowercase strings).\n" +
	"- Do NOT leak the context in the question text; write clean, independent questions.\n"

const quizPrompt = `Create a quiz titled: %s
Topic: %s
Number of questions: %d

Use this context:
%s

Return ONLY the JSON (no backticks).`

// BuildAnswerPrompt renders the question-answering prompt.
func BuildAnswerPrompt(question string, results []retrieve.Result) string {
	return fmt.Sprintf(answerPrompt, question, formatContext(results, corpus.Chunk.Citation))
}

// BuildQuizPrompt renders the quiz system prompt and user prompt.
func BuildQuizPrompt(title, topic string, n int, results []retrieve.Result) (system, prompt string) {
	system = quizSystem + "\nJSON schema:\n" + quizSchema
	prompt = fmt.Sprintf(quizPrompt, title, topic, n, formatContext(results, sourceCitation))
	return system, prompt
}

func formatContext(results []retrieve.Result, cite func(corpus.Chunk) string) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = cite(r.Chunk) + " " + strings.TrimSpace(r.Chunk.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// sourceCitation cites by file name, which quiz questions never show.
func sourceCitation(c corpus.Chunk) string {
	m := c.Meta
	switch {
	case m.Slide != nil:
		return fmt.Sprintf("[%s slide %d]", m.Source, *m.Slide)
	case m.Heading != "":
		return fmt.Sprintf("[%s %s]", m.Source, m.Heading)
	}
	return fmt.Sprintf("[%s]", m.Source)
}
