package query

import (
	"errors"
	"fmt"
)

// ErrInvalidQuiz is returned when a generated quiz breaks the output contract.
var ErrInvalidQuiz = errors.New("invalid quiz")

// Question types.
const (
	TypeMultipleChoice = "multiple-choice"
	TypeTextInput      = "text-input"
)

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID                int      `json:"id"`
	Question          string   `json:"question"`
	Type              string   `json:"type"`
	Options           []Option `json:"options,omitempty"`
	CorrectAnswer     string   `json:"correctAnswer"`
	AcceptableAnswers []string `json:"acceptableAnswers,omitempty"`
}

type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Validate checks the quiz against its output contract.
func (q *Quiz) Validate() error {
	if q.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, qu := range q.Questions {
		if qu.Question == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuiz, i+1)
		}
		switch qu.Type {
		case TypeMultipleChoice:
			if len(qu.Options) < 2 {
				return fmt.Errorf("%w: question %d: multiple-choice requires >= 2 options", ErrInvalidQuiz, i+1)
			}
			found := false
			for _, o := range qu.Options {
				if o.ID == qu.CorrectAnswer {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: question %d: correctAnswer %q is not an option id", ErrInvalidQuiz, i+1, qu.CorrectAnswer)
			}
		case TypeTextInput:
		default:
			return fmt.Errorf("%w: question %d: unknown type %q", ErrInvalidQuiz, i+1, qu.Type)
		}
	}
	return nil
}

// quizSchema is embedded in the quiz prompt.
const quizSchema = `{
  "title": "Quiz",
  "type": "object",
  "required": ["title", "questions"],
  "properties": {
    "title": {"type": "string"},
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "question", "type", "correctAnswer"],
        "properties": {
          "id": {"type": "integer"},
          "question": {"type": "string"},
          "type": {"enum": ["multiple-choice", "text-input"]},
          "options": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "text"],
              "properties": {
                "id": {"type": "string", "description": "single lowercase letter id like 'a','b','c','d'"},
                "text": {"type": "string"}
              }
            }
          },
          "correctAnswer": {"type": "string"},
          "acceptableAnswers": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`
