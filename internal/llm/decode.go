package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/coursegest/internal/retry"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeBlock removes a surrounding markdown code fence.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// DecodeJSON parses a completion that should hold one JSON value. Code
// fences and prose around the outermost object are tolerated.
func DecodeJSON(text string, v any) error {
	body := StripCodeBlock(text)
	if err := json.Unmarshal([]byte(body), v); err == nil {
		return nil
	}
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(body[start:end+1]), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("parse json: invalid completion (raw: %s)", retry.Truncate(body, 200))
}
