package chunker

import (
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text: non-breaking spaces become spaces,
// horizontal whitespace runs collapse to one space, three or more newlines
// collapse to two, and the result is trimmed.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Windows splits text into consecutive windows of step words. The last
// window may be shorter. Windows that are blank after rejoining are dropped.
func Windows(text string, step int) []string {
	if step <= 0 {
		step = 1
	}
	words := strings.Fields(text)
	var out []string
	for i := 0; i < len(words); i += step {
		end := min(i+step, len(words))
		piece := strings.TrimSpace(strings.Join(words[i:end], " "))
		if piece == "" {
			continue
		}
		out = append(out, piece)
	}
	return out
}
