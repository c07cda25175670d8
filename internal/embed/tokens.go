package embed

import "strings"

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per English word.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// splitByTokens groups texts into consecutive batches whose estimated token
// total stays under budget. A single oversized text gets its own batch.
func splitByTokens(texts []string, budget int) [][]string {
	var (
		out   [][]string
		cur   []string
		total int
	)
	for _, t := range texts {
		n := EstimateTokens(t)
		if len(cur) > 0 && total+n > budget {
			out = append(out, cur)
			cur, total = nil, 0
		}
		cur = append(cur, t)
		total += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
