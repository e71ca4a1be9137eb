package cortex

import "strings"

// highImportanceMarkers raise the quick score by 0.5 per hit.
var highImportanceMarkers = []string{
	"important", "remember", "critical", "urgent", "deadline", "always",
	"never", "must", "password", "meeting", "birthday", "appointment",
	"my name is", "i prefer", "i hate", "i love",
}

// lowImportanceMarkers lower the quick score by 0.5 per hit.
var lowImportanceMarkers = []string{
	"maybe", "whatever", "nevermind", "never mind", "random", "btw",
	"just curious", "no reason",
}

// QuickScore estimates importance from content alone, for the hot capture
// path. Seeded at 5.0, adjusted by marker lexicons, length, and whether
// the text asks a question; clamped to [1,10].
func QuickScore(content string) float64 {
	score := 5.0
	lower := strings.ToLower(content)

	for _, marker := range highImportanceMarkers {
		if strings.Contains(lower, marker) {
			score += 0.5
		}
	}
	for _, marker := range lowImportanceMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.5
		}
	}

	if len(content) > 200 {
		score += 0.5
	}
	if len(content) > 500 {
		score += 0.5
	}
	if strings.Contains(content, "?") {
		score += 0.5
	}

	return clampImportance(score)
}

// DeepScore refines a quick score with conversational context: up to +2
// for token overlap with the last five context items, up to +2 for repeat
// access.
func DeepScore(item *Item, context []*Item) float64 {
	score := item.Importance

	if n := len(context); n > 5 {
		context = context[n-5:]
	}
	itemTokens := make(map[string]bool)
	for _, tok := range Tokenize(item.Content) {
		itemTokens[tok] = true
	}

	overlapping := 0
	for _, ctx := range context {
		for _, tok := range Tokenize(ctx.Content) {
			if len(tok) > 3 && itemTokens[tok] {
				overlapping++
				break
			}
		}
	}
	score += min(2.0, float64(overlapping)*0.5)
	score += min(2.0, float64(item.AccessCount)*0.5)

	return clampImportance(score)
}

func clampImportance(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
