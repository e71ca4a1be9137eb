// Package cortex implements the five-layer decaying working memory:
// items enter a volatile flash layer and either decay away or climb
// toward the persistent long-term layers as importance and access
// patterns justify keeping them.
package cortex

import (
	"regexp"
	"strings"
	"time"
)

// Layer identifies one of the five memory layers, ordered from most
// volatile to most durable.
type Layer string

const (
	LayerFlash     Layer = "FLASH"
	LayerWorking   Layer = "WORKING"
	LayerShortTerm Layer = "SHORT_TERM"
	LayerLongTerm  Layer = "LONG_TERM"
	LayerArchive   Layer = "ARCHIVE"
)

// Layers lists every layer in promotion order.
var Layers = []Layer{LayerFlash, LayerWorking, LayerShortTerm, LayerLongTerm, LayerArchive}

// layerCapacity caps the item count per layer. Over-capacity layers evict
// lowest-importance items first.
var layerCapacity = map[Layer]int{
	LayerFlash:     100,
	LayerWorking:   500,
	LayerShortTerm: 2000,
	LayerLongTerm:  50000,
	LayerArchive:   100000,
}

// Capacity returns the item cap for a layer.
func Capacity(l Layer) int { return layerCapacity[l] }

// Persistent reports whether the layer is backed by the store rather than
// process memory.
func (l Layer) Persistent() bool {
	return l == LayerShortTerm || l == LayerLongTerm || l == LayerArchive
}

// Item is one memory. Importance is on a [1,10] scale.
type Item struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Layer        Layer             `json:"layer"`
	Importance   float64           `json:"importance"`
	Confidence   float64           `json:"confidence"`
	AccessCount  int               `json:"access_count"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	PromotedAt   time.Time         `json:"promoted_at"`
	Keywords     []string          `json:"keywords,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Source       string            `json:"source,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "what": true, "your": true,
	"about": true, "are": true, "was": true, "were": true, "will": true,
	"can": true, "you": true, "not": true, "but": true, "they": true,
}

// Tokenize lowercases and splits text into alphanumeric tokens.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// extractKeywords picks up to ten distinctive tokens from the content.
func extractKeywords(content string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, tok := range Tokenize(content) {
		if len(tok) <= 3 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		keywords = append(keywords, tok)
		if len(keywords) >= 10 {
			break
		}
	}
	return keywords
}

// matches reports whether any query token appears in the item's content
// words or keywords.
func (it *Item) matches(queryTokens []string) bool {
	if len(queryTokens) == 0 {
		return false
	}
	content := make(map[string]bool)
	for _, tok := range Tokenize(it.Content) {
		content[tok] = true
	}
	for _, kw := range it.Keywords {
		content[strings.ToLower(kw)] = true
	}
	for _, q := range queryTokens {
		if content[q] {
			return true
		}
	}
	return false
}

// recallScore ranks a matched item: recently touched important items
// first.
func (it *Item) recallScore(now time.Time) float64 {
	days := now.Sub(it.LastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	return it.Importance * (1 / (days + 1))
}
