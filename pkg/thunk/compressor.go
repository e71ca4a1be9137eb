package thunk

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	minPatternCluster = 3
	maxKnowledgeFacts = 10
)

// ErrTooFewSamples means the input cluster is below the compression
// threshold.
var ErrTooFewSamples = errors.New("thunk: too few samples to compress")

// ErrNoCompression means the candidate thunk would not be smaller than
// its source material.
var ErrNoCompression = errors.New("thunk: candidate larger than source")

// Exchange is one observed query/response pair.
type Exchange struct {
	Query     string
	Response  string
	Timestamp time.Time
}

// Compressor builds thunks from observed behavior. Compression is
// deterministic: the same cluster always yields the same trigger and
// template.
type Compressor struct {
	clock func() time.Time
}

// NewCompressor creates a Compressor. A nil clock means wall time.
func NewCompressor(clock func() time.Time) *Compressor {
	if clock == nil {
		clock = time.Now
	}
	return &Compressor{clock: clock}
}

var (
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-z]{2,}\b`)
	preferenceRe  = regexp.MustCompile(`(?i)\b(?:prefer|love|like|hate|favorite is)\s+([a-zA-Z]+)`)
	wordRe        = regexp.MustCompile(`[a-zA-Z0-9]+`)
)

// CompressPattern distills a cluster of similar exchanges into one
// trigger+template thunk. Requires at least three exchanges.
func (c *Compressor) CompressPattern(name string, exchanges []Exchange) (*Thunk, error) {
	n := len(exchanges)
	if n < minPatternCluster {
		return nil, fmt.Errorf("%w: %d pattern samples", ErrTooFewSamples, n)
	}

	queries := make([]string, n)
	responses := make([]string, n)
	for i, ex := range exchanges {
		queries[i] = ex.Query
		responses[i] = ex.Response
	}

	trigger := commonTokens(queries, 0.5)
	if trigger == "" {
		return nil, fmt.Errorf("%w: no shared query tokens", ErrNoCompression)
	}

	vars := extractEntities(exchanges)
	template := shortestString(responses)
	for varName, value := range vars {
		template = strings.ReplaceAll(template, value, "{"+varName+"}")
	}

	t := &Thunk{
		ID:               uuid.NewString(),
		Name:             name,
		Type:             TypePattern,
		Trigger:          trigger,
		Template:         template,
		Variables:        vars,
		Confidence:       min(0.95, float64(n)/20),
		CreatedFromCount: n,
		OriginalBytes:    exchangeBytes(exchanges),
		CreatedAt:        c.clock(),
	}
	return c.accept(t)
}

// CompressTemplate extracts the shared skeleton of similar responses.
func (c *Compressor) CompressTemplate(name string, responses []string) (*Thunk, error) {
	n := len(responses)
	if n < minPatternCluster {
		return nil, fmt.Errorf("%w: %d template samples", ErrTooFewSamples, n)
	}

	template := commonSkeleton(responses)
	if template == "" {
		return nil, fmt.Errorf("%w: no shared response skeleton", ErrNoCompression)
	}

	t := &Thunk{
		ID:               uuid.NewString(),
		Name:             name,
		Type:             TypeTemplate,
		Trigger:          commonTokens(responses, 0.5),
		Template:         template,
		Confidence:       min(0.9, float64(n)/10),
		CreatedFromCount: n,
		OriginalBytes:    stringBytes(responses),
		CreatedAt:        c.clock(),
	}
	return c.accept(t)
}

// CompressKnowledge bundles up to ten distinct facts under one trigger.
func (c *Compressor) CompressKnowledge(name, trigger string, facts []string) (*Thunk, error) {
	distinct := dedupe(facts)
	if len(distinct) == 0 {
		return nil, fmt.Errorf("%w: no facts", ErrTooFewSamples)
	}
	n := len(distinct)
	if n > maxKnowledgeFacts {
		distinct = distinct[:maxKnowledgeFacts]
	}

	t := &Thunk{
		ID:               uuid.NewString(),
		Name:             name,
		Type:             TypeKnowledge,
		Trigger:          trigger,
		Template:         strings.Join(distinct, " | "),
		Confidence:       min(0.9, float64(n)/10),
		CreatedFromCount: n,
		OriginalBytes:    stringBytes(facts),
		CreatedAt:        c.clock(),
	}
	return c.accept(t)
}

// CompressRoutine captures a time-of-day habit: the peak hour across the
// exchanges becomes a stored variable, the shortest response the template.
func (c *Compressor) CompressRoutine(name string, exchanges []Exchange) (*Thunk, error) {
	n := len(exchanges)
	if n < minPatternCluster {
		return nil, fmt.Errorf("%w: %d routine samples", ErrTooFewSamples, n)
	}

	hours := make(map[int]int)
	responses := make([]string, n)
	queries := make([]string, n)
	for i, ex := range exchanges {
		hours[ex.Timestamp.Hour()]++
		responses[i] = ex.Response
		queries[i] = ex.Query
	}
	peak := 0
	for hour, count := range hours {
		if count > hours[peak] || (count == hours[peak] && hour < peak) {
			peak = hour
		}
	}

	t := &Thunk{
		ID:               uuid.NewString(),
		Name:             name,
		Type:             TypeRoutine,
		Trigger:          commonTokens(queries, 0.5),
		Template:         shortestString(responses),
		Variables:        map[string]string{"peak_hour": fmt.Sprintf("%02d", peak)},
		Confidence:       min(0.85, float64(n)/5),
		CreatedFromCount: n,
		OriginalBytes:    exchangeBytes(exchanges),
		CreatedAt:        c.clock(),
	}
	return c.accept(t)
}

// accept enforces the size invariant and fills ThunkBytes.
func (c *Compressor) accept(t *Thunk) (*Thunk, error) {
	t.ThunkBytes = t.byteSize()
	if t.ThunkBytes >= t.OriginalBytes {
		return nil, fmt.Errorf("%w: %d >= %d bytes", ErrNoCompression, t.ThunkBytes, t.OriginalBytes)
	}
	return t, nil
}

// commonTokens returns the tokens appearing in at least threshold of the
// texts, sorted for determinism and joined with spaces.
func commonTokens(texts []string, threshold float64) string {
	counts := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range wordRe.FindAllString(strings.ToLower(text), -1) {
			if len(tok) > 2 && !seen[tok] {
				seen[tok] = true
				counts[tok]++
			}
		}
	}

	need := int(float64(len(texts))*threshold + 0.5)
	var common []string
	for tok, n := range counts {
		if n >= need {
			common = append(common, tok)
		}
	}
	sort.Strings(common)
	return strings.Join(common, " ")
}

// extractEntities finds recurring variable values: capitalized tokens
// seen at least twice become {name}, preference objects become
// {preference}.
func extractEntities(exchanges []Exchange) map[string]string {
	names := make(map[string]int)
	prefs := make(map[string]int)
	for _, ex := range exchanges {
		text := ex.Query + " " + ex.Response
		for _, tok := range capitalizedRe.FindAllString(text, -1) {
			names[tok]++
		}
		for _, m := range preferenceRe.FindAllStringSubmatch(text, -1) {
			prefs[strings.ToLower(m[1])]++
		}
	}

	vars := make(map[string]string)
	if top := topEntry(names, 2); top != "" {
		vars["name"] = top
	}
	if top := topEntry(prefs, 2); top != "" {
		vars["preference"] = top
	}
	if len(vars) == 0 {
		return nil
	}
	return vars
}

// topEntry returns the most frequent key at or above the floor, ties
// broken lexicographically for determinism.
func topEntry(counts map[string]int, floor int) string {
	best := ""
	for k, n := range counts {
		if n < floor {
			continue
		}
		if best == "" || n > counts[best] || (n == counts[best] && k < best) {
			best = k
		}
	}
	return best
}

// commonSkeleton returns the shared leading and trailing token runs of
// the responses with a slot between them.
func commonSkeleton(responses []string) string {
	tokenized := make([][]string, len(responses))
	for i, r := range responses {
		tokenized[i] = strings.Fields(r)
	}

	minLen := len(tokenized[0])
	prefix := tokenized[0]
	for _, toks := range tokenized[1:] {
		prefix = prefix[:commonPrefixLen(prefix, toks)]
		if len(toks) < minLen {
			minLen = len(toks)
		}
	}
	suffix := reverse(tokenized[0])
	for _, toks := range tokenized[1:] {
		suffix = suffix[:commonPrefixLen(suffix, reverse(toks))]
	}
	// Prefix and suffix must not overlap within the shortest response.
	if over := len(prefix) + len(suffix) - minLen; over > 0 {
		suffix = suffix[:max(0, len(suffix)-over)]
	}

	if len(prefix)+len(suffix) == 0 {
		return ""
	}
	parts := make([]string, 0, 3)
	if len(prefix) > 0 {
		parts = append(parts, strings.Join(prefix, " "))
	}
	parts = append(parts, "{var}")
	if len(suffix) > 0 {
		parts = append(parts, strings.Join(reverse(suffix), " "))
	}
	return strings.Join(parts, " ")
}

func commonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

// shortestString returns the shortest entry, ties broken
// lexicographically for determinism.
func shortestString(in []string) string {
	best := in[0]
	for _, s := range in[1:] {
		if len(s) < len(best) || (len(s) == len(best) && s < best) {
			best = s
		}
	}
	return best
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func exchangeBytes(exchanges []Exchange) int {
	n := 0
	for _, ex := range exchanges {
		n += len(ex.Query) + len(ex.Response)
	}
	return n
}

func stringBytes(in []string) int {
	n := 0
	for _, s := range in {
		n += len(s)
	}
	return n
}
