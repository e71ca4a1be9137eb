// Package thunk implements generative compression: recurring
// conversational behavior is distilled into small trigger+template pairs
// that can answer matching inputs without a model call.
package thunk

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Type classifies what a thunk compresses.
type Type string

const (
	// TypePattern compresses a recurring query/response exchange.
	TypePattern Type = "PATTERN"
	// TypeTemplate compresses the shared skeleton of similar responses.
	TypeTemplate Type = "TEMPLATE"
	// TypeKnowledge compresses a set of related facts.
	TypeKnowledge Type = "KNOWLEDGE"
	// TypeRoutine compresses a time-of-day habit.
	TypeRoutine Type = "ROUTINE"
)

// Thunk is one compressed behavior. ThunkBytes is always smaller than
// OriginalBytes; the compressor rejects zero-gain candidates.
type Thunk struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             Type              `json:"type"`
	Trigger          string            `json:"trigger"`
	Template         string            `json:"template"`
	Variables        map[string]string `json:"variables,omitempty"`
	Confidence       float64           `json:"confidence"`
	FireCount        int               `json:"fire_count"`
	CreatedFromCount int               `json:"created_from_count"`
	OriginalBytes    int               `json:"original_bytes"`
	ThunkBytes       int               `json:"thunk_bytes"`
	CreatedAt        time.Time         `json:"created_at"`
	LastFired        time.Time         `json:"last_fired,omitempty"`
}

// CompressionRatio reports how many source bytes each stored byte
// replaces. Accepted thunks always score above 1.0.
func (t *Thunk) CompressionRatio() float64 {
	if t.ThunkBytes == 0 {
		return 0
	}
	return float64(t.OriginalBytes) / float64(t.ThunkBytes)
}

// regexMeta detects triggers meant to be interpreted as patterns rather
// than keyword lists.
var regexMeta = regexp.MustCompile(`[\\^$|()\[\]{}*+?]`)

// Matches reports whether input activates this thunk. Triggers containing
// regex metacharacters are matched as case-insensitive regexes; plain
// word triggers require every word to appear in the input.
func (t *Thunk) Matches(input string) bool {
	if t.Trigger == "" {
		return false
	}
	if regexMeta.MatchString(t.Trigger) {
		re, err := regexp.Compile("(?i)" + t.Trigger)
		if err == nil {
			return re.MatchString(input)
		}
	}

	lower := strings.ToLower(input)
	for _, word := range strings.Fields(strings.ToLower(t.Trigger)) {
		if !strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

// Generate renders the template, substituting stored variables, call-site
// overrides, and the time-of-day builtins {time}, {date}, {day} and
// {greeting}. Firing bumps the counters.
func (t *Thunk) Generate(now time.Time, overrides map[string]string) string {
	out := t.Template

	for name, value := range t.Variables {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	for name, value := range overrides {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}

	out = strings.ReplaceAll(out, "{time}", now.Format("3:04 PM"))
	out = strings.ReplaceAll(out, "{date}", now.Format("January 2, 2006"))
	out = strings.ReplaceAll(out, "{day}", now.Format("Monday"))
	out = strings.ReplaceAll(out, "{greeting}", greetingFor(now.Hour()))

	t.FireCount++
	t.LastFired = now
	return out
}

func greetingFor(hour int) string {
	switch {
	case hour < 12:
		return "Good morning"
	case hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// byteSize sums the persisted footprint of a thunk's trigger, template
// and variables.
func (t *Thunk) byteSize() int {
	n := len(t.Trigger) + len(t.Template)
	for k, v := range t.Variables {
		n += len(k) + len(v)
	}
	return n
}

func (t *Thunk) String() string {
	return fmt.Sprintf("%s[%s] trigger=%q fired=%d", t.Name, t.Type, t.Trigger, t.FireCount)
}
