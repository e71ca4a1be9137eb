package governance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thalamus-ai/thalamus/pkg/brain"
)

// CommContext is the conversational register a request arrives in.
type CommContext string

const (
	ContextCasual    CommContext = "CASUAL"
	ContextBusiness  CommContext = "BUSINESS"
	ContextTechnical CommContext = "TECHNICAL"
	ContextSupport   CommContext = "SUPPORT"
	ContextSystem    CommContext = "SYSTEM"
	ContextResearch  CommContext = "RESEARCH"
	ContextLearning  CommContext = "LEARNING"
	ContextExecutive CommContext = "EXECUTIVE"
	ContextSecurity  CommContext = "SECURITY"
	ContextCreative  CommContext = "CREATIVE"
)

// detectThreshold is the winning score below which the user's last-seen
// profile takes over instead of a context default.
const detectThreshold = 0.3

var contextKeywords = map[CommContext][]weightedKeyword{
	ContextCasual: {
		{"hey", 2}, {"lol", 2}, {"haha", 2}, {"thanks", 1}, {"cool", 1}, {"btw", 1},
	},
	ContextBusiness: {
		{"meeting", 2}, {"client", 2}, {"invoice", 2}, {"deadline", 2},
		{"quarterly", 2}, {"stakeholder", 2},
	},
	ContextTechnical: {
		{"code", 2}, {"api", 2}, {"server", 1}, {"database", 2},
		{"deploy", 2}, {"function", 1}, {"bug", 1},
	},
	ContextSupport: {
		{"help", 2}, {"not working", 2}, {"frustrated", 3}, {"issue", 1},
		{"stuck", 2}, {"please", 1},
	},
	ContextSystem: {
		{"cron", 2}, {"automated", 2}, {"scheduled", 2}, {"webhook", 2},
	},
	ContextResearch: {
		{"research", 2}, {"study", 2}, {"paper", 2}, {"evidence", 2}, {"hypothesis", 2},
	},
	ContextLearning: {
		{"explain", 2}, {"teach", 2}, {"understand", 2}, {"how does", 2}, {"example", 1},
	},
	ContextExecutive: {
		{"summary", 2}, {"bottom line", 3}, {"decision", 2}, {"board", 2}, {"roadmap", 1},
	},
	ContextSecurity: {
		{"vulnerability", 3}, {"breach", 3}, {"exploit", 2}, {"cve", 3}, {"incident", 2},
	},
	ContextCreative: {
		{"story", 2}, {"poem", 2}, {"brainstorm", 2}, {"creative", 2}, {"imagine", 2},
	},
}

// defaultProfiles holds the per-context starting points. Learned per-user
// profiles override these over time.
var defaultProfiles = map[CommContext]brain.CommProfile{
	ContextCasual: {
		Formality: 0.2, Empathy: 0.6, TechnicalDepth: 0.3, Verbosity: 0.4,
		PersonalityExpression: 0.8, ExplanationStyle: "direct",
		ConfidenceExpression: "direct", ErrorHandling: "casual",
	},
	ContextBusiness: {
		Formality: 0.8, Empathy: 0.4, TechnicalDepth: 0.5, Verbosity: 0.5,
		PersonalityExpression: 0.2, ExplanationStyle: "direct",
		ConfidenceExpression: "direct", ErrorHandling: "formal",
	},
	ContextTechnical: {
		Formality: 0.5, Empathy: 0.3, TechnicalDepth: 0.9, Verbosity: 0.6,
		PersonalityExpression: 0.3, ExplanationStyle: "detailed",
		ConfidenceExpression: "direct", ErrorHandling: "formal",
	},
	ContextSupport: {
		Formality: 0.4, Empathy: 0.9, TechnicalDepth: 0.4, Verbosity: 0.5,
		PersonalityExpression: 0.5, ExplanationStyle: "guided",
		ConfidenceExpression: "cautious", ErrorHandling: "empathetic",
	},
	ContextSystem: {
		Formality: 0.9, Empathy: 0.0, TechnicalDepth: 0.8, Verbosity: 0.2,
		ResponseSpeedPriority: true, ExplanationStyle: "direct",
		ConfidenceExpression: "direct", ErrorHandling: "formal",
	},
	ContextResearch: {
		Formality: 0.6, Empathy: 0.3, TechnicalDepth: 0.8, Verbosity: 0.8,
		PersonalityExpression: 0.2, ExplanationStyle: "detailed",
		ConfidenceExpression: "cautious", ErrorHandling: "formal",
	},
	ContextLearning: {
		Formality: 0.4, Empathy: 0.7, TechnicalDepth: 0.6, Verbosity: 0.7,
		PersonalityExpression: 0.5, ExplanationStyle: "guided",
		ConfidenceExpression: "humble", ErrorHandling: "empathetic",
	},
	ContextExecutive: {
		Formality: 0.9, Empathy: 0.3, TechnicalDepth: 0.3, Verbosity: 0.2,
		ResponseSpeedPriority: true, ExplanationStyle: "direct",
		ConfidenceExpression: "direct", ErrorHandling: "formal",
	},
	ContextSecurity: {
		Formality: 0.7, Empathy: 0.2, TechnicalDepth: 0.9, Verbosity: 0.6,
		PersonalityExpression: 0.1, ExplanationStyle: "detailed",
		ConfidenceExpression: "cautious", ErrorHandling: "formal",
	},
	ContextCreative: {
		Formality: 0.2, Empathy: 0.6, TechnicalDepth: 0.2, Verbosity: 0.7,
		PersonalityExpression: 1.0, ExplanationStyle: "guided",
		ConfidenceExpression: "direct", ErrorHandling: "casual",
	},
}

// ProfileStore is the slice of the permanent store the communer needs.
type ProfileStore interface {
	CommProfileFor(ctx context.Context, userID, commContext string) (*brain.CommProfile, bool, error)
	LastCommProfile(ctx context.Context, userID string) (*brain.CommProfile, bool, error)
	SaveCommProfile(ctx context.Context, p *brain.CommProfile) error
}

// Communer detects conversational context, maintains per-user style
// profiles, renders them into system prompts, and post-edits responses to
// match.
type Communer struct {
	store  ProfileStore
	logger *slog.Logger
}

// NewCommuner creates a Communer backed by the given profile store.
func NewCommuner(store ProfileStore, logger *slog.Logger) *Communer {
	return &Communer{store: store, logger: logger}
}

// DetectContext scores the ten contexts against the input. Metadata hints
// win outright; otherwise the best keyword score wins, normalized against
// the total signal.
func DetectContext(input string, hints map[string]string) (CommContext, float64) {
	if hints["role"] == "executive" {
		return ContextExecutive, 1.0
	}
	if hints["system_call"] == "true" {
		return ContextSystem, 1.0
	}

	lower := strings.ToLower(input)
	words := make(map[string]bool)
	for _, w := range classifyWordRe.FindAllString(lower, -1) {
		words[w] = true
	}

	best, bestScore, total := ContextCasual, 0.0, 0.0
	for commCtx, keywords := range contextKeywords {
		score := 0.0
		for _, kw := range keywords {
			if strings.ContainsRune(kw.word, ' ') {
				if strings.Contains(lower, kw.word) {
					score += kw.weight
				}
			} else if words[kw.word] {
				score += kw.weight
			}
		}
		total += score
		if score > bestScore || (score == bestScore && commCtx < best) {
			best, bestScore = commCtx, score
		}
	}

	if total == 0 {
		return ContextCasual, 0
	}
	return best, bestScore / total
}

// ProfileFor resolves the profile to use: the user's learned profile for
// the detected context, the context default, or, when detection was
// indecisive, the user's last-seen profile at reduced confidence.
// The returned confidence is the detection confidence actually applied.
func (c *Communer) ProfileFor(ctx context.Context, userID string, detected CommContext, confidence float64) (*brain.CommProfile, float64) {
	if confidence < detectThreshold {
		if last, ok, err := c.store.LastCommProfile(ctx, userID); err == nil && ok {
			return last, 0.7
		} else if err != nil {
			c.logger.Warn("last profile load failed", "user_id", userID, "error", err)
		}
	}

	if p, ok, err := c.store.CommProfileFor(ctx, userID, string(detected)); err == nil && ok {
		return p, confidence
	} else if err != nil {
		c.logger.Warn("profile load failed", "user_id", userID, "context", detected, "error", err)
	}

	def := defaultProfiles[detected]
	def.UserID = userID
	def.Context = string(detected)
	return &def, confidence
}

// SystemPrompt renders a profile's numeric dimensions into imperative
// style instructions for the model.
func SystemPrompt(p *brain.CommProfile) string {
	var parts []string

	switch {
	case p.Formality > 0.7:
		parts = append(parts, "Use formal, professional language. No contractions or slang.")
	case p.Formality < 0.3:
		parts = append(parts, "Keep the tone relaxed and conversational.")
	default:
		parts = append(parts, "Use a neutral, approachable tone.")
	}

	switch {
	case p.Empathy > 0.7:
		parts = append(parts, "Acknowledge the user's situation before answering.")
	case p.Empathy < 0.3:
		parts = append(parts, "Skip pleasantries; answer directly.")
	}

	switch {
	case p.TechnicalDepth > 0.7:
		parts = append(parts, "Go deep technically; assume an expert reader.")
	case p.TechnicalDepth < 0.3:
		parts = append(parts, "Avoid jargon; explain in plain terms.")
	}

	switch {
	case p.Verbosity > 0.7:
		parts = append(parts, "Give a thorough, complete answer with examples.")
	case p.Verbosity < 0.4:
		parts = append(parts, "Be brief. A few sentences at most.")
	}

	switch p.ConfidenceExpression {
	case "cautious":
		parts = append(parts, "Qualify claims you cannot verify.")
	case "humble":
		parts = append(parts, "Present answers as suggestions, not verdicts.")
	}

	switch p.ExplanationStyle {
	case "guided":
		parts = append(parts, "Walk through the reasoning step by step.")
	case "detailed":
		parts = append(parts, "Include supporting detail and context.")
	}

	if p.ResponseSpeedPriority {
		parts = append(parts, "Prioritize a fast, minimal answer.")
	}

	return strings.Join(parts, " ")
}

var contractions = [][2]string{
	{"can't", "cannot"}, {"won't", "will not"}, {"don't", "do not"},
	{"doesn't", "does not"}, {"isn't", "is not"}, {"aren't", "are not"},
	{"it's", "it is"}, {"I'm", "I am"}, {"you're", "you are"},
	{"we're", "we are"}, {"that's", "that is"}, {"didn't", "did not"},
	{"couldn't", "could not"}, {"shouldn't", "should not"},
	{"wouldn't", "would not"}, {"I'll", "I will"}, {"we'll", "we will"},
}

var empathyPhrases = []string{
	"i understand", "i hear you", "that sounds", "i can see", "sorry to hear",
}

var friendlyClosers = []string{"!", ":)", "😊", "🙂"}

const truncationMarker = "\n[...]"

// PostEdit adjusts a draft response to the profile. It returns the text
// to display and the full untruncated text (identical unless the
// verbosity rule truncated).
func PostEdit(p *brain.CommProfile, text string) (display, full string) {
	if p.Formality > 0.8 {
		for _, c := range contractions {
			text = strings.ReplaceAll(text, c[0], c[1])
			text = strings.ReplaceAll(text, capitalize(c[0]), capitalize(c[1]))
		}
	}

	if p.Empathy > 0.7 && !containsAny(strings.ToLower(text), empathyPhrases) {
		text = "I understand. " + text
	}

	if p.Formality < 0.4 && !containsAny(text, friendlyClosers) {
		text = strings.TrimRight(text, " \n") + " Happy to help!"
	}

	full = text
	if p.Verbosity < 0.4 {
		lines := strings.Split(text, "\n")
		if len(lines) > 5 {
			text = strings.Join(lines[:3], "\n") + truncationMarker
		}
	}
	return text, full
}

// Learn applies explicit style feedback to the profile and persists it.
// Unrecognized feedback is a no-op.
func (c *Communer) Learn(ctx context.Context, p *brain.CommProfile, feedback string) error {
	switch feedback {
	case "too_formal":
		p.Formality = clamp01(p.Formality * 0.8)
	case "too_casual":
		p.Formality = clamp01(p.Formality * 1.2)
	case "not_empathetic":
		p.Empathy = clamp01(p.Empathy * 1.2)
	case "too_empathetic":
		p.Empathy = clamp01(p.Empathy * 0.8)
	default:
		return nil
	}

	if err := c.store.SaveCommProfile(ctx, p); err != nil {
		return fmt.Errorf("persist profile after %q: %w", feedback, err)
	}
	return nil
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
