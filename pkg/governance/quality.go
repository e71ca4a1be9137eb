package governance

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/observe"
)

// QualityLevel grades a draft response.
type QualityLevel string

const (
	LevelVerified         QualityLevel = "VERIFIED"
	LevelHonestLimitation QualityLevel = "HONEST_LIMITATION"
	LevelLikelyAccurate   QualityLevel = "LIKELY_ACCURATE"
	LevelSuspicious       QualityLevel = "SUSPICIOUS"
	LevelRepeat           QualityLevel = "REPEAT"
	LevelContradicts      QualityLevel = "CONTRADICTS"
)

// Quality flags.
const (
	FlagRepeat            = "REPEAT"
	FlagUnverifiedClaims  = "UNVERIFIED_CLAIMS"
	FlagContradicts       = "CONTRADICTS_KNOWLEDGE"
	FlagMissingLimitation = "MISSING_LIMITATION"
)

const (
	repeatThreshold   = 0.75
	repeatCandidates  = 5
	maxClaimSentences = 5
)

var levelConfidence = map[QualityLevel]float64{
	LevelVerified:         0.95,
	LevelHonestLimitation: 0.85,
	LevelLikelyAccurate:   0.75,
	LevelSuspicious:       0.4,
	LevelRepeat:           0.5,
	LevelContradicts:      0.1,
}

// Assessment is the quality checker's verdict on one draft response.
type Assessment struct {
	Level            QualityLevel `json:"level"`
	IsClean          bool         `json:"is_clean"`
	Flags            []string     `json:"flags,omitempty"`
	Recommendations  []string     `json:"recommendations,omitempty"`
	Confidence       float64      `json:"confidence"`
	VerifiedClaims   []string     `json:"verified_claims,omitempty"`
	UnverifiedClaims []string     `json:"unverified_claims,omitempty"`
}

// QualityStore is the slice of the permanent store the checker reads.
type QualityStore interface {
	SearchConversations(ctx context.Context, query string, limit, minImportance int) ([]*brain.Turn, error)
	SearchKnowledge(ctx context.Context, query string, limit int) ([]*brain.Fact, error)
}

// Checker validates draft responses against conversation history and
// stored knowledge before they reach the user.
type Checker struct {
	store   QualityStore
	metrics *observe.Metrics
	logger  *slog.Logger
}

// NewChecker creates a quality Checker.
func NewChecker(store QualityStore, metrics *observe.Metrics, logger *slog.Logger) *Checker {
	return &Checker{store: store, metrics: metrics, logger: logger}
}

var hedgingPhrases = []string{
	"i think", "i believe", "might", "may be", "seems", "probably",
	"possibly", "perhaps", "i guess",
}

var limitationPhrases = []string{
	"i don't know", "i cannot verify", "i can't verify", "i'm not certain",
	"i don't have access", "i'm not sure", "i can't predict", "i cannot predict",
	"beyond my knowledge", "i don't have information", "as of my knowledge",
}

var uncertaintyTriggerRe = regexp.MustCompile(`(?i)\b(predict|future|will happen|next year|private|confidential|latest|real[- ]?time|stock will|lottery)\b`)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)

// Check grades a draft response to an input.
func (c *Checker) Check(ctx context.Context, input, response string) *Assessment {
	a := &Assessment{}

	c.checkRepeat(ctx, input, response, a)
	c.checkClaims(ctx, response, a)
	c.checkContradiction(ctx, input, response, a)
	checkLimitation(input, response, a)

	a.Level = levelOf(a)
	a.Confidence = levelConfidence[a.Level]
	a.IsClean = len(a.Flags) == 0

	if c.metrics != nil {
		for _, flag := range a.Flags {
			c.metrics.QualityFlags.Add(ctx, 1, metric.WithAttributes(
				attribute.String("flag", flag),
			))
		}
	}
	return a
}

// checkRepeat flags responses that closely repeat a past response to a
// similar input.
func (c *Checker) checkRepeat(ctx context.Context, input, response string, a *Assessment) {
	turns, err := c.store.SearchConversations(ctx, input, repeatCandidates, 0)
	if err != nil {
		c.logger.Warn("repeat search failed", "error", err)
		return
	}
	for _, t := range turns {
		if sim := tokenSimilarity(response, t.AssistantText); sim > repeatThreshold {
			a.Flags = append(a.Flags, FlagRepeat)
			a.Recommendations = append(a.Recommendations,
				"response repeats an earlier answer; add new information or vary phrasing")
			return
		}
	}
}

// checkClaims splits the leading sentences into hedged (unverified by
// construction) and factual claims, verifying the latter against stored
// knowledge.
func (c *Checker) checkClaims(ctx context.Context, response string, a *Assessment) {
	sentences := splitSentences(response, maxClaimSentences)
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		if containsAny(lower, hedgingPhrases) {
			a.UnverifiedClaims = append(a.UnverifiedClaims, sentence)
			continue
		}
		if c.knowledgeSupports(ctx, sentence) {
			a.VerifiedClaims = append(a.VerifiedClaims, sentence)
		} else {
			a.UnverifiedClaims = append(a.UnverifiedClaims, sentence)
		}
	}

	if len(a.UnverifiedClaims) > 0 && !containsAny(strings.ToLower(response), limitationPhrases) {
		a.Flags = append(a.Flags, FlagUnverifiedClaims)
		a.Recommendations = append(a.Recommendations,
			"unsupported claims present; hedge them or acknowledge the limitation")
	}
}

// knowledgeSupports reports whether any stored fact shares a content
// token with the sentence.
func (c *Checker) knowledgeSupports(ctx context.Context, sentence string) bool {
	facts, err := c.store.SearchKnowledge(ctx, sentence, 3)
	if err != nil {
		c.logger.Warn("claim verification search failed", "error", err)
		return false
	}
	return len(facts) > 0
}

// checkContradiction flags explicit negations of stored facts: the
// response saying "not X" or "isn't X" where X is a token of a fact
// recalled for this input.
func (c *Checker) checkContradiction(ctx context.Context, input, response string, a *Assessment) {
	facts, err := c.store.SearchKnowledge(ctx, input, 3)
	if err != nil {
		c.logger.Warn("contradiction search failed", "error", err)
		return
	}

	lower := strings.ToLower(response)
	for _, f := range facts {
		for _, tok := range classifyWordRe.FindAllString(strings.ToLower(f.Value), -1) {
			if len(tok) <= 3 {
				continue
			}
			if strings.Contains(lower, "not "+tok) || strings.Contains(lower, "isn't "+tok) ||
				strings.Contains(lower, "is not "+tok) {
				a.Flags = append(a.Flags, FlagContradicts)
				a.Recommendations = append(a.Recommendations,
					"response contradicts stored knowledge: "+f.Category+"/"+f.Key)
				return
			}
		}
	}
}

// checkLimitation requires a limitation acknowledgement when the input
// asks for something no model can know.
func checkLimitation(input, response string, a *Assessment) {
	if !uncertaintyTriggerRe.MatchString(input) {
		return
	}
	if containsAny(strings.ToLower(response), limitationPhrases) {
		return
	}
	a.Flags = append(a.Flags, FlagMissingLimitation)
	a.Recommendations = append(a.Recommendations,
		"input asks about unknowable information; acknowledge the limitation")
}

func levelOf(a *Assessment) QualityLevel {
	flags := make(map[string]bool, len(a.Flags))
	for _, f := range a.Flags {
		flags[f] = true
	}

	switch {
	case flags[FlagContradicts]:
		return LevelContradicts
	case flags[FlagRepeat]:
		return LevelRepeat
	case flags[FlagMissingLimitation], flags[FlagUnverifiedClaims]:
		return LevelSuspicious
	case len(a.UnverifiedClaims) > 0:
		// Unverified claims with a limitation acknowledgement present.
		return LevelHonestLimitation
	case len(a.VerifiedClaims) > 0:
		return LevelVerified
	default:
		return LevelLikelyAccurate
	}
}

// tokenSimilarity is the Dice coefficient over token multisets: 1.0 for
// identical token streams, 0.0 for disjoint ones.
func tokenSimilarity(a, b string) float64 {
	ta := classifyWordRe.FindAllString(strings.ToLower(a), -1)
	tb := classifyWordRe.FindAllString(strings.ToLower(b), -1)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ta))
	for _, tok := range ta {
		counts[tok]++
	}
	common := 0
	for _, tok := range tb {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

func splitSentences(text string, limit int) []string {
	parts := sentenceSplitRe.Split(strings.TrimSpace(text), -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), ".!?")
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}
