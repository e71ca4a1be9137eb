package governance

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thalamus-ai/thalamus/pkg/brain"
)

type fakeQualityStore struct {
	turns []*brain.Turn
	facts []*brain.Fact
}

func (f *fakeQualityStore) SearchConversations(_ context.Context, _ string, _, _ int) ([]*brain.Turn, error) {
	return f.turns, nil
}

func (f *fakeQualityStore) SearchKnowledge(_ context.Context, query string, _ int) ([]*brain.Fact, error) {
	var out []*brain.Fact
	lower := strings.ToLower(query)
	for _, fact := range f.facts {
		for _, tok := range strings.Fields(strings.ToLower(fact.Value)) {
			if len(tok) > 3 && strings.Contains(lower, tok) {
				out = append(out, fact)
				break
			}
		}
	}
	return out, nil
}

func newTestChecker(store QualityStore) *Checker {
	return NewChecker(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheck_Repeat(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{turns: []*brain.Turn{
		{AssistantText: "The deploy pipeline runs nightly at two."},
	}})

	a := c.Check(context.Background(), "when does the pipeline run?",
		"The deploy pipeline runs nightly at two.")

	assert.Contains(t, a.Flags, FlagRepeat)
	assert.Equal(t, LevelRepeat, a.Level)
	assert.Equal(t, 0.5, a.Confidence)
	assert.False(t, a.IsClean)
}

func TestCheck_Verified(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{facts: []*brain.Fact{
		{Category: "infra", Key: "pipeline", Value: "deploy pipeline runs nightly"},
	}})

	a := c.Check(context.Background(), "tell me about the pipeline",
		"The deploy pipeline runs nightly.")

	assert.Equal(t, LevelVerified, a.Level)
	assert.Equal(t, 0.95, a.Confidence)
	assert.True(t, a.IsClean)
	assert.NotEmpty(t, a.VerifiedClaims)
}

func TestCheck_UnverifiedWithoutLimitation(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{})

	a := c.Check(context.Background(), "what powers the scheduler?",
		"The scheduler is powered by a quantum crystal.")

	assert.Contains(t, a.Flags, FlagUnverifiedClaims)
	assert.Equal(t, LevelSuspicious, a.Level)
	assert.Equal(t, 0.4, a.Confidence)
}

func TestCheck_HonestLimitation(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{})

	a := c.Check(context.Background(), "predict next year's market",
		"I can't predict that. Markets depend on too many unknowns.")

	assert.NotContains(t, a.Flags, FlagMissingLimitation)
	assert.NotContains(t, a.Flags, FlagUnverifiedClaims)
	assert.Equal(t, LevelHonestLimitation, a.Level)
	assert.Equal(t, 0.85, a.Confidence)
	assert.True(t, a.IsClean)
}

func TestCheck_MissingLimitation(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{facts: []*brain.Fact{
		{Category: "market", Key: "history", Value: "markets rose steadily last decade"},
	}})

	a := c.Check(context.Background(), "predict next year's market",
		"Markets will certainly rise twenty percent.")

	assert.Contains(t, a.Flags, FlagMissingLimitation)
	assert.Equal(t, LevelSuspicious, a.Level)
}

func TestCheck_Contradiction(t *testing.T) {
	c := newTestChecker(&fakeQualityStore{facts: []*brain.Fact{
		{Category: "geo", Key: "capital_fr", Value: "capital of france is paris"},
	}})

	a := c.Check(context.Background(), "what is the capital of france?",
		"The capital is not Paris.")

	assert.Contains(t, a.Flags, FlagContradicts)
	assert.Equal(t, LevelContradicts, a.Level)
	assert.Equal(t, 0.1, a.Confidence)
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("the cat sat", "the cat sat"))
	assert.Zero(t, tokenSimilarity("alpha bravo", "charlie delta"))
	assert.Zero(t, tokenSimilarity("", "words"))

	sim := tokenSimilarity("the cat sat on the mat", "the cat sat")
	assert.Greater(t, sim, 0.6)
	assert.Less(t, sim, 1.0)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three? Four. Five. Six.", 5)
	assert.Equal(t, []string{"One", "Two", "Three", "Four", "Five"}, got)
}
