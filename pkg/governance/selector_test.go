package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
)

type fakeSkills struct {
	rates map[string]float64
}

func (f *fakeSkills) SkillStats(_ context.Context, skill string) (*brain.SkillStats, bool, error) {
	rate, ok := f.rates[skill]
	if !ok {
		return nil, false, nil
	}
	return &brain.SkillStats{Skill: skill, SuccessRate: rate}, true, nil
}

func testRegistry() *config.AgentRegistry {
	return config.NewAgentRegistry(map[string]*config.AgentConfig{
		"code_specialist":  {TaskTypes: []string{"CODE_MOD", "DEBUG"}},
		"security_analyst": {TaskTypes: []string{"SECURITY"}},
		"generalist":       {TaskTypes: []string{"UNKNOWN"}},
	})
}

func TestSelect_RanksSpecialistFirst(t *testing.T) {
	s := NewSelector(testRegistry(), &fakeSkills{})
	recs := s.Select(context.Background(), Classification{TaskType: TaskCodeMod, Confidence: 0.9})

	require.Len(t, recs, 3)
	assert.Equal(t, "code_specialist", recs[0].Agent)
	// 0.6 x 0.9 classifier + 0.4 x 0.5 unseen history.
	assert.InDelta(t, 0.74, recs[0].Score, 0.001)
	assert.InDelta(t, 0.26, recs[1].Score, 0.001)
}

func TestSelect_HistoryBreaksTies(t *testing.T) {
	skills := &fakeSkills{rates: map[string]float64{
		"security_analyst": 1.0,
		"generalist":       0.0,
	}}
	s := NewSelector(testRegistry(), skills)
	recs := s.Select(context.Background(), Classification{TaskType: TaskCodeMod, Confidence: 0.9})

	require.Len(t, recs, 3)
	assert.Equal(t, "code_specialist", recs[0].Agent)
	assert.Equal(t, "security_analyst", recs[1].Agent, "perfect record beats unseen")
	assert.Equal(t, "generalist", recs[2].Agent)
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierOpus, tierFor(TaskArchitecture, 0.8))
	assert.Equal(t, TierSonnet, tierFor(TaskArchitecture, 0.3))
	assert.Equal(t, TierOpus, tierFor(TaskSecurity, 0.6))
	assert.Equal(t, TierSonnet, tierFor(TaskCodeMod, 0.9))
	assert.Equal(t, TierHaiku, tierFor(TaskUnknown, 0))
	assert.Equal(t, TierHaiku, tierFor(TaskDoc, 0.9))
}
