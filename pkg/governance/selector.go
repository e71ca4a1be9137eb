package governance

import (
	"context"
	"sort"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
)

// ModelTier is the model size class an agent recommendation runs on.
type ModelTier string

const (
	TierHaiku  ModelTier = "HAIKU"
	TierSonnet ModelTier = "SONNET"
	TierOpus   ModelTier = "OPUS"
)

const (
	classifierWeight = 0.6
	historyWeight    = 0.4
	// residualScore is what an agent earns for a task type it does not
	// specialize in, so the ranking never collapses to zero candidates.
	residualScore = 0.1
	// unseenSuccessRate is assumed for agents with no track record.
	unseenSuccessRate  = 0.5
	maxRecommendations = 3
)

// Recommendation is one ranked agent pick.
type Recommendation struct {
	Agent string    `json:"agent"`
	Score float64   `json:"score"`
	Tier  ModelTier `json:"tier"`
}

// SkillReader is the slice of the permanent store the selector needs.
type SkillReader interface {
	SkillStats(ctx context.Context, skill string) (*brain.SkillStats, bool, error)
}

// Selector ranks configured agents against a classification, blending the
// classifier's recommendation with each agent's historical success rate.
type Selector struct {
	registry *config.AgentRegistry
	skills   SkillReader
}

// NewSelector creates a Selector over the configured agent registry.
func NewSelector(registry *config.AgentRegistry, skills SkillReader) *Selector {
	return &Selector{registry: registry, skills: skills}
}

// Select returns the top three agents for the classification. Storage
// errors degrade to the unseen success rate; selection never fails.
func (s *Selector) Select(ctx context.Context, cls Classification) []Recommendation {
	tier := tierFor(cls.TaskType, cls.Confidence)

	var recs []Recommendation
	for name, agent := range s.registry.GetAll() {
		classifierScore := residualScore
		if agentHandles(agent, cls.TaskType) {
			classifierScore = max(cls.Confidence, residualScore)
		}

		rate := unseenSuccessRate
		if s.skills != nil {
			if stats, ok, err := s.skills.SkillStats(ctx, name); err == nil && ok {
				rate = stats.SuccessRate
			}
		}

		recs = append(recs, Recommendation{
			Agent: name,
			Score: classifierWeight*classifierScore + historyWeight*rate,
			Tier:  tier,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Agent < recs[j].Agent
	})
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func agentHandles(agent *config.AgentConfig, taskType TaskType) bool {
	for _, t := range agent.TaskTypes {
		if TaskType(t) == taskType {
			return true
		}
	}
	return false
}

// tierFor maps task complexity and classifier decisiveness to a model
// size class.
func tierFor(taskType TaskType, confidence float64) ModelTier {
	switch taskType {
	case TaskArchitecture, TaskSecurity, TaskOptimization:
		if confidence >= 0.5 {
			return TierOpus
		}
		return TierSonnet
	case TaskCodeMod, TaskCodeReview, TaskDebug, TaskDataAnalysis, TaskResearch:
		return TierSonnet
	default: // LEARNING, DOC, UNKNOWN
		return TierHaiku
	}
}
