// Package config provides configuration management for the thalamus system,
// including specialist agent, LLM provider, server, memory, and knowledge
// provider configurations.
package config

import (
	"fmt"
	"sync"
)

// AgentConfig defines a specialist agent the governance layer can recommend.
// Agents are metadata only: the selector ranks them against the classified
// task type and their historical success rate.
type AgentConfig struct {
	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// Task types this agent specializes in (classifier task-type names).
	// An agent listing a task type receives the full classifier score for
	// requests of that type; others receive a small residual.
	TaskTypes []string `yaml:"task_types"`

	// Custom instructions appended to the system prompt when this agent
	// leads the recommendation
	CustomInstructions string `yaml:"custom_instructions,omitempty"`
}

// AgentRegistry stores agent configurations in memory with thread-safe access
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{
		agents: copied,
	}
}

// Get retrieves an agent configuration by name (thread-safe)
func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// GetAll returns all agent configurations (thread-safe, returns copy)
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has checks if an agent exists in the registry (thread-safe)
func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.agents[name]
	return exists
}

// Len returns the number of agents in the registry (thread-safe)
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
