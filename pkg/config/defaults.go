package config

// Defaults contains system-wide default configurations.
// These values apply when a request or component does not specify its own.
type Defaults struct {
	// Privacy mode the process starts in. LOCAL when unset or invalid.
	PrivacyMode string `yaml:"privacy_mode,omitempty"`

	// AutoConfirmCloud approves cloud-access requests without a callback.
	// Intended for non-interactive deployments that have pre-consented.
	AutoConfirmCloud bool `yaml:"auto_confirm_cloud,omitempty"`

	// Consensus controls whether requests fan out to every permitted
	// backend and synthesize by default. Requests may override per-call.
	Consensus *bool `yaml:"consensus,omitempty"`

	// FallbackOrder is the backend order for the sequential fallback path.
	FallbackOrder []string `yaml:"fallback_order,omitempty"`

	// SynthesisOrder is the backend preference for consensus synthesis.
	SynthesisOrder []string `yaml:"synthesis_order,omitempty"`

	// PromptMasking controls masking of prompts bound for cloud backends
	// while in HYBRID mode.
	PromptMasking *PromptMaskingDefaults `yaml:"prompt_masking,omitempty"`
}

// PromptMaskingDefaults holds outbound prompt masking settings.
// Applied to every cloud-bound prompt in HYBRID mode.
type PromptMaskingDefaults struct {
	Enabled      bool   `yaml:"enabled"`
	PatternGroup string `yaml:"pattern_group"`
}

// ConsensusEnabled resolves the consensus default (true when unset).
func (d *Defaults) ConsensusEnabled() bool {
	if d == nil || d.Consensus == nil {
		return true
	}
	return *d.Consensus
}
