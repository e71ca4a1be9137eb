package config

import (
	"fmt"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: LLM providers → agents → defaults → server/memory/knowledge
	// This ensures dependencies are validated before dependents

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := v.validateMemory(); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if provider.Type == "" {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("%w: type", ErrMissingRequiredField))
		}
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("%w: %s", ErrInvalidValue, provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("%w: model", ErrMissingRequiredField))
		}

		// Cloud providers need a credential source; local runtimes do not.
		if provider.Kind() == ProviderKindCloud && provider.APIKeyEnv == "" {
			return NewValidationError("llm_provider", name, "api_key_env",
				fmt.Errorf("%w: cloud provider requires api_key_env", ErrMissingRequiredField))
		}

		if provider.Timeout < 0 {
			return NewValidationError("llm_provider", name, "timeout", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
		if provider.Temperature != nil && (*provider.Temperature < 0 || *provider.Temperature > 2) {
			return NewValidationError("llm_provider", name, "temperature", fmt.Errorf("%w: must be in [0,2]", ErrInvalidValue))
		}
		if provider.MaxTokens < 0 {
			return NewValidationError("llm_provider", name, "max_tokens", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
	}

	return nil
}

func (v *ConfigValidator) validateAgents() error {
	for name, agent := range v.cfg.AgentRegistry.GetAll() {
		if len(agent.TaskTypes) == 0 {
			return NewValidationError("agent", name, "task_types", fmt.Errorf("at least one task type required"))
		}
	}

	return nil
}

func (v *ConfigValidator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return nil
	}

	// Backends named in orderings must exist in the provider registry.
	for _, field := range []struct {
		name  string
		order []string
	}{
		{"fallback_order", d.FallbackOrder},
		{"synthesis_order", d.SynthesisOrder},
	} {
		for _, backend := range field.order {
			if !v.cfg.LLMProviderRegistry.Has(backend) {
				return NewValidationError("defaults", "defaults", field.name,
					fmt.Errorf("LLM provider '%s' not found", backend))
			}
		}
	}

	if d.PromptMasking != nil && d.PromptMasking.Enabled {
		group := d.PromptMasking.PatternGroup
		if _, ok := GetBuiltinConfig().PatternGroups[group]; !ok {
			return NewValidationError("defaults", "defaults", "prompt_masking.pattern_group",
				fmt.Errorf("pattern group '%s' not found", group))
		}
	}

	return nil
}

func (v *ConfigValidator) validateServer() error {
	s := v.cfg.Server
	if s == nil {
		return nil
	}

	if s.Port < 1 || s.Port > 65535 {
		return NewValidationError("server", "server", "port", fmt.Errorf("%w: must be in [1,65535]", ErrInvalidValue))
	}
	if s.MaxInflight < 1 {
		return NewValidationError("server", "server", "max_inflight", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if s.GzipMinBytes < 0 {
		return NewValidationError("server", "server", "gzip_min_bytes", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}

	return nil
}

func (v *ConfigValidator) validateMemory() error {
	m := v.cfg.Memory
	if m == nil {
		return nil
	}

	if m.DatabasePath == "" {
		return NewValidationError("memory", "memory", "database_path", fmt.Errorf("%w: database_path", ErrMissingRequiredField))
	}
	if m.TickInterval <= 0 {
		return NewValidationError("memory", "memory", "tick_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if m.SyncInterval <= 0 {
		return NewValidationError("memory", "memory", "sync_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if m.ConsolidateInterval <= 0 {
		return NewValidationError("memory", "memory", "consolidate_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	return nil
}
