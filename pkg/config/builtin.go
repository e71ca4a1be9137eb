package config

import (
	"sync"
)

// BuiltinConfig holds all built-in configuration data.
// This provides default agents, LLM providers, masking patterns, and the
// backend orderings used when the YAML files leave them unset.
type BuiltinConfig struct {
	Agents           map[string]AgentConfig
	LLMProviders     map[string]LLMProviderConfig
	MaskingPatterns  map[string]MaskingPattern
	PatternGroups    map[string][]string
	FallbackOrder    []string
	SynthesisOrder   []string
	DefaultLocalURL  string
	PromptMasking    PromptMaskingDefaults
	DefaultPrivacy   PrivacyMode
	DefaultUserID    string
	ConsensusDefault bool
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Agents:          initBuiltinAgents(),
		LLMProviders:    initBuiltinLLMProviders(),
		MaskingPatterns: initBuiltinMaskingPatterns(),
		PatternGroups:   initBuiltinPatternGroups(),
		FallbackOrder:   []string{"local", "claude", "gemini", "groq", "openai"},
		SynthesisOrder:  []string{"claude", "gemini", "openai", "groq", "local"},
		DefaultLocalURL: "http://localhost:11434",
		PromptMasking: PromptMaskingDefaults{
			Enabled:      true,
			PatternGroup: "credentials",
		},
		DefaultPrivacy:   PrivacyModeLocal,
		DefaultUserID:    "default",
		ConsensusDefault: true,
	}
}

func initBuiltinAgents() map[string]AgentConfig {
	return map[string]AgentConfig{
		"code_specialist": {
			Description: "Implements and refactors code",
			TaskTypes:   []string{"CODE_MOD", "DEBUG"},
		},
		"code_reviewer": {
			Description: "Reviews diffs and flags defects",
			TaskTypes:   []string{"CODE_REVIEW"},
		},
		"security_analyst": {
			Description: "Vulnerability analysis and hardening guidance",
			TaskTypes:   []string{"SECURITY"},
		},
		"architect": {
			Description: "System design and tradeoff analysis",
			TaskTypes:   []string{"ARCHITECTURE"},
		},
		"researcher": {
			Description: "Literature and source research with citations",
			TaskTypes:   []string{"RESEARCH", "LEARNING"},
		},
		"optimizer": {
			Description: "Performance profiling and tuning",
			TaskTypes:   []string{"OPTIMIZATION"},
		},
		"data_analyst": {
			Description: "Data exploration, statistics, and reporting",
			TaskTypes:   []string{"DATA_ANALYSIS"},
		},
		"technical_writer": {
			Description: "Documentation structure and prose",
			TaskTypes:   []string{"DOC"},
		},
		"generalist": {
			Description: "Catch-all conversational agent",
			TaskTypes:   []string{"UNKNOWN"},
		},
	}
}

func initBuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"local": {
			Type:    LLMProviderTypeOllama,
			Model:   "llama3.1",
			BaseURL: "http://localhost:11434",
		},
		"claude": {
			Type:      LLMProviderTypeAnthropic,
			Model:     "claude-sonnet-4-20250514",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		"gemini": {
			Type:      LLMProviderTypeGoogle,
			Model:     "gemini-2.5-pro",
			APIKeyEnv: "GOOGLE_API_KEY",
		},
		"groq": {
			Type:      LLMProviderTypeGroq,
			Model:     "llama-3.3-70b-versatile",
			APIKeyEnv: "GROQ_API_KEY",
		},
		"openai": {
			Type:      LLMProviderTypeOpenAI,
			Model:     "gpt-5",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
			Replacement: `api_key: ***MASKED_API_KEY***`,
			Description: "API keys",
		},
		"password": {
			Pattern:     `(?i)(?:password|pwd|passwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
			Replacement: `password: ***MASKED_PASSWORD***`,
			Description: "Passwords",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			Replacement: `token: ***MASKED_TOKEN***`,
			Description: "Access tokens",
		},
		"private_key": {
			Pattern:     `(?s)-----BEGIN [A-Z ]+PRIVATE KEY-----.*?-----END [A-Z ]+PRIVATE KEY-----`,
			Replacement: `***MASKED_PRIVATE_KEY***`,
			Description: "PEM private keys",
		},
		"ssh_key": {
			Pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			Replacement: `***MASKED_SSH_KEY***`,
			Description: "SSH public keys",
		},
		"aws_access_key": {
			Pattern:     `\bAKIA[A-Z0-9]{16}\b`,
			Replacement: `***MASKED_AWS_KEY***`,
			Description: "AWS access key IDs",
		},
		"github_token": {
			Pattern:     `\bgh[ps]_[A-Za-z0-9_]{36,255}\b`,
			Replacement: `***MASKED_GITHUB_TOKEN***`,
			Description: "GitHub tokens",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `***MASKED_EMAIL***`,
			Description: "Email addresses",
		},
		"ipv4": {
			Pattern:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			Replacement: `***MASKED_IP***`,
			Description: "IPv4 addresses",
		},
		"phone": {
			Pattern:     `\+\d{1,3}[\s\-]?\(?\d{2,4}\)?[\s\-]?\d{3}[\s\-]?\d{2,4}\b`,
			Replacement: `***MASKED_PHONE***`,
			Description: "International phone numbers",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns.
// The defaults.prompt_masking.pattern_group setting selects one group for
// every cloud-bound prompt in HYBRID mode.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"credentials": {"api_key", "password", "token", "private_key", "ssh_key", "aws_access_key", "github_token"},
		"network":     {"ipv4"},
		"pii":         {"email", "phone"},
		"all":         {"api_key", "password", "token", "private_key", "ssh_key", "aws_access_key", "github_token", "ipv4", "email", "phone"},
	}
}
