package config

import "strings"

// LLMProviderType defines supported model backends
type LLMProviderType string

const (
	// LLMProviderTypeOllama is a local Ollama runtime
	LLMProviderTypeOllama LLMProviderType = "ollama"
	// LLMProviderTypeAnthropic is Anthropic Claude API
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	// LLMProviderTypeGoogle is Google Gemini API
	LLMProviderTypeGoogle LLMProviderType = "google"
	// LLMProviderTypeGroq is Groq API
	LLMProviderTypeGroq LLMProviderType = "groq"
	// LLMProviderTypeOpenAI is OpenAI API
	LLMProviderTypeOpenAI LLMProviderType = "openai"
)

// IsValid checks if the LLM provider type is valid
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeOllama,
		LLMProviderTypeAnthropic,
		LLMProviderTypeGoogle,
		LLMProviderTypeGroq,
		LLMProviderTypeOpenAI:
		return true
	default:
		return false
	}
}

// Kind returns the privacy classification of the provider type.
// Local providers never send data outside the process host.
func (t LLMProviderType) Kind() ProviderKind {
	if t == LLMProviderTypeOllama {
		return ProviderKindLocal
	}
	return ProviderKindCloud
}

// ProviderKind distinguishes local runtimes from cloud APIs
type ProviderKind string

const (
	// ProviderKindLocal runs on the same host; no data leaves the machine
	ProviderKindLocal ProviderKind = "local"
	// ProviderKindCloud sends prompts to an external API
	ProviderKindCloud ProviderKind = "cloud"
)

// IsValid checks if the provider kind is valid
func (k ProviderKind) IsValid() bool {
	return k == ProviderKindLocal || k == ProviderKindCloud
}

// PrivacyMode is the three-state privacy posture of the process
type PrivacyMode string

const (
	// PrivacyModeLocal allows local backends only (initial, default)
	PrivacyModeLocal PrivacyMode = "LOCAL"
	// PrivacyModeHybrid allows local plus per-provider approved cloud backends
	PrivacyModeHybrid PrivacyMode = "HYBRID"
	// PrivacyModeCloud allows every configured backend
	PrivacyModeCloud PrivacyMode = "CLOUD"
)

// IsValid checks if the privacy mode is valid
func (m PrivacyMode) IsValid() bool {
	return m == PrivacyModeLocal || m == PrivacyModeHybrid || m == PrivacyModeCloud
}

// ParsePrivacyMode parses a mode string case-insensitively.
// Unknown values fall back to LOCAL (the safe default) with ok=false
// so callers can log the downgrade.
func ParsePrivacyMode(s string) (PrivacyMode, bool) {
	m := PrivacyMode(strings.ToUpper(strings.TrimSpace(s)))
	if m.IsValid() {
		return m, true
	}
	return PrivacyModeLocal, false
}
