package config

// Config is the umbrella configuration object that encapsulates
// all registries, defaults, and configuration state.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide defaults
	Defaults *Defaults

	// HTTP/WebSocket listener configuration
	Server *ServerConfig

	// Tiered memory and persistence configuration
	Memory *MemoryConfig

	// Knowledge provider credentials and limits
	Knowledge *KnowledgeConfig

	// Component registries
	AgentRegistry       *AgentRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Agents       int
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.AgentRegistry != nil {
		s.Agents = c.AgentRegistry.Len()
	}
	if c.LLMProviderRegistry != nil {
		s.LLMProviders = c.LLMProviderRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent retrieves an agent configuration by name.
// This is a convenience method that wraps AgentRegistry.Get().
func (c *Config) GetAgent(name string) (*AgentConfig, error) {
	return c.AgentRegistry.Get(name)
}

// GetLLMProvider retrieves an LLM provider configuration by name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// PrivacyDefault returns the configured starting privacy mode, downgrading
// unknown values to LOCAL.
func (c *Config) PrivacyDefault() (PrivacyMode, bool) {
	if c.Defaults == nil || c.Defaults.PrivacyMode == "" {
		return PrivacyModeLocal, true
	}
	return ParsePrivacyMode(c.Defaults.PrivacyMode)
}
