package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ThalamusYAMLConfig represents the complete thalamus.yaml file structure
type ThalamusYAMLConfig struct {
	System   *SystemYAMLConfig      `yaml:"system"`
	Agents   map[string]AgentConfig `yaml:"agents"`
	Defaults *Defaults              `yaml:"defaults"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	Server    *ServerYAMLConfig    `yaml:"server"`
	Memory    *MemoryYAMLConfig    `yaml:"memory"`
	Knowledge *KnowledgeYAMLConfig `yaml:"knowledge"`
}

// ServerYAMLConfig holds listener settings from YAML.
// Durations are strings ("30s") parsed during resolution.
type ServerYAMLConfig struct {
	Host             string   `yaml:"host,omitempty"`
	Port             int      `yaml:"port,omitempty"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
	MaxInflight      int      `yaml:"max_inflight,omitempty"`
	GzipMinBytes     int      `yaml:"gzip_min_bytes,omitempty"`
	ShutdownTimeout  string   `yaml:"shutdown_timeout,omitempty"`
}

// MemoryYAMLConfig holds memory settings from YAML.
type MemoryYAMLConfig struct {
	DatabasePath              string `yaml:"database_path,omitempty"`
	TickInterval              string `yaml:"tick_interval,omitempty"`
	SyncInterval              string `yaml:"sync_interval,omitempty"`
	ConsolidateInterval       string `yaml:"consolidate_interval,omitempty"`
	ConversationRetentionDays int    `yaml:"conversation_retention_days,omitempty"`
}

// KnowledgeYAMLConfig holds knowledge-provider settings from YAML.
type KnowledgeYAMLConfig struct {
	LookupTimeout      string `yaml:"lookup_timeout,omitempty"`
	PolygonKeyEnv      string `yaml:"polygon_key_env,omitempty"`
	AlphaVantageKeyEnv string `yaml:"alpha_vantage_key_env,omitempty"`
	OpenWeatherKeyEnv  string `yaml:"open_weather_key_env,omitempty"`
	NewsAPIKeyEnv      string `yaml:"newsapi_key_env,omitempty"`
	NVDKeyEnv          string `yaml:"nvd_key_env,omitempty"`
	GitHubTokenEnv     string `yaml:"github_token_env,omitempty"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir (missing files fall back to built-ins)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Build in-memory registries
//  6. Apply default values and environment overrides
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"agents", stats.Agents,
		"llm_providers", stats.LLMProviders,
		"privacy_mode", cfg.Defaults.PrivacyMode)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load thalamus.yaml (agents, defaults, system settings)
	thalamusConfig, err := loader.loadThalamusYAML()
	if err != nil {
		return nil, NewLoadError("thalamus.yaml", err)
	}

	// 2. Load llm-providers.yaml
	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined components (user overrides built-in)
	agents := mergeAgents(builtin.Agents, thalamusConfig.Agents)
	llmProvidersMerged := mergeLLMProviders(builtin.LLMProviders, llmProviders)

	// 5. Build registries
	agentRegistry := NewAgentRegistry(agents)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	// 6. Resolve defaults (YAML overrides built-in)
	defaults := resolveDefaults(thalamusConfig.Defaults, builtin)

	serverCfg, err := resolveServerConfig(thalamusConfig.System)
	if err != nil {
		return nil, err
	}
	memoryCfg, err := resolveMemoryConfig(thalamusConfig.System)
	if err != nil {
		return nil, err
	}
	knowledgeCfg, err := resolveKnowledgeConfig(thalamusConfig.System)
	if err != nil {
		return nil, err
	}

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Server:              serverCfg,
		Memory:              memoryCfg,
		Knowledge:           knowledgeCfg,
		AgentRegistry:       agentRegistry,
		LLMProviderRegistry: llmProviderRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Built-in defaults cover a fully zero-config start.
			slog.Warn("Configuration file not found, using built-in defaults", "file", path)
			return nil
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadThalamusYAML() (*ThalamusYAMLConfig, error) {
	var config ThalamusYAMLConfig

	// Initialize maps to avoid nil maps
	config.Agents = make(map[string]AgentConfig)

	if err := l.loadYAML("thalamus.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var config LLMProvidersYAMLConfig

	// Initialize map to avoid nil map
	config.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.LLMProviders, nil
}

// resolveDefaults merges YAML defaults over built-in values.
func resolveDefaults(yamlDefaults *Defaults, builtin *BuiltinConfig) *Defaults {
	defaults := yamlDefaults
	if defaults == nil {
		defaults = &Defaults{}
	}

	if defaults.PrivacyMode == "" {
		defaults.PrivacyMode = string(builtin.DefaultPrivacy)
	}
	if mode, ok := ParsePrivacyMode(defaults.PrivacyMode); !ok {
		slog.Warn("Unknown privacy mode, falling back to LOCAL", "value", defaults.PrivacyMode)
		defaults.PrivacyMode = string(mode)
	}
	if len(defaults.FallbackOrder) == 0 {
		defaults.FallbackOrder = append([]string(nil), builtin.FallbackOrder...)
	}
	if len(defaults.SynthesisOrder) == 0 {
		defaults.SynthesisOrder = append([]string(nil), builtin.SynthesisOrder...)
	}
	if defaults.PromptMasking == nil {
		masking := builtin.PromptMasking
		defaults.PromptMasking = &masking
	}
	if defaults.Consensus == nil {
		consensus := builtin.ConsensusDefault
		defaults.Consensus = &consensus
	}

	return defaults
}

// resolveServerConfig resolves listener configuration from system YAML,
// applying defaults and HOST/PORT environment overrides.
func resolveServerConfig(sys *SystemYAMLConfig) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if sys != nil && sys.Server != nil {
		s := sys.Server
		user := &ServerConfig{
			Host:             s.Host,
			Port:             s.Port,
			AllowedWSOrigins: s.AllowedWSOrigins,
			MaxInflight:      s.MaxInflight,
			GzipMinBytes:     s.GzipMinBytes,
		}
		if s.ShutdownTimeout != "" {
			d, err := time.ParseDuration(s.ShutdownTimeout)
			if err != nil {
				return nil, NewValidationError("server", "system.server", "shutdown_timeout", err)
			}
			user.ShutdownTimeout = d
		}
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
	}

	// Environment overrides win over both YAML and built-ins.
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, NewValidationError("server", "env", "PORT", err)
		}
		cfg.Port = p
	}

	return cfg, nil
}

// resolveMemoryConfig resolves memory configuration from system YAML,
// applying defaults and the THALAMUS_DB_PATH environment override.
func resolveMemoryConfig(sys *SystemYAMLConfig) (*MemoryConfig, error) {
	cfg := DefaultMemoryConfig()

	if sys != nil && sys.Memory != nil {
		m := sys.Memory
		if m.DatabasePath != "" {
			cfg.DatabasePath = m.DatabasePath
		}
		if m.ConversationRetentionDays > 0 {
			cfg.ConversationRetentionDays = m.ConversationRetentionDays
		}
		for _, f := range []struct {
			raw    string
			target *time.Duration
			field  string
		}{
			{m.TickInterval, &cfg.TickInterval, "tick_interval"},
			{m.SyncInterval, &cfg.SyncInterval, "sync_interval"},
			{m.ConsolidateInterval, &cfg.ConsolidateInterval, "consolidate_interval"},
		} {
			if f.raw == "" {
				continue
			}
			d, err := time.ParseDuration(f.raw)
			if err != nil {
				return nil, NewValidationError("memory", "system.memory", f.field, err)
			}
			*f.target = d
		}
	}

	if path := os.Getenv("THALAMUS_DB_PATH"); path != "" {
		cfg.DatabasePath = path
	}

	return cfg, nil
}

// resolveKnowledgeConfig resolves knowledge-provider configuration from
// system YAML, applying defaults.
func resolveKnowledgeConfig(sys *SystemYAMLConfig) (*KnowledgeConfig, error) {
	cfg := DefaultKnowledgeConfig()

	if sys == nil || sys.Knowledge == nil {
		return cfg, nil
	}

	k := sys.Knowledge
	if k.LookupTimeout != "" {
		d, err := time.ParseDuration(k.LookupTimeout)
		if err != nil {
			return nil, NewValidationError("knowledge", "system.knowledge", "lookup_timeout", err)
		}
		cfg.LookupTimeout = d
	}
	if k.PolygonKeyEnv != "" {
		cfg.PolygonKeyEnv = k.PolygonKeyEnv
	}
	if k.AlphaVantageKeyEnv != "" {
		cfg.AlphaVantageKeyEnv = k.AlphaVantageKeyEnv
	}
	if k.OpenWeatherKeyEnv != "" {
		cfg.OpenWeatherKeyEnv = k.OpenWeatherKeyEnv
	}
	if k.NewsAPIKeyEnv != "" {
		cfg.NewsAPIKeyEnv = k.NewsAPIKeyEnv
	}
	if k.NVDKeyEnv != "" {
		cfg.NVDKeyEnv = k.NVDKeyEnv
	}
	if k.GitHubTokenEnv != "" {
		cfg.GitHubTokenEnv = k.GitHubTokenEnv
	}

	return cfg, nil
}
