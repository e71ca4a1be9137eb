package config

import "time"

// KnowledgeConfig contains knowledge-provider credentials and limits.
// Providers whose key env resolves empty report themselves unavailable and
// are skipped by the router.
type KnowledgeConfig struct {
	// LookupTimeout bounds a single provider lookup.
	LookupTimeout time.Duration `yaml:"lookup_timeout"`

	// Credential environment variable names, overridable for deployments
	// that manage secrets under different names.
	PolygonKeyEnv      string `yaml:"polygon_key_env,omitempty"`
	AlphaVantageKeyEnv string `yaml:"alpha_vantage_key_env,omitempty"`
	OpenWeatherKeyEnv  string `yaml:"open_weather_key_env,omitempty"`
	NewsAPIKeyEnv      string `yaml:"newsapi_key_env,omitempty"`
	NVDKeyEnv          string `yaml:"nvd_key_env,omitempty"`
	GitHubTokenEnv     string `yaml:"github_token_env,omitempty"`
}

// DefaultKnowledgeConfig returns the built-in knowledge-provider defaults.
func DefaultKnowledgeConfig() *KnowledgeConfig {
	return &KnowledgeConfig{
		LookupTimeout:      10 * time.Second,
		PolygonKeyEnv:      "POLYGON_API_KEY",
		AlphaVantageKeyEnv: "ALPHA_VANTAGE_API_KEY",
		OpenWeatherKeyEnv:  "OPEN_WEATHER_KEY",
		NewsAPIKeyEnv:      "NEWSAPI_KEY",
		NVDKeyEnv:          "NVD_API_KEY",
		GitHubTokenEnv:     "GITHUB_TOKEN",
	}
}
