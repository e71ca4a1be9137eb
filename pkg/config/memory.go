package config

import "time"

// MemoryConfig contains tiered-memory and persistence configuration.
// Layer capacities, decay rates, and promotion thresholds are fixed by the
// memory model and are not configurable.
type MemoryConfig struct {
	// DatabasePath is the SQLite file location. Overridden by the
	// THALAMUS_DB_PATH environment variable. Created on first start.
	DatabasePath string `yaml:"database_path"`

	// TickInterval drives decay/promotion/eviction across memory layers.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SyncInterval drives the cortex→permanent-store sync and thunk
	// compression pass.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// ConsolidateInterval drives the full consolidation pass.
	ConsolidateInterval time.Duration `yaml:"consolidate_interval"`

	// ConversationRetentionDays is the age past which conversation rows are
	// summarized into daily archive entries during consolidation.
	ConversationRetentionDays int `yaml:"conversation_retention_days"`
}

// DefaultMemoryConfig returns the built-in memory defaults.
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		DatabasePath:              "./data/thalamus.db",
		TickInterval:              time.Minute,
		SyncInterval:              5 * time.Minute,
		ConsolidateInterval:       time.Hour,
		ConversationRetentionDays: 90,
	}
}
