package privacy

import (
	"log/slog"
	"regexp"

	"github.com/thalamus-ai/thalamus/pkg/config"
)

// CompiledPattern pairs a compiled regex with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// Masker applies data masking to prompts bound for cloud backends while the
// controller is in HYBRID mode. Created once at application startup.
// Thread-safe and stateless aside from compiled patterns.
//
// CLOUD mode skips masking (the user opted into full cloud processing);
// LOCAL mode sends nothing out, so there is nothing to mask.
type Masker struct {
	enabled  bool
	patterns []CompiledPattern
}

// NewMasker compiles the masking patterns of the configured group.
// Invalid patterns are logged and skipped.
func NewMasker(defaults *config.PromptMaskingDefaults) *Masker {
	m := &Masker{}
	if defaults == nil || !defaults.Enabled {
		return m
	}
	m.enabled = true

	builtin := config.GetBuiltinConfig()
	group, ok := builtin.PatternGroups[defaults.PatternGroup]
	if !ok {
		slog.Warn("Unknown masking pattern group, masking disabled", "group", defaults.PatternGroup)
		m.enabled = false
		return m
	}

	for _, name := range group {
		p, ok := builtin.MaskingPatterns[name]
		if !ok {
			slog.Warn("Masking pattern not found, skipping", "pattern", name)
			continue
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Warn("Invalid masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, CompiledPattern{
			Name:        name,
			Regex:       re,
			Replacement: p.Replacement,
		})
	}

	slog.Info("Prompt masker initialized",
		"pattern_group", defaults.PatternGroup,
		"compiled_patterns", len(m.patterns))

	return m
}

// Enabled reports whether any masking will occur.
func (m *Masker) Enabled() bool {
	return m.enabled && len(m.patterns) > 0
}

// MaskOutbound masks a prompt destined for a cloud backend.
// Returns the text unchanged when masking is disabled.
func (m *Masker) MaskOutbound(text string) string {
	if !m.Enabled() || text == "" {
		return text
	}
	masked := text
	for _, p := range m.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
