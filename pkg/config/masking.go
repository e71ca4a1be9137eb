package config

// MaskingPattern defines a regex-based masking pattern applied to outbound
// cloud prompts.
type MaskingPattern struct {
	// Pattern is the regular expression to match
	Pattern string `yaml:"pattern"`

	// Replacement is the masked replacement text
	Replacement string `yaml:"replacement"`

	// Description documents what the pattern catches
	Description string `yaml:"description,omitempty"`
}
