package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "local backend URL from environment",
			input: "base_url: {{.OLLAMA_HOST}}",
			env:   map[string]string{"OLLAMA_HOST": "http://gpu-box:11434"},
			want:  "base_url: http://gpu-box:11434",
		},
		{
			name: "server block with host and port",
			input: `
system:
  server:
    host: {{.THALAMUS_HOST}}
    port: {{.THALAMUS_PORT}}
`,
			env: map[string]string{
				"THALAMUS_HOST": "0.0.0.0",
				"THALAMUS_PORT": "8000",
			},
			want: `
system:
  server:
    host: 0.0.0.0
    port: 8000
`,
		},
		{
			name:  "two references on one line",
			input: "base_url: {{.SCHEME}}://{{.OLLAMA_HOST}}",
			env:   map[string]string{"SCHEME": "http", "OLLAMA_HOST": "localhost:11434"},
			want:  "base_url: http://localhost:11434",
		},
		{
			name:  "unset variable expands to empty",
			input: "newsapi_key_env: {{.UNSET_KEY_NAME}}",
			env:   map[string]string{},
			want:  "newsapi_key_env: ",
		},
		{
			name:  "masking regex with dollar anchor untouched",
			input: `pattern: "(?i)(api[_-]?key)\\s*[:=]\\s*\\S+$"`,
			env:   map[string]string{},
			want:  `pattern: "(?i)(api[_-]?key)\\s*[:=]\\s*\\S+$"`,
		},
		{
			name:  "shell-style ${VAR} is literal",
			input: `pattern: "user_${USER_ID}_.*"`,
			env:   map[string]string{"USER_ID": "42"},
			want:  `pattern: "user_${USER_ID}_.*"`,
		},
		{
			name:  "content without references is unchanged",
			input: "polygon_key_env: POLYGON_API_KEY",
			env:   map[string]string{"POLYGON_API_KEY": "pk-123"},
			want:  "polygon_key_env: POLYGON_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

func TestExpandEnv_MalformedTemplatePassesThrough(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-leaked")

	inputs := []string{
		"api_key_env: {{.ANTHROPIC_API_KEY",
		"api_key_env: }}.ANTHROPIC_API_KEY{{",
		"api_key_env: {{}}",
	}
	for _, input := range inputs {
		got := string(ExpandEnv([]byte(input)))
		assert.Equal(t, input, got)
		assert.NotContains(t, got, "sk-leaked", "broken syntax must not leak values")
	}
}

// A reference left unexpanded because of a template error still reaches
// the YAML parser, which reports the real position.
func TestExpandEnv_UnparsedContentStillReachesYAML(t *testing.T) {
	input := `
llm_providers:
  local:
    base_url: "{{.OLLAMA_HOST"
`
	expanded := ExpandEnv([]byte(input))

	var out map[string]any
	require.NoError(t, yaml.Unmarshal(expanded, &out))
	assert.Contains(t, out, "llm_providers")
}
