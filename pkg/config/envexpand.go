package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes {{.VAR}} template references in raw YAML with
// environment values before parsing. Template syntax is used instead of
// $VAR because the masking pattern groups are full of literal dollar
// signs (regex anchors, `price\$[0-9]+`) that must survive loading
// untouched.
//
// Unset variables expand to the empty string; the validator flags
// required fields left empty. Malformed template syntax returns the
// input unchanged so the YAML parser reports the error in place.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("yaml").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, env); err != nil {
		return data
	}
	return out.Bytes()
}
