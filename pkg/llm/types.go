// Package llm defines the uniform model-client interface and its
// any-llm-go-backed implementation.
//
// Every backend, the local runtime and each cloud provider alike, sits behind
// the same [Client] interface. The orchestrator never talks to a provider
// SDK directly; this is the single polymorphic seam of the system.
package llm

import (
	"context"
	"errors"
)

// Kind distinguishes local runtimes from cloud APIs.
type Kind string

const (
	// KindLocal runs on the same host; no data leaves the machine.
	KindLocal Kind = "local"
	// KindCloud sends prompts to an external API.
	KindCloud Kind = "cloud"
)

// Privacy describes what a backend needs before it may see a prompt.
type Privacy string

const (
	// PrivacyFull means prompts never leave the host.
	PrivacyFull Privacy = "full"
	// PrivacyRequiresApproval means the privacy controller must approve the
	// provider for the current session before any call.
	PrivacyRequiresApproval Privacy = "requires_approval"
)

// Message is one turn of prior conversation context supplied to a backend.
// Role is one of "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a backend needs to produce a response.
type Request struct {
	// Prompt is the user text that drives the response.
	Prompt string

	// System is the system prompt. The backend wraps it in whatever
	// role scaffolding the underlying provider requires; its content is
	// decided by the adaptive communication layer, not here.
	System string

	// Context is the ordered prior conversation, oldest first.
	Context []Message

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxTokens overrides the provider default completion cap when non-nil.
	MaxTokens *int
}

// Status is a backend's self-description for the API surface.
type Status struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Kind     Kind    `json:"kind"`
	Privacy  Privacy `json:"privacy"`
}

// ErrEmptyCompletion is returned when a backend answers without content.
var ErrEmptyCompletion = errors.New("backend returned an empty completion")

// ErrUnavailable is returned by Generate when the backend knows it cannot
// serve (missing credentials, failed reachability probe, auth failure
// earlier in the session).
var ErrUnavailable = errors.New("backend is not available")

// Client is the uniform interface over every model backend.
//
// Generate returns the model text or an error; it must never panic across
// the interface boundary. Implementations are safe for concurrent use.
type Client interface {
	// Name returns the registry name of the backend ("local", "claude", ...).
	Name() string

	// Generate sends the request and waits for the full response.
	Generate(ctx context.Context, req Request) (string, error)

	// Available reports whether the backend can currently serve requests.
	// Cheap: credential presence for cloud backends, a cached reachability
	// probe for local runtimes.
	Available(ctx context.Context) bool

	// Status describes the backend.
	Status() Status
}

// Streamer is the optional streaming extension of [Client].
//
// GenerateStream emits incremental text chunks on the first channel until
// generation finishes, then closes both channels. Errors occurring
// mid-stream arrive on the second channel before close.
type Streamer interface {
	GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error, error)
}
