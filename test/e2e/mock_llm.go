package e2e

import (
	"context"
	"sync"

	"github.com/thalamus-ai/thalamus/pkg/llm"
)

// scriptReply is one scripted backend answer.
type scriptReply struct {
	text string
	err  error
}

// ScriptedBackend implements llm.Client with a queue of scripted replies.
// When the queue is exhausted it keeps returning the default text, so
// repeat-heavy scenarios do not need one entry per call.
type ScriptedBackend struct {
	name        string
	kind        llm.Kind
	defaultText string

	mu        sync.Mutex
	queue     []scriptReply
	requests  []llm.Request
	available bool
}

// NewScriptedBackend creates an available backend answering defaultText.
func NewScriptedBackend(name string, kind llm.Kind, defaultText string) *ScriptedBackend {
	return &ScriptedBackend{name: name, kind: kind, defaultText: defaultText, available: true}
}

// Script queues replies returned in order before the default text.
func (b *ScriptedBackend) Script(texts ...string) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range texts {
		b.queue = append(b.queue, scriptReply{text: t})
	}
	return b
}

// FailNext queues one failing generate.
func (b *ScriptedBackend) FailNext(err error) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, scriptReply{err: err})
	return b
}

// SetAvailable flips the backend's availability probe.
func (b *ScriptedBackend) SetAvailable(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available = v
}

// Requests returns a copy of every generate request seen so far.
func (b *ScriptedBackend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Request(nil), b.requests...)
}

// Calls returns how many generates the backend served.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *ScriptedBackend) Name() string { return b.name }

func (b *ScriptedBackend) Generate(_ context.Context, req llm.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)

	if len(b.queue) > 0 {
		reply := b.queue[0]
		b.queue = b.queue[1:]
		return reply.text, reply.err
	}
	return b.defaultText, nil
}

func (b *ScriptedBackend) Available(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

func (b *ScriptedBackend) Status() llm.Status {
	privacy := llm.PrivacyFull
	if b.kind == llm.KindCloud {
		privacy = llm.PrivacyRequiresApproval
	}
	return llm.Status{Provider: b.name, Model: "scripted", Kind: b.kind, Privacy: privacy}
}
