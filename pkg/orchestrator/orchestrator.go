// Package orchestrator routes each prompt through knowledge pre-lookup and
// then across the model backends, either as a consensus fan-out with
// synthesis or as a sequential fallback chain.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/knowledge"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/observe"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000

	synthesisTemperature = 0.3
	synthesisMaxTokens   = 1000

	// fanoutLimit bounds the consensus worker pool.
	fanoutLimit = 5

	breakerFailures = 3
	breakerTimeout  = 30 * time.Second
)

// ErrAllBackendsFailed is returned when no backend produced a response.
var ErrAllBackendsFailed = errors.New("orchestrator: all backends failed")

// Gate is the privacy controller seam.
type Gate interface {
	Mode() config.PrivacyMode
	CanUse(ctx context.Context, provider string) bool
}

// Masker scrubs cloud-bound prompt text.
type Masker interface {
	Enabled() bool
	MaskOutbound(text string) string
}

// Knowledge is the pre-lookup seam; *knowledge.Router satisfies it.
type Knowledge interface {
	LookupWithSources(ctx context.Context, query string) (string, []string)
	WebLookup(ctx context.Context, query string) string
	Stats() map[string]knowledge.ProviderStats
}

// Request is one generation job.
type Request struct {
	Prompt string
	// System is the adaptive-communication system prompt.
	System string
	// Context is the prior conversation, oldest first.
	Context []llm.Message
	// Temperature defaults to 0.7 when zero.
	Temperature float64
	// MaxTokens defaults to 2000 when zero.
	MaxTokens int
	// ForceCloud skips local backends in the fallback chain.
	ForceCloud bool
	// Consensus overrides the configured default when non-nil.
	Consensus *bool
}

// Result is a completed generation.
type Result struct {
	Text            string        `json:"text"`
	Provider        string        `json:"provider"`
	LookupProviders []string      `json:"lookup_providers,omitempty"`
	Consensus       bool          `json:"consensus"`
	Latency         time.Duration `json:"latency"`
}

// BackendStats counts one backend's outcomes.
type BackendStats struct {
	Requests  int `json:"requests"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// StatusReport is the orchestrator's introspection surface.
type StatusReport struct {
	Backends map[string]BackendStats           `json:"backends"`
	Lookups  map[string]knowledge.ProviderStats `json:"lookups"`
}

// Orchestrator owns the backend registry and the per-backend circuit
// breakers. Safe for concurrent use.
type Orchestrator struct {
	registry         *llm.Registry
	gate             Gate
	masker           Masker
	router           Knowledge
	synthesisOrder   []string
	consensusDefault bool
	metrics          *observe.Metrics
	logger           *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	stats    map[string]*BackendStats
}

// New wires the orchestrator. synthesisOrder names backends in synthesis
// preference; nil falls back to the built-in order.
func New(registry *llm.Registry, gate Gate, masker Masker, router Knowledge, synthesisOrder []string, consensusDefault bool, metrics *observe.Metrics, logger *slog.Logger) *Orchestrator {
	if len(synthesisOrder) == 0 {
		synthesisOrder = config.GetBuiltinConfig().SynthesisOrder
	}
	return &Orchestrator{
		registry:         registry,
		gate:             gate,
		masker:           masker,
		router:           router,
		synthesisOrder:   synthesisOrder,
		consensusDefault: consensusDefault,
		metrics:          metrics,
		logger:           logger,
		breakers:         make(map[string]*gobreaker.CircuitBreaker),
		stats:            make(map[string]*BackendStats),
	}
}

// Generate runs the full pipeline: pre-lookup, consensus or fallback
// generation, and a single uncertainty retry.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	var lookupProviders []string
	if o.router != nil {
		blob, sources := o.router.LookupWithSources(ctx, req.Prompt)
		if blob != "" {
			req.Context = append([]llm.Message{{Role: "system", Content: blob}}, req.Context...)
			lookupProviders = sources
		}
	}

	useConsensus := o.consensusDefault
	if req.Consensus != nil {
		useConsensus = *req.Consensus
	}

	eligible := o.eligibleBackends(ctx, req.ForceCloud)
	if len(eligible) == 0 {
		return nil, ErrAllBackendsFailed
	}

	var (
		text     string
		provider string
		ranCons  bool
	)
	if useConsensus && len(eligible) >= 2 {
		text, provider = o.consensus(ctx, req, eligible)
		ranCons = true
	} else {
		text, provider = o.fallback(ctx, req, eligible)
	}
	if text == "" {
		return nil, ErrAllBackendsFailed
	}

	// One retry when the draft admits to missing current data and no
	// pre-lookup fired.
	if knowledge.SoundsUncertain(text) && len(lookupProviders) == 0 && o.router != nil {
		if blob := o.router.WebLookup(ctx, req.Prompt); blob != "" {
			retry := req
			retry.Context = append([]llm.Message{{Role: "system", Content: blob}}, req.Context...)
			if t2, p2 := o.fallback(ctx, retry, eligible); t2 != "" {
				text, provider = t2, p2
				lookupProviders = []string{"web"}
			}
		}
	}

	return &Result{
		Text:            text,
		Provider:        provider,
		LookupProviders: lookupProviders,
		Consensus:       ranCons,
		Latency:         time.Since(start),
	}, nil
}

// eligibleBackends returns the registry order filtered to backends that
// are available and allowed by the privacy controller.
func (o *Orchestrator) eligibleBackends(ctx context.Context, forceCloud bool) []string {
	var out []string
	for _, name := range o.registry.Order() {
		client, ok := o.registry.Get(name)
		if !ok || !client.Available(ctx) {
			continue
		}
		local := client.Status().Kind == llm.KindLocal
		if forceCloud && local {
			continue
		}
		if !local && !o.gate.CanUse(ctx, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// fallback tries backends in order and returns the first non-empty
// response with its provider name.
func (o *Orchestrator) fallback(ctx context.Context, req Request, eligible []string) (string, string) {
	for _, name := range eligible {
		text, err := o.callBackend(ctx, name, req, req.Temperature, req.MaxTokens)
		if err != nil {
			continue
		}
		return text, name
	}
	return "", ""
}

// consensus fans the request out to every eligible backend and fuses the
// responses.
func (o *Orchestrator) consensus(ctx context.Context, req Request, eligible []string) (string, string) {
	var (
		mu        sync.Mutex
		responses = make(map[string]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutLimit)
	for _, name := range eligible {
		g.Go(func() error {
			text, err := o.callBackend(gctx, name, req, req.Temperature, req.MaxTokens)
			if err != nil {
				return nil // failures are counted, never fatal to the group
			}
			mu.Lock()
			responses[name] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	switch len(responses) {
	case 0:
		return "", ""
	case 1:
		for name, text := range responses {
			return text, name
		}
	}
	return o.synthesize(ctx, req.Prompt, responses, eligible)
}

// synthesize asks the preferred available backend to derive one answer
// from the collected responses, falling back to the longest response.
func (o *Orchestrator) synthesize(ctx context.Context, query string, responses map[string]string, eligible []string) (string, string) {
	prompt := synthesisPrompt(query, responses)

	for _, name := range o.synthesisOrder {
		if !contains(eligible, name) {
			continue
		}
		text, err := o.callBackend(ctx, name, Request{Prompt: prompt}, synthesisTemperature, synthesisMaxTokens)
		if err != nil {
			continue
		}
		return text, name + "+consensus"
	}
	return longestResponse(responses)
}

// synthesisPrompt lists each model's answer in name order so the meta
// prompt is deterministic for a given response set.
func synthesisPrompt(query string, responses map[string]string) string {
	names := make([]string, 0, len(responses))
	for name := range responses {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Multiple models answered the question below. Derive the single most accurate answer, resolving disagreements; do not mention the models.\n\n")
	b.WriteString("Question: " + query + "\n")
	for _, name := range names {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", name, responses[name])
	}
	return b.String()
}

func longestResponse(responses map[string]string) (string, string) {
	bestName, bestText := "", ""
	for name, text := range responses {
		if len(text) > len(bestText) || (len(text) == len(bestText) && name < bestName) {
			bestName, bestText = name, text
		}
	}
	return bestText, bestName
}

// callBackend runs one generate through the backend's circuit breaker,
// masking cloud-bound text in HYBRID mode and recording counters.
func (o *Orchestrator) callBackend(ctx context.Context, name string, req Request, temperature float64, maxTokens int) (string, error) {
	client, ok := o.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown backend %q", name)
	}

	lreq := llm.Request{
		Prompt:      req.Prompt,
		System:      req.System,
		Context:     req.Context,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if client.Status().Kind == llm.KindCloud && o.gate.Mode() == config.PrivacyModeHybrid &&
		o.masker != nil && o.masker.Enabled() {
		lreq.Prompt = o.masker.MaskOutbound(lreq.Prompt)
		lreq.System = o.masker.MaskOutbound(lreq.System)
		masked := make([]llm.Message, len(lreq.Context))
		for i, msg := range lreq.Context {
			masked[i] = llm.Message{Role: msg.Role, Content: o.masker.MaskOutbound(msg.Content)}
		}
		lreq.Context = masked
	}

	start := time.Now()
	out, err := o.breaker(name).Execute(func() (any, error) {
		return client.Generate(ctx, lreq)
	})
	o.record(ctx, name, time.Since(start), err)
	if err != nil {
		o.logger.Warn("backend generate failed", "backend", name, "error", err)
		return "", err
	}

	text, _ := out.(string)
	if text == "" {
		return "", llm.ErrEmptyCompletion
	}
	return text, nil
}

func (o *Orchestrator) breaker(name string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()

	cb, ok := o.breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailures
			},
		})
		o.breakers[name] = cb
	}
	return cb
}

func (o *Orchestrator) record(ctx context.Context, name string, elapsed time.Duration, err error) {
	o.mu.Lock()
	s, ok := o.stats[name]
	if !ok {
		s = &BackendStats{}
		o.stats[name] = s
	}
	s.Requests++
	if err != nil {
		s.Failures++
	} else {
		s.Successes++
	}
	o.mu.Unlock()

	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.BackendRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", name),
		attribute.String("status", status),
	))
	o.metrics.BackendDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("backend", name),
	))
}

// Status snapshots per-backend counters and per-provider lookup counters.
func (o *Orchestrator) Status() StatusReport {
	o.mu.Lock()
	backends := make(map[string]BackendStats, len(o.stats))
	for name, s := range o.stats {
		backends[name] = *s
	}
	o.mu.Unlock()

	report := StatusReport{Backends: backends}
	if o.router != nil {
		report.Lookups = o.router.Stats()
	}
	return report
}

// Backends exposes the registry for the API layer's health and privacy
// endpoints.
func (o *Orchestrator) Backends(ctx context.Context) []llm.BackendStatus {
	return o.registry.Statuses(ctx)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
