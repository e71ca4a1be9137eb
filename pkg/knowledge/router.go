package knowledge

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/observe"
)

// ProviderStats tracks lookup outcomes for one provider.
type ProviderStats struct {
	Requests int `json:"requests"`
	Hits     int `json:"hits"`
	Errors   int `json:"errors"`
}

// Router runs queries through the specialized providers in a fixed order,
// concatenating every hit into one context blob. When no specialized
// provider matches it falls through to the encyclopedia, then, only for
// queries asking about the present, to generic web search.
//
// Lookup failures never fail the chat request: the blob just omits that
// provider's data.
type Router struct {
	specialized  []Provider
	encyclopedia Provider
	web          Provider
	timeout      time.Duration
	metrics      *observe.Metrics
	logger       *slog.Logger

	mu    sync.Mutex
	stats map[string]*ProviderStats
}

// NewRouter builds the full provider chain from configuration, reading
// credentials from the environment variables config names.
func NewRouter(cfg *config.KnowledgeConfig, metrics *observe.Metrics, logger *slog.Logger) *Router {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	polygonKey := os.Getenv(cfg.PolygonKeyEnv)
	alphaVantageKey := os.Getenv(cfg.AlphaVantageKeyEnv)

	specialized := []Provider{
		NewStockProvider(polygonKey, alphaVantageKey, timeout),
		NewWeatherProvider(os.Getenv(cfg.OpenWeatherKeyEnv), timeout),
		NewCyberProvider(os.Getenv(cfg.NVDKeyEnv), timeout),
		NewTechPulseProvider(timeout),
		NewNewsProvider(os.Getenv(cfg.NewsAPIKeyEnv), polygonKey, alphaVantageKey, timeout),
	}

	return newRouter(specialized,
		NewEncyclopediaProvider(timeout),
		NewWebProvider(timeout),
		timeout, metrics, logger)
}

// newRouter wires an explicit provider chain; tests use it to inject
// fixture-backed providers.
func newRouter(specialized []Provider, encyclopedia, web Provider, timeout time.Duration, metrics *observe.Metrics, logger *slog.Logger) *Router {
	return &Router{
		specialized:  specialized,
		encyclopedia: encyclopedia,
		web:          web,
		timeout:      timeout,
		metrics:      metrics,
		logger:       logger,
		stats:        make(map[string]*ProviderStats),
	}
}

// Lookup returns the combined context blob for a query, or "" when no
// provider had anything to contribute.
func (r *Router) Lookup(ctx context.Context, query string) string {
	blob, _ := r.LookupWithSources(ctx, query)
	return blob
}

// LookupWithSources is Lookup plus the names of the providers that
// contributed to the blob.
func (r *Router) LookupWithSources(ctx context.Context, query string) (string, []string) {
	var blobs, sources []string
	try := func(p Provider) {
		if p == nil {
			return
		}
		if blob := r.tryProvider(ctx, p, query); blob != "" {
			blobs = append(blobs, blob)
			sources = append(sources, p.Name())
		}
	}

	for _, p := range r.specialized {
		try(p)
	}
	if len(blobs) == 0 {
		try(r.encyclopedia)
	}
	if len(blobs) == 0 && NeedsLookup(query) {
		try(r.web)
	}

	return strings.Join(blobs, "\n\n"), sources
}

// WebLookup consults only the generic web provider. The orchestrator uses
// it for the uncertainty retry, where a draft response admitted to missing
// current data even though no specialized provider matched.
func (r *Router) WebLookup(ctx context.Context, query string) string {
	return r.tryProvider(ctx, r.web, query)
}

func (r *Router) tryProvider(ctx context.Context, p Provider, query string) string {
	if p == nil || !p.Available() || !p.Relevant(query) {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	hit, blob, err := p.Lookup(lookupCtx, query)

	r.record(p.Name(), hit, err)
	if r.metrics != nil {
		r.metrics.LookupRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", p.Name()),
			attribute.Bool("hit", hit),
		))
	}

	if err != nil {
		r.logger.Warn("knowledge lookup failed",
			"provider", p.Name(),
			"duration", time.Since(start),
			"error", err)
		return ""
	}
	if !hit {
		return ""
	}

	r.logger.Debug("knowledge lookup hit",
		"provider", p.Name(),
		"duration", time.Since(start),
		"blob_len", len(blob))
	return blob
}

func (r *Router) record(provider string, hit bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[provider]
	if !ok {
		s = &ProviderStats{}
		r.stats[provider] = s
	}
	s.Requests++
	if err != nil {
		s.Errors++
	} else if hit {
		s.Hits++
	}
}

// Stats returns a copy of per-provider lookup counters.
func (r *Router) Stats() map[string]ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ProviderStats, len(r.stats))
	for name, s := range r.stats {
		out[name] = *s
	}
	return out
}

// Providers lists the provider names in lookup order with availability,
// for the status endpoint.
func (r *Router) Providers() map[string]bool {
	all := append([]Provider{}, r.specialized...)
	all = append(all, r.encyclopedia, r.web)

	out := make(map[string]bool, len(all))
	for _, p := range all {
		if p != nil {
			out[p.Name()] = p.Available()
		}
	}
	return out
}
