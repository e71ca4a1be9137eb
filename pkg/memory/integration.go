// Package memory glues the volatile cortex, the permanent brain store and
// the thunk compression engine into one capture/recall surface.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/cortex"
	"github.com/thalamus-ai/thalamus/pkg/observe"
	"github.com/thalamus-ai/thalamus/pkg/thunk"
)

const (
	// syncWindow bounds how many recent conversations one Sync pass
	// inspects for compressible topic groups.
	syncWindow = 50
	// minTopicGroup is the cluster size that justifies compression.
	minTopicGroup = 3
)

// CaptureOptions carries optional capture hints.
type CaptureOptions struct {
	// Importance overrides the evaluator when > 0.
	Importance float64
	Topic      string
	// Response, when present, also records a conversation turn.
	Response   string
	UserID     string
	ModelsUsed []string
}

// Hit is one recalled memory with its provenance.
type Hit struct {
	Source  string `json:"source"` // cortex | brain | ultrathunk
	Content string `json:"content"`
	Recency string `json:"recency"`
}

// Integration serializes all memory traffic through one mutex, keeping
// cortex layer moves and store writes coherent.
type Integration struct {
	mu         sync.Mutex
	cortex     *cortex.Cortex
	store      *brain.Store
	compressor *thunk.Compressor
	thunks     []*thunk.Thunk
	clock      func() time.Time
	metrics    *observe.Metrics
	logger     *slog.Logger
}

// New creates the façade and loads previously compressed thunks. A nil
// clock means wall time.
func New(ctx context.Context, cx *cortex.Cortex, store *brain.Store, compressor *thunk.Compressor, clock func() time.Time, metrics *observe.Metrics, logger *slog.Logger) (*Integration, error) {
	if clock == nil {
		clock = time.Now
	}
	thunks, err := store.Thunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load thunks: %w", err)
	}
	logger.Info("memory integration ready", "thunks", len(thunks))

	return &Integration{
		cortex:     cx,
		store:      store,
		compressor: compressor,
		thunks:     thunks,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Capture pushes text into the cortex flash layer, records the
// conversation turn when a response is present, runs a decay tick, and
// turns any long-term promotions into permanent knowledge.
func (m *Integration) Capture(ctx context.Context, text string, opts CaptureOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cortex.Capture(text, cortex.CaptureOptions{
		Importance: opts.Importance,
		Topic:      opts.Topic,
		Source:     "conversation",
	})

	if opts.Response != "" {
		var topics []string
		if opts.Topic != "" {
			topics = []string{opts.Topic}
		}
		if _, err := m.store.StoreConversation(ctx, brain.Turn{
			UserText:      text,
			AssistantText: opts.Response,
			Topics:        topics,
			Success:       true,
			UserID:        opts.UserID,
			ModelsUsed:    opts.ModelsUsed,
		}); err != nil {
			m.logger.Warn("conversation capture failed", "error", err)
		}
	}

	m.tickLocked(ctx)
}

// Tick runs a cortex decay pass; the maintenance loop calls it every
// minute.
func (m *Integration) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickLocked(ctx)
}

func (m *Integration) tickLocked(ctx context.Context) {
	report := m.cortex.Tick(ctx)
	for _, item := range report.PromotedToLongTerm {
		err := m.store.StoreKnowledge(ctx, "cortex_promoted", item.ID, item.Content, brain.KnowledgeOptions{
			Source:     "cortex",
			Importance: int(item.Importance),
			Confidence: item.Confidence,
		})
		if err != nil {
			m.logger.Warn("promotion to knowledge failed", "item_id", item.ID, "error", err)
		}
	}
	if len(report.PromotedToLongTerm) > 0 || report.Expired > 0 {
		m.logger.Debug("cortex tick",
			"to_working", report.PromotedToWorking,
			"to_short_term", report.PromotedToShortTerm,
			"to_long_term", len(report.PromotedToLongTerm),
			"expired", report.Expired)
	}
}

// Recall merges hits from the cortex, the permanent store, and matching
// thunks, deduplicated by content.
func (m *Integration) Recall(ctx context.Context, query string, limit int) []Hit {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	now := m.clock()
	seen := make(map[string]bool)
	var hits []Hit
	add := func(source, content string, when time.Time) {
		if content == "" || seen[content] {
			return
		}
		seen[content] = true
		hits = append(hits, Hit{Source: source, Content: content, Recency: recencyLabel(now, when)})
	}

	for _, t := range m.thunks {
		if t.Matches(query) {
			add("ultrathunk", t.Generate(now, nil), now)
			if err := m.store.SaveThunk(ctx, t); err != nil {
				m.logger.Warn("thunk fire-count persist failed", "thunk", t.Name, "error", err)
			}
		}
	}

	for _, item := range m.cortex.Recall(ctx, query, limit) {
		add("cortex", item.Content, item.LastAccessed)
	}

	facts, err := m.store.SearchKnowledge(ctx, query, limit)
	if err != nil {
		m.logger.Warn("knowledge recall failed", "error", err)
	}
	for _, f := range facts {
		add("brain", f.Value, f.LastAccessed)
	}
	turns, err := m.store.SearchConversations(ctx, query, limit, 0)
	if err != nil {
		m.logger.Warn("conversation recall failed", "error", err)
	}
	for _, t := range turns {
		add("brain", t.AssistantText, t.Timestamp)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Sync compresses recent recurring topics into thunks; the maintenance
// loop calls it every five minutes.
func (m *Integration) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns, err := m.store.ConversationContext(ctx, syncWindow)
	if err != nil {
		return fmt.Errorf("sync read: %w", err)
	}

	groups := make(map[string][]thunk.Exchange)
	for _, t := range turns {
		for _, topic := range t.Topics {
			if topic == "" {
				continue
			}
			groups[topic] = append(groups[topic], thunk.Exchange{
				Query:     t.UserText,
				Response:  t.AssistantText,
				Timestamp: t.Timestamp,
			})
		}
	}

	for topic, exchanges := range groups {
		if len(exchanges) < minTopicGroup || m.hasThunk(topic) {
			continue
		}
		th, err := m.compressor.CompressPattern(topic, exchanges)
		if err != nil {
			if !errors.Is(err, thunk.ErrTooFewSamples) && !errors.Is(err, thunk.ErrNoCompression) {
				m.logger.Warn("compression failed", "topic", topic, "error", err)
			}
			continue
		}

		if err := m.store.SaveThunk(ctx, th); err != nil {
			m.logger.Warn("thunk persist failed", "thunk", th.Name, "error", err)
			continue
		}
		if err := m.store.StoreKnowledge(ctx, "ultrathunk", th.Name, th.Template, brain.KnowledgeOptions{
			Source:     "compression",
			Confidence: th.Confidence,
		}); err != nil {
			m.logger.Warn("thunk knowledge persist failed", "thunk", th.Name, "error", err)
		}

		m.thunks = append(m.thunks, th)
		if m.metrics != nil {
			m.metrics.ThunksCreated.Add(ctx, 1, metric.WithAttributes(
				attribute.String("type", string(th.Type)),
			))
		}
		m.logger.Info("behavior compressed",
			"thunk", th.Name,
			"from", th.CreatedFromCount,
			"ratio", fmt.Sprintf("%.2f", th.CompressionRatio()))
	}
	return nil
}

func (m *Integration) hasThunk(name string) bool {
	for _, t := range m.thunks {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Consolidate runs the full maintenance pass: cortex tick plus permanent
// store consolidation, recorded as a pattern row.
func (m *Integration) Consolidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickLocked(ctx)
	if err := m.store.Consolidate(ctx); err != nil {
		return err
	}
	if err := m.store.RecordPattern(ctx, "consolidation", "memory consolidation pass", true); err != nil {
		m.logger.Warn("consolidation record failed", "error", err)
	}
	return nil
}

// Stats merges cortex layer counts with the permanent store's table
// counts.
func (m *Integration) Stats(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int)
	for layer, n := range m.cortex.Stats(ctx) {
		out["cortex_"+string(layer)] = n
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out["conversations"] = stats.Conversations
	out["knowledge"] = stats.Knowledge
	out["patterns"] = stats.Patterns
	out["skills"] = stats.Skills
	out["thunks"] = len(m.thunks)
	return out, nil
}

func recencyLabel(now, when time.Time) string {
	age := now.Sub(when)
	switch {
	case age < time.Hour:
		return "just now"
	case age < 24*time.Hour:
		return "today"
	case age < 7*24*time.Hour:
		return "this week"
	case age < 30*24*time.Hour:
		return "this month"
	default:
		return "long ago"
	}
}
