package cortex

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thalamus-ai/thalamus/pkg/observe"
)

const (
	flashMaxAge    = 30 * time.Second
	workingMaxAge  = 30 * time.Minute
	archiveAfter   = 365 * 24 * time.Hour
	consolidateGap = time.Hour

	promoteWorkingImportance   = 3.0
	promoteShortTermImportance = 5.0
	promoteLongTermImportance  = 7.0
	workingMinStrength         = 1.0
	archiveMaxImportance       = 5.0
	archiveContentLimit        = 200
)

// Clock supplies the current time; tests inject a fake to simulate decay
// over hours and days.
type Clock func() time.Time

// Store persists the SHORT_TERM, LONG_TERM and ARCHIVE layers.
// *brain.Store implements it.
type Store interface {
	InsertItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id string) error
	ItemsByLayer(ctx context.Context, layer Layer) ([]*Item, error)
	SearchItems(ctx context.Context, layer Layer, tokens []string, limit int) ([]*Item, error)
	CountItems(ctx context.Context, layer Layer) (int, error)
	EvictOverCapacity(ctx context.Context, layer Layer, capacity int) (int, error)
}

// CaptureOptions carries optional hints for Capture.
type CaptureOptions struct {
	// Importance overrides the evaluator when > 0.
	Importance float64
	Topic      string
	Source     string
	Metadata   map[string]string
}

// TickReport summarizes one decay pass for the memory façade, which turns
// LONG_TERM promotions into permanent knowledge.
type TickReport struct {
	PromotedToWorking   int
	PromotedToShortTerm int
	PromotedToLongTerm  []*Item
	Archived            int
	Expired             int
}

// Cortex is the five-layer memory. FLASH and WORKING live in process
// memory; the rest go through the store. All methods are safe for
// concurrent use via the owning façade's serialization; Cortex itself is
// not locked.
type Cortex struct {
	store   Store
	clock   Clock
	logger  *slog.Logger
	metrics *observe.Metrics

	flash   []*Item
	working []*Item

	// recent context for deep scoring.
	recent []*Item

	lastConsolidated time.Time
}

// New creates a Cortex. A nil clock means wall time.
func New(store Store, clock Clock, metrics *observe.Metrics, logger *slog.Logger) *Cortex {
	if clock == nil {
		clock = time.Now
	}
	return &Cortex{
		store:            store,
		clock:            clock,
		logger:           logger,
		metrics:          metrics,
		lastConsolidated: clock(),
	}
}

// Capture scores content and pushes it into FLASH, evicting the
// lowest-importance item when the layer is full.
func (c *Cortex) Capture(content string, opts CaptureOptions) *Item {
	now := c.clock()

	importance := opts.Importance
	if importance <= 0 {
		importance = QuickScore(content)
	}

	item := &Item{
		ID:           uuid.NewString(),
		Content:      content,
		Layer:        LayerFlash,
		Importance:   clampImportance(importance),
		Confidence:   1.0,
		CreatedAt:    now,
		LastAccessed: now,
		PromotedAt:   now,
		Keywords:     extractKeywords(content),
		Topic:        opts.Topic,
		Source:       opts.Source,
		Metadata:     opts.Metadata,
	}
	item.Importance = DeepScore(item, c.recent)

	if len(c.flash) >= Capacity(LayerFlash) {
		c.evictFlash()
	}
	c.flash = append(c.flash, item)
	c.pushRecent(item)
	c.count(LayerFlash, 1)

	return item
}

// evictFlash removes the lowest-importance flash item, oldest as tiebreak.
func (c *Cortex) evictFlash() {
	if len(c.flash) == 0 {
		return
	}
	victim := 0
	for i, it := range c.flash {
		v := c.flash[victim]
		if it.Importance < v.Importance ||
			(it.Importance == v.Importance && it.CreatedAt.Before(v.CreatedAt)) {
			victim = i
		}
	}
	c.flash = append(c.flash[:victim], c.flash[victim+1:]...)
	c.count(LayerFlash, -1)
}

func (c *Cortex) pushRecent(item *Item) {
	c.recent = append(c.recent, item)
	if len(c.recent) > 5 {
		c.recent = c.recent[len(c.recent)-5:]
	}
}

// Tick runs one decay pass: working decay, flash promotion/expiry, and,
// at most hourly, consolidation of the persistent layers. Working runs
// before flash so a freshly promoted item waits a full pass in WORKING
// instead of cascading upward in one tick.
func (c *Cortex) Tick(ctx context.Context) *TickReport {
	now := c.clock()
	report := &TickReport{}

	c.tickWorking(ctx, now, report)
	c.tickFlash(now, report)

	if now.Sub(c.lastConsolidated) >= consolidateGap {
		c.consolidate(ctx, now, report)
		c.lastConsolidated = now
	}

	return report
}

func (c *Cortex) tickFlash(now time.Time, report *TickReport) {
	var keep []*Item
	for _, it := range c.flash {
		if now.Sub(it.CreatedAt) < flashMaxAge {
			keep = append(keep, it)
			continue
		}
		c.count(LayerFlash, -1)
		if it.Importance >= promoteWorkingImportance || it.AccessCount > 0 {
			it.Layer = LayerWorking
			it.PromotedAt = now
			if len(c.working) >= Capacity(LayerWorking) {
				c.evictWorking()
			}
			c.working = append(c.working, it)
			c.count(LayerWorking, 1)
			report.PromotedToWorking++
		} else {
			report.Expired++
		}
	}
	c.flash = keep
}

func (c *Cortex) evictWorking() {
	if len(c.working) == 0 {
		return
	}
	victim := 0
	for i, it := range c.working {
		v := c.working[victim]
		if it.Importance < v.Importance ||
			(it.Importance == v.Importance && it.CreatedAt.Before(v.CreatedAt)) {
			victim = i
		}
	}
	c.working = append(c.working[:victim], c.working[victim+1:]...)
	c.count(LayerWorking, -1)
}

func (c *Cortex) tickWorking(ctx context.Context, now time.Time, report *TickReport) {
	var keep []*Item
	for _, it := range c.working {
		hours := now.Sub(it.PromotedAt).Hours()
		strength := it.Importance * math.Pow(0.5, hours)

		switch {
		case it.Importance >= promoteShortTermImportance || it.AccessCount > 2:
			it.Layer = LayerShortTerm
			it.PromotedAt = now
			if err := c.store.InsertItem(ctx, it); err != nil {
				c.logger.Warn("short-term persist failed", "item_id", it.ID, "error", err)
				keep = append(keep, it)
				continue
			}
			c.count(LayerWorking, -1)
			c.count(LayerShortTerm, 1)
			report.PromotedToShortTerm++
		case strength < workingMinStrength || now.Sub(it.CreatedAt) > workingMaxAge:
			c.count(LayerWorking, -1)
			report.Expired++
		default:
			keep = append(keep, it)
		}
	}
	c.working = keep

	if _, err := c.store.EvictOverCapacity(ctx, LayerShortTerm, Capacity(LayerShortTerm)); err != nil {
		c.logger.Warn("short-term eviction failed", "error", err)
	}
}

// consolidate promotes qualified SHORT_TERM items to LONG_TERM and pushes
// stale LONG_TERM items into the ARCHIVE with truncated content.
func (c *Cortex) consolidate(ctx context.Context, now time.Time, report *TickReport) {
	shortTerm, err := c.store.ItemsByLayer(ctx, LayerShortTerm)
	if err != nil {
		c.logger.Warn("consolidation read failed", "layer", LayerShortTerm, "error", err)
		return
	}
	for _, it := range shortTerm {
		if it.Importance >= promoteLongTermImportance || it.AccessCount > 5 {
			it.Layer = LayerLongTerm
			it.PromotedAt = now
			if err := c.store.UpdateItem(ctx, it); err != nil {
				c.logger.Warn("long-term promotion failed", "item_id", it.ID, "error", err)
				continue
			}
			c.count(LayerShortTerm, -1)
			c.count(LayerLongTerm, 1)
			report.PromotedToLongTerm = append(report.PromotedToLongTerm, it)
		}
	}

	longTerm, err := c.store.ItemsByLayer(ctx, LayerLongTerm)
	if err != nil {
		c.logger.Warn("consolidation read failed", "layer", LayerLongTerm, "error", err)
		return
	}
	for _, it := range longTerm {
		if now.Sub(it.LastAccessed) > archiveAfter && it.Importance < archiveMaxImportance {
			it.Layer = LayerArchive
			if len(it.Content) > archiveContentLimit {
				it.Content = it.Content[:archiveContentLimit]
			}
			if err := c.store.UpdateItem(ctx, it); err != nil {
				c.logger.Warn("archival failed", "item_id", it.ID, "error", err)
				continue
			}
			c.count(LayerLongTerm, -1)
			c.count(LayerArchive, 1)
			report.Archived++
		}
	}

	for _, layer := range []Layer{LayerLongTerm, LayerArchive} {
		if _, err := c.store.EvictOverCapacity(ctx, layer, Capacity(layer)); err != nil {
			c.logger.Warn("eviction failed", "layer", layer, "error", err)
		}
	}
}

// Recall returns the top matching items across all layers, most valuable
// first. Matched items get an access bump, which feeds later promotion.
func (c *Cortex) Recall(ctx context.Context, query string, limit int) []*Item {
	if limit <= 0 {
		limit = 10
	}
	now := c.clock()
	tokens := Tokenize(query)

	var hits []*Item
	for _, it := range append(append([]*Item{}, c.flash...), c.working...) {
		if it.matches(tokens) {
			hits = append(hits, it)
		}
	}

	for _, layer := range []Layer{LayerShortTerm, LayerLongTerm, LayerArchive} {
		items, err := c.store.SearchItems(ctx, layer, tokens, limit)
		if err != nil {
			c.logger.Warn("persistent recall failed", "layer", layer, "error", err)
			continue
		}
		hits = append(hits, items...)
	}

	for _, it := range hits {
		it.AccessCount++
		it.LastAccessed = now
		if it.Layer.Persistent() {
			if err := c.store.UpdateItem(ctx, it); err != nil {
				c.logger.Warn("access bump failed", "item_id", it.ID, "error", err)
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].recallScore(now) > hits[j].recallScore(now)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Stats returns the item count per layer.
func (c *Cortex) Stats(ctx context.Context) map[Layer]int {
	stats := map[Layer]int{
		LayerFlash:   len(c.flash),
		LayerWorking: len(c.working),
	}
	for _, layer := range []Layer{LayerShortTerm, LayerLongTerm, LayerArchive} {
		n, err := c.store.CountItems(ctx, layer)
		if err != nil {
			c.logger.Warn("layer count failed", "layer", layer, "error", err)
			continue
		}
		stats[layer] = n
	}
	return stats
}

func (c *Cortex) count(layer Layer, delta int64) {
	if c.metrics == nil {
		return
	}
	c.metrics.MemoryItems.Add(context.Background(), delta, metric.WithAttributes(
		attribute.String("layer", string(layer)),
	))
}
