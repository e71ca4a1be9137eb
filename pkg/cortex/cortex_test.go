package cortex

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for simulated-time tests.
type memStore struct {
	items map[string]*Item
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]*Item)}
}

func (s *memStore) InsertItem(_ context.Context, item *Item) error {
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *memStore) UpdateItem(_ context.Context, item *Item) error {
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *memStore) DeleteItem(_ context.Context, id string) error {
	delete(s.items, id)
	return nil
}

func (s *memStore) ItemsByLayer(_ context.Context, layer Layer) ([]*Item, error) {
	var out []*Item
	for _, it := range s.items {
		if it.Layer == layer {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) SearchItems(_ context.Context, layer Layer, tokens []string, limit int) ([]*Item, error) {
	var out []*Item
	for _, it := range s.items {
		if it.Layer == layer && it.matches(tokens) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountItems(_ context.Context, layer Layer) (int, error) {
	n := 0
	for _, it := range s.items {
		if it.Layer == layer {
			n++
		}
	}
	return n, nil
}

func (s *memStore) EvictOverCapacity(_ context.Context, layer Layer, capacity int) (int, error) {
	return 0, nil
}

// fakeClock is an advanceable clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCortex(t *testing.T) (*Cortex, *memStore, *fakeClock) {
	t.Helper()
	store := newMemStore()
	clock := newFakeClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, clock.Now, nil, logger), store, clock
}

func TestQuickScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, score float64)
	}{
		{
			name:    "neutral content scores the seed",
			content: "some ordinary sentence here",
			check:   func(t *testing.T, s float64) { assert.InDelta(t, 5.0, s, 0.01) },
		},
		{
			name:    "importance markers raise",
			content: "remember this critical deadline",
			check:   func(t *testing.T, s float64) { assert.Greater(t, s, 6.0) },
		},
		{
			name:    "dismissive markers lower",
			content: "whatever, just curious, no reason",
			check:   func(t *testing.T, s float64) { assert.Less(t, s, 4.0) },
		},
		{
			name:    "long questions raise",
			content: strings.Repeat("context ", 30) + "what should I do?",
			check:   func(t *testing.T, s float64) { assert.Greater(t, s, 5.5) },
		},
		{
			name:    "clamped to ten",
			content: strings.Repeat("important critical urgent remember must never always ", 20),
			check:   func(t *testing.T, s float64) { assert.Equal(t, 10.0, s) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, QuickScore(tt.content))
		})
	}
}

func TestCapture_EntersFlash(t *testing.T) {
	c, _, _ := newTestCortex(t)

	item := c.Capture("my deploy password is rotating tomorrow", CaptureOptions{Topic: "ops"})

	assert.Equal(t, LayerFlash, item.Layer)
	assert.Equal(t, "ops", item.Topic)
	assert.NotEmpty(t, item.ID)
	assert.Contains(t, item.Keywords, "password")
	assert.Equal(t, 1, c.Stats(context.Background())[LayerFlash])
}

func TestCapture_EvictsLowestImportanceWhenFull(t *testing.T) {
	c, _, _ := newTestCortex(t)

	for i := 0; i < Capacity(LayerFlash); i++ {
		c.Capture("filler content", CaptureOptions{Importance: 4})
	}
	keeper := c.Capture("critical deadline", CaptureOptions{Importance: 9})
	c.Capture("one more", CaptureOptions{Importance: 4})

	assert.Equal(t, Capacity(LayerFlash), len(c.flash))
	found := false
	for _, it := range c.flash {
		if it.ID == keeper.ID {
			found = true
		}
	}
	assert.True(t, found, "highest-importance item must survive eviction")
}

func TestTick_FlashPromotionAndExpiry(t *testing.T) {
	c, _, clock := newTestCortex(t)

	important := c.Capture("critical production incident", CaptureOptions{Importance: 8})
	c.Capture("meh", CaptureOptions{Importance: 2})

	clock.Advance(31 * time.Second)
	report := c.Tick(context.Background())

	assert.Equal(t, 1, report.PromotedToWorking)
	assert.Equal(t, 1, report.Expired)
	require.Len(t, c.working, 1)
	assert.Equal(t, important.ID, c.working[0].ID)
	assert.Equal(t, LayerWorking, c.working[0].Layer)
}

func TestTick_AccessedFlashItemSurvives(t *testing.T) {
	c, _, clock := newTestCortex(t)

	c.Capture("the wifi code is hunter2", CaptureOptions{Importance: 2})
	c.Recall(context.Background(), "wifi code", 5)

	clock.Advance(31 * time.Second)
	report := c.Tick(context.Background())

	assert.Equal(t, 1, report.PromotedToWorking)
	assert.Equal(t, 0, report.Expired)
}

func TestTick_WorkingToShortTermPersists(t *testing.T) {
	c, store, clock := newTestCortex(t)

	c.Capture("remember my api deadline is friday", CaptureOptions{Importance: 8})
	clock.Advance(31 * time.Second)
	c.Tick(context.Background())
	require.Len(t, c.working, 1)

	report := c.Tick(context.Background())
	assert.Equal(t, 1, report.PromotedToShortTerm)
	assert.Empty(t, c.working)

	persisted, err := store.ItemsByLayer(context.Background(), LayerShortTerm)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, LayerShortTerm, persisted[0].Layer)
}

func TestTick_WorkingDecayExpires(t *testing.T) {
	c, _, clock := newTestCortex(t)

	c.Capture("mildly notable thing", CaptureOptions{Importance: 3.5})
	clock.Advance(31 * time.Second)
	c.Tick(context.Background())
	require.Len(t, c.working, 1)

	// strength = 3.5 * 0.5^2h < 1.0
	clock.Advance(2 * time.Hour)
	report := c.Tick(context.Background())

	assert.Empty(t, c.working)
	assert.Equal(t, 1, report.Expired)
}

func TestTick_HourlyConsolidationPromotesToLongTerm(t *testing.T) {
	c, store, clock := newTestCortex(t)

	require.NoError(t, store.InsertItem(context.Background(), &Item{
		ID: "st-1", Content: "user's name is Dana", Layer: LayerShortTerm,
		Importance: 8, CreatedAt: clock.Now(), LastAccessed: clock.Now(), PromotedAt: clock.Now(),
	}))
	require.NoError(t, store.InsertItem(context.Background(), &Item{
		ID: "st-2", Content: "lunch was a sandwich", Layer: LayerShortTerm,
		Importance: 4, CreatedAt: clock.Now(), LastAccessed: clock.Now(), PromotedAt: clock.Now(),
	}))

	clock.Advance(61 * time.Minute)
	report := c.Tick(context.Background())

	require.Len(t, report.PromotedToLongTerm, 1)
	assert.Equal(t, "st-1", report.PromotedToLongTerm[0].ID)
	assert.Equal(t, LayerLongTerm, store.items["st-1"].Layer)
	assert.Equal(t, LayerShortTerm, store.items["st-2"].Layer)
}

func TestTick_StaleLongTermArchivesTruncated(t *testing.T) {
	c, store, clock := newTestCortex(t)

	long := strings.Repeat("x", 400)
	require.NoError(t, store.InsertItem(context.Background(), &Item{
		ID: "lt-1", Content: long, Layer: LayerLongTerm,
		Importance: 3, CreatedAt: clock.Now(), LastAccessed: clock.Now(), PromotedAt: clock.Now(),
	}))

	clock.Advance(366 * 24 * time.Hour)
	report := c.Tick(context.Background())

	assert.Equal(t, 1, report.Archived)
	got := store.items["lt-1"]
	assert.Equal(t, LayerArchive, got.Layer)
	assert.Len(t, got.Content, archiveContentLimit)
}

func TestRecall_RanksAndBumpsAccess(t *testing.T) {
	c, store, clock := newTestCortex(t)

	c.Capture("the deploy pipeline uses argo", CaptureOptions{Importance: 6})
	require.NoError(t, store.InsertItem(context.Background(), &Item{
		ID: "lt-1", Content: "the deploy runbook lives in the wiki", Layer: LayerLongTerm,
		Importance: 9, CreatedAt: clock.Now().Add(-48 * time.Hour),
		LastAccessed: clock.Now().Add(-48 * time.Hour), PromotedAt: clock.Now(),
	}))

	hits := c.Recall(context.Background(), "deploy", 10)
	require.Len(t, hits, 2)

	// flash item: 6×1/1=6 beats stale long-term: 9×1/3=3.
	assert.Equal(t, LayerFlash, hits[0].Layer)
	assert.Equal(t, 1, hits[0].AccessCount)
	assert.Equal(t, 1, store.items["lt-1"].AccessCount, "persistent access bump is written back")
}

func TestRecall_NoMatch(t *testing.T) {
	c, _, _ := newTestCortex(t)
	c.Capture("unrelated content", CaptureOptions{})
	assert.Empty(t, c.Recall(context.Background(), "zebra", 10))
}

func TestStats_CountsAllLayers(t *testing.T) {
	c, store, _ := newTestCortex(t)

	c.Capture("a", CaptureOptions{})
	c.Capture("b", CaptureOptions{})
	require.NoError(t, store.InsertItem(context.Background(), &Item{ID: "x", Layer: LayerArchive}))

	stats := c.Stats(context.Background())
	assert.Equal(t, 2, stats[LayerFlash])
	assert.Equal(t, 0, stats[LayerWorking])
	assert.Equal(t, 1, stats[LayerArchive])
}
