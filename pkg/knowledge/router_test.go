package knowledge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubProvider struct {
	name      string
	available bool
	relevant  bool
	hit       bool
	blob      string
	err       error
	calls     int
}

func (s *stubProvider) Name() string          { return s.name }
func (s *stubProvider) Available() bool       { return s.available }
func (s *stubProvider) Relevant(string) bool  { return s.relevant }
func (s *stubProvider) Lookup(context.Context, string) (bool, string, error) {
	s.calls++
	return s.hit, s.blob, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(specialized []Provider, encyclopedia, web Provider) *Router {
	return newRouter(specialized, encyclopedia, web, time.Second, nil, testLogger())
}

func TestRouter_CombinesSpecializedHits(t *testing.T) {
	stocks := &stubProvider{name: "stocks", available: true, relevant: true, hit: true, blob: "AAPL: $210.50"}
	weather := &stubProvider{name: "weather", available: true, relevant: true, hit: true, blob: "Boston: 58°F"}
	news := &stubProvider{name: "news", available: true, relevant: false}
	enc := &stubProvider{name: "encyclopedia", available: true, relevant: true, hit: true, blob: "should not run"}

	r := testRouter([]Provider{stocks, weather, news}, enc, nil)
	blob := r.Lookup(context.Background(), "apple stock and boston weather")

	assert.Contains(t, blob, "AAPL: $210.50")
	assert.Contains(t, blob, "Boston: 58°F")
	assert.NotContains(t, blob, "should not run", "encyclopedia only runs when nothing else hit")
	assert.Equal(t, 0, news.calls, "irrelevant providers are not looked up")
}

func TestRouter_EncyclopediaFallback(t *testing.T) {
	stocks := &stubProvider{name: "stocks", available: true, relevant: false}
	enc := &stubProvider{name: "encyclopedia", available: true, relevant: true, hit: true, blob: "Ada Lovelace: mathematician"}
	web := &stubProvider{name: "web", available: true, relevant: true, hit: true, blob: "web result"}

	r := testRouter([]Provider{stocks}, enc, web)
	blob := r.Lookup(context.Background(), "who is Ada Lovelace?")

	assert.Equal(t, "Ada Lovelace: mathematician", blob)
	assert.Equal(t, 0, web.calls, "web does not run once the encyclopedia hit")
}

func TestRouter_WebGatedByNeedsLookup(t *testing.T) {
	web := &stubProvider{name: "web", available: true, relevant: true, hit: true, blob: "web result"}
	r := testRouter(nil, &stubProvider{name: "encyclopedia"}, web)

	assert.Empty(t, r.Lookup(context.Background(), "write a poem about rust"))
	assert.Equal(t, 0, web.calls)

	blob := r.Lookup(context.Background(), "what's the latest on the trade talks")
	assert.Equal(t, "web result", blob)
	assert.Equal(t, 1, web.calls)
}

func TestRouter_ErrorsAreSwallowed(t *testing.T) {
	failing := &stubProvider{name: "stocks", available: true, relevant: true, err: errors.New("upstream 500")}
	working := &stubProvider{name: "weather", available: true, relevant: true, hit: true, blob: "Boston: 58°F"}

	r := testRouter([]Provider{failing, working}, nil, nil)
	blob := r.Lookup(context.Background(), "q")

	assert.Equal(t, "Boston: 58°F", blob)

	stats := r.Stats()
	assert.Equal(t, 1, stats["stocks"].Errors)
	assert.Equal(t, 1, stats["weather"].Hits)
}

func TestRouter_UnavailableSkipped(t *testing.T) {
	p := &stubProvider{name: "stocks", available: false, relevant: true, hit: true, blob: "x"}
	r := testRouter([]Provider{p}, nil, nil)

	assert.Empty(t, r.Lookup(context.Background(), "q"))
	assert.Equal(t, 0, p.calls)
}

func TestRouter_WebLookup(t *testing.T) {
	web := &stubProvider{name: "web", available: true, relevant: true, hit: true, blob: "web result"}
	r := testRouter(nil, nil, web)

	assert.Equal(t, "web result", r.WebLookup(context.Background(), "anything current"))
}

func TestRouter_Providers(t *testing.T) {
	r := testRouter(
		[]Provider{&stubProvider{name: "stocks", available: true}},
		&stubProvider{name: "encyclopedia", available: true},
		&stubProvider{name: "web", available: false},
	)

	got := r.Providers()
	assert.True(t, got["stocks"])
	assert.True(t, got["encyclopedia"])
	assert.False(t, got["web"])
}
