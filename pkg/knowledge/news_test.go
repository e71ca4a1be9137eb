package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNewsCategory(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"latest market news", "business"},
		{"any startup news today", "technology"},
		{"news about the vaccine rollout", "health"},
		{"what happened in the league match", "sports"},
		{"news from the space telescope", "science"},
		{"what's in the news", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyNewsCategory(tt.query))
		})
	}
}

func TestNewsProvider_PolygonTickerNewsFirst(t *testing.T) {
	polygon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/reference/news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
		fmt.Fprint(w, `{"results":[{"title":"Apple ships new chip","publisher":{"name":"Reuters"}}]}`)
	}))
	defer polygon.Close()

	p := NewNewsProvider("nk", "pk", "", time.Second)
	p.polygonBase = polygon.URL
	p.newsAPIBase = "http://127.0.0.1:0" // must not be contacted

	hit, blob, err := p.Lookup(context.Background(), "any stock news about apple?")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "Recent news for AAPL")
	assert.Contains(t, blob, "Apple ships new chip (Reuters)")
}

func TestNewsProvider_NewsAPIHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nk", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "general", r.URL.Query().Get("category"))
		fmt.Fprint(w, `{"articles":[{"title":"Big story","source":{"name":"AP"}}]}`)
	}))
	defer srv.Close()

	p := NewNewsProvider("nk", "", "", time.Second)
	p.newsAPIBase = srv.URL

	hit, blob, err := p.Lookup(context.Background(), "what's in the news today")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "Big story (AP)")
}

func TestNewsProvider_AlphaVantageSentimentFallback(t *testing.T) {
	newsAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer newsAPI.Close()

	av := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NEWS_SENTIMENT", r.URL.Query().Get("function"))
		fmt.Fprint(w, `{"feed":[{"title":"Markets rally","overall_sentiment_label":"Bullish"}]}`)
	}))
	defer av.Close()

	p := NewNewsProvider("nk", "", "ak", time.Second)
	p.newsAPIBase = newsAPI.URL
	p.alphaVantageBase = av.URL

	hit, blob, err := p.Lookup(context.Background(), "market news today")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "Markets rally [sentiment: Bullish]")
}
