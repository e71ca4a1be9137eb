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

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "company name",
			query: "how is apple doing lately",
			want:  []string{"AAPL"},
		},
		{
			name:  "fuzzy company name",
			query: "whats going on with microsft",
			want:  []string{"MSFT"},
		},
		{
			name:  "crypto rewrite",
			query: "bitcoin price please",
			want:  []string{"X:BTCUSD"},
		},
		{
			name:  "cashtag",
			query: "thoughts on $NVDA earnings",
			want:  []string{"NVDA"},
		},
		{
			name:  "bare uppercase with price verb",
			query: "what is AMD trading at",
			want:  []string{"AMD"},
		},
		{
			name:  "bare uppercase without price verb ignored",
			query: "I like AMD processors",
			want:  nil,
		},
		{
			name:  "stop words not tickers",
			query: "WHAT IS THE stock price",
			want:  nil,
		},
		{
			name:  "multiple sources deduped",
			query: "compare apple and $AAPL stock",
			want:  []string{"AAPL"},
		},
		{
			name:  "no tickers",
			query: "tell me a joke",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.query))
		})
	}
}

func TestStockProvider_Availability(t *testing.T) {
	assert.False(t, NewStockProvider("", "", time.Second).Available())
	assert.True(t, NewStockProvider("pk", "", time.Second).Available())
	assert.True(t, NewStockProvider("", "ak", time.Second).Available())
}

func TestStockProvider_PolygonQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/AAPL/prev", r.URL.Path)
		assert.Equal(t, "pk", r.URL.Query().Get("apiKey"))
		fmt.Fprint(w, `{"results":[{"c":210.50,"o":200.00}]}`)
	}))
	defer srv.Close()

	p := NewStockProvider("pk", "", time.Second)
	p.polygonBase = srv.URL

	hit, blob, err := p.Lookup(context.Background(), "apple stock price")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "AAPL: $210.50")
	assert.Contains(t, blob, "+5.25%")
	assert.Contains(t, blob, "up")
}

func TestStockProvider_AlphaVantageFallback(t *testing.T) {
	polygon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer polygon.Close()

	av := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "TSLA", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"Global Quote":{"05. price":"242.1300","10. change percent":"-1.2500%"}}`)
	}))
	defer av.Close()

	p := NewStockProvider("pk", "ak", time.Second)
	p.polygonBase = polygon.URL
	p.alphaVantageBase = av.URL

	hit, blob, err := p.Lookup(context.Background(), "$TSLA quote")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "TSLA: $242.13")
	assert.Contains(t, blob, "down")
}

func TestStockProvider_CryptoDisplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/X:BTCUSD/prev", r.URL.Path)
		fmt.Fprint(w, `{"results":[{"c":64000.00,"o":64000.00}]}`)
	}))
	defer srv.Close()

	p := NewStockProvider("pk", "", time.Second)
	p.polygonBase = srv.URL

	hit, blob, err := p.Lookup(context.Background(), "bitcoin price")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "BTC: $64000.00")
}

func TestStockProvider_NoTickerNoLookup(t *testing.T) {
	p := NewStockProvider("pk", "", time.Second)
	p.polygonBase = "http://127.0.0.1:0" // would fail if contacted

	hit, blob, err := p.Lookup(context.Background(), "tell me about cats")
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, blob)
}
