package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"what's the weather in Boston?", "Boston"},
		{"forecast for New York City tomorrow", "New York City"},
		{"temperature at St. Louis right now", "St. Louis"},
		{"weather in San Francisco", "San Francisco"},
		{"is it raining?", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLocation(tt.query))
		})
	}
}

func weatherFixture(t *testing.T, geocodeCalls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/geo/1.0/direct":
			if geocodeCalls != nil {
				geocodeCalls.Add(1)
			}
			fmt.Fprint(w, `[{"name":"Boston","lat":42.36,"lon":-71.06}]`)
		case "/data/2.5/weather":
			assert.Equal(t, "imperial", r.URL.Query().Get("units"))
			fmt.Fprint(w, `{"weather":[{"description":"light rain"}],"main":{"temp":58.3,"feels_like":56.1,"humidity":81},"wind":{"speed":12.4}}`)
		case "/data/2.5/forecast":
			fmt.Fprint(w, `{"list":[
				{"dt_txt":"2026-08-26 12:00:00","main":{"temp":63.0},"weather":[{"description":"clear sky"}]},
				{"dt_txt":"2026-08-26 15:00:00","main":{"temp":65.0},"weather":[{"description":"clear sky"}]},
				{"dt_txt":"2026-08-27 12:00:00","main":{"temp":70.2},"weather":[{"description":"scattered clouds"}]}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestWeatherProvider_Current(t *testing.T) {
	srv := weatherFixture(t, nil)
	defer srv.Close()

	p := NewWeatherProvider("key", time.Second)
	p.baseURL = srv.URL

	hit, blob, err := p.Lookup(context.Background(), "what's the weather in Boston?")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "Boston: light rain, 58°F (feels like 56°F)")
	assert.Contains(t, blob, "humidity 81%")
	assert.NotContains(t, blob, "Forecast:")
}

func TestWeatherProvider_Forecast(t *testing.T) {
	srv := weatherFixture(t, nil)
	defer srv.Close()

	p := NewWeatherProvider("key", time.Second)
	p.baseURL = srv.URL

	hit, blob, err := p.Lookup(context.Background(), "forecast for Boston this week")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "Forecast:")
	assert.Contains(t, blob, "2026-08-26: clear sky, 63°F")
	assert.Contains(t, blob, "2026-08-27: scattered clouds, 70°F")
}

func TestWeatherProvider_GeocodeCached(t *testing.T) {
	var geocodeCalls atomic.Int64
	srv := weatherFixture(t, &geocodeCalls)
	defer srv.Close()

	p := NewWeatherProvider("key", time.Second)
	p.baseURL = srv.URL

	for i := 0; i < 3; i++ {
		_, _, err := p.Lookup(context.Background(), "weather in Boston")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), geocodeCalls.Load())
}

func TestWeatherProvider_NoLocation(t *testing.T) {
	p := NewWeatherProvider("key", time.Second)
	hit, _, err := p.Lookup(context.Background(), "is it raining?")
	assert.NoError(t, err)
	assert.False(t, hit)
}
