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

func TestExtractCVEs(t *testing.T) {
	assert.Equal(t, []string{"CVE-2024-3094"}, ExtractCVEs("details on cve-2024-3094 please"))
	assert.Equal(t,
		[]string{"CVE-2021-44228", "CVE-2023-4863"},
		ExtractCVEs("compare CVE-2021-44228 and CVE-2023-4863"))
	assert.Nil(t, ExtractCVEs("any new ransomware lately"))
}

func TestCyberProvider_Relevant(t *testing.T) {
	p := NewCyberProvider("", time.Second)
	assert.True(t, p.Relevant("what is CVE-2024-3094"))
	assert.True(t, p.Relevant("any actively exploited zero-day this week"))
	assert.False(t, p.Relevant("weather in Boston"))
}

func TestCyberProvider_CVEDetailWithKEVFlag(t *testing.T) {
	nvd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/json/cves/2.0", r.URL.Path)
		assert.Equal(t, "CVE-2021-44228", r.URL.Query().Get("cveId"))
		fmt.Fprint(w, `{"vulnerabilities":[{"cve":{
			"id":"CVE-2021-44228",
			"descriptions":[{"lang":"en","value":"Apache Log4j2 JNDI features allow remote code execution."}],
			"metrics":{"cvssMetricV31":[{"cvssData":{"baseScore":10.0,"baseSeverity":"CRITICAL"}}]}
		}}]}`)
	}))
	defer nvd.Close()

	kev := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"vulnerabilities":[
			{"cveID":"CVE-2021-44228","vulnerabilityName":"Log4Shell","dateAdded":"2021-12-10"}
		]}`)
	}))
	defer kev.Close()

	p := NewCyberProvider("", time.Second)
	p.nvdBase = nvd.URL
	p.kevBase = kev.URL

	hit, blob, err := p.Lookup(context.Background(), "is CVE-2021-44228 still a problem")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Contains(t, blob, "CVE-2021-44228: Apache Log4j2")
	assert.Contains(t, blob, "CVSS 10.0 CRITICAL")
	assert.Contains(t, blob, "[KNOWN EXPLOITED - CISA KEV]")
}

func TestCyberProvider_RecentKEVCached(t *testing.T) {
	var calls atomic.Int64
	kev := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"vulnerabilities":[
			{"cveID":"CVE-2024-0001","vulnerabilityName":"Old Bug","dateAdded":"2024-01-01"},
			{"cveID":"CVE-2026-1234","vulnerabilityName":"Fresh Bug","dateAdded":"2026-08-20"}
		]}`)
	}))
	defer kev.Close()

	p := NewCyberProvider("", time.Second)
	p.kevBase = kev.URL

	for i := 0; i < 3; i++ {
		hit, blob, err := p.Lookup(context.Background(), "any new ransomware exploits")
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Contains(t, blob, "CVE-2026-1234: Fresh Bug")
	}
	assert.Equal(t, int64(1), calls.Load(), "KEV catalog should be served from cache")
}

func TestCyberProvider_KeyedLimiterIsLooser(t *testing.T) {
	keyless := NewCyberProvider("", time.Second)
	keyed := NewCyberProvider("key", time.Second)
	assert.Less(t, float64(keyless.limiter.Limit()), float64(keyed.limiter.Limit()))
	assert.Equal(t, 5, keyless.limiter.Burst())
	assert.Equal(t, 50, keyed.limiter.Burst())
}
