package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	kevCacheTTL = time.Hour
	kevCacheKey = "catalog"

	maxCVELookup = 3
)

var (
	cveRe        = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)
	cyberTopicRe = regexp.MustCompile(`(?i)\b(cve|vulnerabilit(?:y|ies)|exploit(?:ed|s)?|zero[- ]day|ransomware|malware|patch(?:ed|es)?|security advisory|kev)\b`)
)

// CyberProvider answers vulnerability queries from NVD (CVE details) and
// the CISA Known Exploited Vulnerabilities catalog (cached 1h).
//
// NVD enforces strict rate limits: 5 requests per 30s without an API key,
// 50 per 30s with one. The limiter is sized accordingly at construction.
type CyberProvider struct {
	client   *http.Client
	nvdKey   string
	nvdBase  string
	kevBase  string
	limiter  *rate.Limiter
	kevCache *ttlCache
}

func NewCyberProvider(nvdKey string, timeout time.Duration) *CyberProvider {
	// Tokens per second derived from NVD's published per-30s windows.
	limit := rate.Limit(5.0 / 30.0)
	burst := 5
	if nvdKey != "" {
		limit = rate.Limit(50.0 / 30.0)
		burst = 50
	}
	return &CyberProvider{
		client:   &http.Client{Timeout: timeout},
		nvdKey:   nvdKey,
		nvdBase:  "https://services.nvd.nist.gov",
		kevBase:  "https://www.cisa.gov",
		limiter:  rate.NewLimiter(limit, burst),
		kevCache: newTTLCache(kevCacheTTL),
	}
}

// Name implements [Provider].
func (p *CyberProvider) Name() string { return "cyber" }

// Available implements [Provider]: NVD and the KEV catalog both work
// without credentials.
func (p *CyberProvider) Available() bool { return true }

// Relevant implements [Provider].
func (p *CyberProvider) Relevant(query string) bool {
	return cveRe.MatchString(query) || cyberTopicRe.MatchString(query)
}

// ExtractCVEs returns the normalized (uppercase) CVE IDs in the query.
func ExtractCVEs(query string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range cveRe.FindAllString(query, -1) {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Lookup implements [Provider]: per-CVE detail lines when the query names
// CVE IDs, otherwise the most recent KEV catalog entries.
func (p *CyberProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	ids := ExtractCVEs(query)
	if len(ids) == 0 {
		return p.recentKEV(ctx)
	}
	if len(ids) > maxCVELookup {
		ids = ids[:maxCVELookup]
	}

	kev, _ := p.kevIndex(ctx)

	var lines []string
	var lastErr error
	for _, id := range ids {
		line, err := p.cveDetail(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		if kev[id] {
			line += " [KNOWN EXPLOITED - CISA KEV]"
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return false, "", lastErr
	}
	return true, "Current vulnerability data:\n" + strings.Join(lines, "\n"), nil
}

type nvdResp struct {
	Vulnerabilities []struct {
		CVE struct {
			ID           string `json:"id"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
			Metrics struct {
				CvssMetricV31 []struct {
					CvssData struct {
						BaseScore    float64 `json:"baseScore"`
						BaseSeverity string  `json:"baseSeverity"`
					} `json:"cvssData"`
				} `json:"cvssMetricV31"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

func (p *CyberProvider) cveDetail(ctx context.Context, id string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/rest/json/cves/2.0?cveId=%s", p.nvdBase, url.QueryEscape(id))
	var headers map[string]string
	if p.nvdKey != "" {
		headers = map[string]string{"apiKey": p.nvdKey}
	}

	var resp nvdResp
	if err := fetchJSON(ctx, p.client, u, headers, &resp); err != nil {
		return "", err
	}
	if len(resp.Vulnerabilities) == 0 {
		return "", fmt.Errorf("no NVD record for %s", id)
	}

	cve := resp.Vulnerabilities[0].CVE
	desc := ""
	for _, d := range cve.Descriptions {
		if d.Lang == "en" {
			desc = d.Value
			break
		}
	}
	if len(desc) > 300 {
		desc = desc[:300] + "..."
	}

	line := fmt.Sprintf("%s: %s", cve.ID, desc)
	if len(cve.Metrics.CvssMetricV31) > 0 {
		data := cve.Metrics.CvssMetricV31[0].CvssData
		line += fmt.Sprintf(" (CVSS %.1f %s)", data.BaseScore, data.BaseSeverity)
	}
	return line, nil
}

type kevCatalog struct {
	Vulnerabilities []struct {
		CveID             string `json:"cveID"`
		VulnerabilityName string `json:"vulnerabilityName"`
		DateAdded         string `json:"dateAdded"`
	} `json:"vulnerabilities"`
}

func (p *CyberProvider) fetchKEV(ctx context.Context) (*kevCatalog, error) {
	if cached, ok := p.kevCache.get(kevCacheKey); ok {
		return cached.(*kevCatalog), nil
	}

	u := p.kevBase + "/sites/default/files/feeds/known_exploited_vulnerabilities.json"
	var catalog kevCatalog
	if err := fetchJSON(ctx, p.client, u, nil, &catalog); err != nil {
		return nil, err
	}

	p.kevCache.set(kevCacheKey, &catalog)
	return &catalog, nil
}

// kevIndex returns a membership set of KEV CVE IDs.
func (p *CyberProvider) kevIndex(ctx context.Context) (map[string]bool, error) {
	catalog, err := p.fetchKEV(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]bool, len(catalog.Vulnerabilities))
	for _, v := range catalog.Vulnerabilities {
		idx[strings.ToUpper(v.CveID)] = true
	}
	return idx, nil
}

// recentKEV formats the most recently added KEV entries for general
// "what's being exploited" queries.
func (p *CyberProvider) recentKEV(ctx context.Context) (bool, string, error) {
	catalog, err := p.fetchKEV(ctx)
	if err != nil {
		return false, "", err
	}
	if len(catalog.Vulnerabilities) == 0 {
		return false, "", nil
	}

	// The feed is appended chronologically; the tail is the newest.
	vulns := catalog.Vulnerabilities
	start := len(vulns) - 5
	if start < 0 {
		start = 0
	}

	var lines []string
	for i := len(vulns) - 1; i >= start; i-- {
		v := vulns[i]
		lines = append(lines, fmt.Sprintf("- %s: %s (added %s)", v.CveID, v.VulnerabilityName, v.DateAdded))
	}
	return true, "Recently exploited vulnerabilities (CISA KEV):\n" + strings.Join(lines, "\n"), nil
}
