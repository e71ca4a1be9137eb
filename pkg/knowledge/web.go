package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebProvider is the generic fallback: DuckDuckGo's Instant Answer API.
// It runs last, and only for queries that ask about the present moment
// (see [NeedsLookup]) with no specialized hit.
type WebProvider struct {
	client  *http.Client
	baseURL string
}

func NewWebProvider(timeout time.Duration) *WebProvider {
	return &WebProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://api.duckduckgo.com",
	}
}

// Name implements [Provider].
func (p *WebProvider) Name() string { return "web" }

// Available implements [Provider].
func (p *WebProvider) Available() bool { return true }

// Relevant implements [Provider].
func (p *WebProvider) Relevant(query string) bool {
	return NeedsLookup(query)
}

type ddgResp struct {
	AbstractText   string `json:"AbstractText"`
	AbstractSource string `json:"AbstractSource"`
	Answer         string `json:"Answer"`
	Definition     string `json:"Definition"`
	RelatedTopics  []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Lookup implements [Provider].
func (p *WebProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		p.baseURL, url.QueryEscape(query))

	var resp ddgResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return false, "", err
	}

	var parts []string
	switch {
	case resp.Answer != "":
		parts = append(parts, resp.Answer)
	case resp.AbstractText != "":
		text := resp.AbstractText
		if resp.AbstractSource != "" {
			text += " (" + resp.AbstractSource + ")"
		}
		parts = append(parts, text)
	case resp.Definition != "":
		parts = append(parts, resp.Definition)
	default:
		for i, topic := range resp.RelatedTopics {
			if i >= 3 || topic.Text == "" {
				break
			}
			parts = append(parts, "- "+topic.Text)
		}
	}

	if len(parts) == 0 {
		return false, "", nil
	}
	return true, "Web search results:\n" + strings.Join(parts, "\n"), nil
}
