package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const maxEncyclopediaTopics = 3

var encyclopediaRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwho (?:is|was|are)\s+([A-Za-z][A-Za-z0-9 .'-]{1,60}?)(?:[?.!,]|$)`),
	regexp.MustCompile(`(?i)\bwhat (?:is|was|are)\s+(?:an?\s+|the\s+)?([A-Za-z][A-Za-z0-9 .'-]{1,60}?)(?:[?.!,]|$)`),
	regexp.MustCompile(`(?i)\btell me about\s+([A-Za-z][A-Za-z0-9 .'-]{1,60}?)(?:[?.!,]|$)`),
	regexp.MustCompile(`(?i)\bexplain\s+(?:what\s+)?([A-Za-z][A-Za-z0-9 .'-]{1,60}?)(?:\s+is|\s+means)?(?:[?.!,]|$)`),
}

// EncyclopediaProvider answers definitional queries ("who is X", "what is
// Y") from Wikipedia's REST summary API. No credential required. It runs
// only when no specialized provider produced a hit.
type EncyclopediaProvider struct {
	client  *http.Client
	baseURL string
}

func NewEncyclopediaProvider(timeout time.Duration) *EncyclopediaProvider {
	return &EncyclopediaProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://en.wikipedia.org",
	}
}

// Name implements [Provider].
func (p *EncyclopediaProvider) Name() string { return "encyclopedia" }

// Available implements [Provider].
func (p *EncyclopediaProvider) Available() bool { return true }

// Relevant implements [Provider].
func (p *EncyclopediaProvider) Relevant(query string) bool {
	return len(ExtractTopics(query)) > 0
}

// ExtractTopics pulls lookup subjects out of definitional phrasing, at
// most three per query.
func ExtractTopics(query string) []string {
	seen := make(map[string]bool)
	var topics []string
	for _, re := range encyclopediaRes {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			topic := strings.TrimSpace(m[1])
			key := strings.ToLower(topic)
			if topic == "" || seen[key] {
				continue
			}
			seen[key] = true
			topics = append(topics, topic)
			if len(topics) >= maxEncyclopediaTopics {
				return topics
			}
		}
	}
	return topics
}

type wikiSummaryResp struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Type    string `json:"type"`
}

// Lookup implements [Provider]: one summary paragraph per detected topic.
func (p *EncyclopediaProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	topics := ExtractTopics(query)
	if len(topics) == 0 {
		return false, "", nil
	}

	var parts []string
	var lastErr error
	for _, topic := range topics {
		summary, err := p.summary(ctx, topic)
		if err != nil {
			lastErr = err
			continue
		}
		parts = append(parts, summary)
	}

	if len(parts) == 0 {
		return false, "", lastErr
	}
	return true, "Encyclopedia reference:\n" + strings.Join(parts, "\n"), nil
}

func (p *EncyclopediaProvider) summary(ctx context.Context, topic string) (string, error) {
	title := strings.ReplaceAll(topic, " ", "_")
	u := fmt.Sprintf("%s/api/rest_v1/page/summary/%s", p.baseURL, url.PathEscape(title))

	var resp wikiSummaryResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}
	if resp.Extract == "" || resp.Type == "disambiguation" {
		return "", fmt.Errorf("no usable summary for %q", topic)
	}

	extract := resp.Extract
	if len(extract) > 500 {
		extract = extract[:500] + "..."
	}
	return fmt.Sprintf("%s: %s", resp.Title, extract), nil
}
