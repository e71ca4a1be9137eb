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

var (
	techTopicRe = regexp.MustCompile(`(?i)\b(trending|github|open[- ]source|repos?|repositories|hacker news|release(?:d|s)?|new version|framework|what'?s hot)\b`)

	techSubtopics = map[string][]string{
		"ai":       {"ai", "llm", "machine learning", "neural", "gpt", "model"},
		"security": {"security", "pentest", "exploit", "vulnerability", "infosec"},
		"cloud":    {"cloud", "kubernetes", "docker", "serverless", "aws", "devops"},
		"web3":     {"web3", "blockchain", "crypto", "ethereum", "smart contract"},
		"quantum":  {"quantum"},
		"hardware": {"hardware", "chip", "gpu", "cpu", "semiconductor"},
	}

	// Security tools worth surfacing release info for.
	securityToolRepos = map[string]string{
		"metasploit": "rapid7/metasploit-framework",
		"nmap":       "nmap/nmap",
		"nuclei":     "projectdiscovery/nuclei",
		"wireshark":  "wireshark/wireshark",
		"burp":       "PortSwigger/BChecks",
	}
)

// TechPulseProvider surfaces what's moving in the developer ecosystem:
// trending GitHub repositories for a detected subtopic, latest releases of
// known security tools, and Hacker News front-page stories. Both APIs work
// unauthenticated.
type TechPulseProvider struct {
	client     *http.Client
	githubBase string
	hnBase     string
}

func NewTechPulseProvider(timeout time.Duration) *TechPulseProvider {
	return &TechPulseProvider{
		client:     &http.Client{Timeout: timeout},
		githubBase: "https://api.github.com",
		hnBase:     "https://hacker-news.firebaseio.com",
	}
}

// Name implements [Provider].
func (p *TechPulseProvider) Name() string { return "techpulse" }

// Available implements [Provider].
func (p *TechPulseProvider) Available() bool { return true }

// Relevant implements [Provider].
func (p *TechPulseProvider) Relevant(query string) bool {
	return techTopicRe.MatchString(query)
}

// detectSubtopic picks the tech area a query is about; empty means general.
func detectSubtopic(query string) string {
	lower := strings.ToLower(query)
	for subtopic, keywords := range techSubtopics {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return subtopic
			}
		}
	}
	return ""
}

// Lookup implements [Provider].
func (p *TechPulseProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	var parts []string

	// Named security tool → its latest release.
	lower := strings.ToLower(query)
	for name, repo := range securityToolRepos {
		if strings.Contains(lower, name) {
			if line, err := p.latestRelease(ctx, repo); err == nil {
				parts = append(parts, line)
			}
			break
		}
	}

	subtopic := detectSubtopic(query)
	if repos, err := p.trendingRepos(ctx, subtopic); err == nil && repos != "" {
		parts = append(parts, repos)
	}

	if stories, err := p.hackerNewsTop(ctx); err == nil && stories != "" {
		parts = append(parts, stories)
	}

	if len(parts) == 0 {
		return false, "", nil
	}
	return true, "Current tech ecosystem data:\n" + strings.Join(parts, "\n"), nil
}

type githubSearchResp struct {
	Items []struct {
		FullName    string `json:"full_name"`
		Description string `json:"description"`
		Stars       int    `json:"stargazers_count"`
	} `json:"items"`
}

// trendingRepos approximates "trending" with a search for recently created
// repositories sorted by stars.
func (p *TechPulseProvider) trendingRepos(ctx context.Context, subtopic string) (string, error) {
	created := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	q := fmt.Sprintf("created:>%s", created)
	if subtopic != "" {
		q = subtopic + " " + q
	}
	u := fmt.Sprintf("%s/search/repositories?q=%s&sort=stars&order=desc&per_page=5",
		p.githubBase, url.QueryEscape(q))

	var resp githubSearchResp
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := fetchJSON(ctx, p.client, u, headers, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}

	var lines []string
	for _, item := range resp.Items {
		desc := item.Description
		if len(desc) > 100 {
			desc = desc[:100] + "..."
		}
		lines = append(lines, fmt.Sprintf("- %s (%d stars): %s", item.FullName, item.Stars, desc))
	}
	return "Trending GitHub repositories:\n" + strings.Join(lines, "\n"), nil
}

type githubReleaseResp struct {
	TagName     string `json:"tag_name"`
	PublishedAt string `json:"published_at"`
}

func (p *TechPulseProvider) latestRelease(ctx context.Context, repo string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/latest", p.githubBase, repo)

	var resp githubReleaseResp
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := fetchJSON(ctx, p.client, u, headers, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Latest %s release: %s (published %s)", repo, resp.TagName, resp.PublishedAt), nil
}

func (p *TechPulseProvider) hackerNewsTop(ctx context.Context) (string, error) {
	var ids []int
	if err := fetchJSON(ctx, p.client, p.hnBase+"/v0/topstories.json", nil, &ids); err != nil {
		return "", err
	}
	if len(ids) > 5 {
		ids = ids[:5]
	}

	var lines []string
	for _, id := range ids {
		var story struct {
			Title string `json:"title"`
			Score int    `json:"score"`
		}
		u := fmt.Sprintf("%s/v0/item/%d.json", p.hnBase, id)
		if err := fetchJSON(ctx, p.client, u, nil, &story); err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%d points)", story.Title, story.Score))
	}

	if len(lines) == 0 {
		return "", nil
	}
	return "Hacker News front page:\n" + strings.Join(lines, "\n"), nil
}
