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
	newsTopicRe = regexp.MustCompile(`(?i)\b(news|headlines|happening|announce(?:d|ment)?|reported?)\b`)

	newsCategoryKeywords = map[string][]string{
		"business":   {"business", "market", "markets", "economy", "economic", "earnings", "stock", "stocks", "finance", "financial", "ipo", "merger"},
		"technology": {"tech", "technology", "software", "startup", "ai", "silicon"},
		"science":    {"science", "research", "study", "space", "nasa"},
		"health":     {"health", "medical", "medicine", "disease", "vaccine"},
		"sports":     {"sports", "game", "match", "league", "championship"},
	}
)

// NewsProvider answers news queries. Ticker-specific business queries go
// to Polygon's ticker-news endpoint first; everything else uses NewsAPI
// top headlines, with Alpha Vantage news sentiment as a tertiary source
// for finance queries.
type NewsProvider struct {
	client           *http.Client
	newsAPIKey       string
	polygonKey       string
	alphaVantageKey  string
	newsAPIBase      string
	polygonBase      string
	alphaVantageBase string
}

func NewNewsProvider(newsAPIKey, polygonKey, alphaVantageKey string, timeout time.Duration) *NewsProvider {
	return &NewsProvider{
		client:           &http.Client{Timeout: timeout},
		newsAPIKey:       newsAPIKey,
		polygonKey:       polygonKey,
		alphaVantageKey:  alphaVantageKey,
		newsAPIBase:      "https://newsapi.org",
		polygonBase:      "https://api.polygon.io",
		alphaVantageBase: "https://www.alphavantage.co",
	}
}

// Name implements [Provider].
func (p *NewsProvider) Name() string { return "news" }

// Available implements [Provider].
func (p *NewsProvider) Available() bool {
	return p.newsAPIKey != "" || p.polygonKey != "" || p.alphaVantageKey != ""
}

// Relevant implements [Provider].
func (p *NewsProvider) Relevant(query string) bool {
	return newsTopicRe.MatchString(query)
}

// classifyNewsCategory maps a query to a NewsAPI category, defaulting to
// "general".
func classifyNewsCategory(query string) string {
	lower := strings.ToLower(query)
	for category, keywords := range newsCategoryKeywords {
		for _, kw := range keywords {
			if containsWord(lower, kw) {
				return category
			}
		}
	}
	return "general"
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !isLetter(lower[start-1])
		rightOK := end == len(lower) || !isLetter(lower[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Lookup implements [Provider]: up to five recent headlines relevant to
// the query's category, or ticker-specific news when a ticker is present.
func (p *NewsProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	category := classifyNewsCategory(query)

	// Ticker-specific finance news has a dedicated Polygon endpoint.
	if category == "business" && p.polygonKey != "" {
		if tickers := ExtractTickers(query); len(tickers) > 0 {
			blob, err := p.polygonTickerNews(ctx, tickers[0])
			if err == nil && blob != "" {
				return true, blob, nil
			}
		}
	}

	if p.newsAPIKey != "" {
		blob, err := p.newsAPIHeadlines(ctx, category)
		if err == nil && blob != "" {
			return true, blob, nil
		}
		if p.alphaVantageKey == "" {
			return false, "", err
		}
	}

	if p.alphaVantageKey != "" && (category == "business" || category == "technology") {
		blob, err := p.alphaVantageSentiment(ctx, query)
		if err != nil {
			return false, "", err
		}
		return blob != "", blob, nil
	}

	return false, "", nil
}

type polygonNewsResp struct {
	Results []struct {
		Title     string `json:"title"`
		Publisher struct {
			Name string `json:"name"`
		} `json:"publisher"`
	} `json:"results"`
}

func (p *NewsProvider) polygonTickerNews(ctx context.Context, ticker string) (string, error) {
	u := fmt.Sprintf("%s/v2/reference/news?ticker=%s&limit=5&apiKey=%s",
		p.polygonBase, url.QueryEscape(displayTicker(ticker)), url.QueryEscape(p.polygonKey))

	var resp polygonNewsResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}

	var lines []string
	for _, r := range resp.Results {
		lines = append(lines, fmt.Sprintf("- %s (%s)", r.Title, r.Publisher.Name))
	}
	return fmt.Sprintf("Recent news for %s:\n%s", displayTicker(ticker), strings.Join(lines, "\n")), nil
}

type newsAPIResp struct {
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (p *NewsProvider) newsAPIHeadlines(ctx context.Context, category string) (string, error) {
	u := fmt.Sprintf("%s/v2/top-headlines?country=us&category=%s&pageSize=5",
		p.newsAPIBase, url.QueryEscape(category))

	var resp newsAPIResp
	headers := map[string]string{"X-Api-Key": p.newsAPIKey}
	if err := fetchJSON(ctx, p.client, u, headers, &resp); err != nil {
		return "", err
	}
	if len(resp.Articles) == 0 {
		return "", nil
	}

	var lines []string
	for _, a := range resp.Articles {
		lines = append(lines, fmt.Sprintf("- %s (%s)", a.Title, a.Source.Name))
	}
	return fmt.Sprintf("Current %s headlines:\n%s", category, strings.Join(lines, "\n")), nil
}

type alphaVantageNewsResp struct {
	Feed []struct {
		Title                 string `json:"title"`
		OverallSentimentLabel string `json:"overall_sentiment_label"`
	} `json:"feed"`
}

func (p *NewsProvider) alphaVantageSentiment(ctx context.Context, query string) (string, error) {
	u := fmt.Sprintf("%s/query?function=NEWS_SENTIMENT&limit=5&apikey=%s",
		p.alphaVantageBase, url.QueryEscape(p.alphaVantageKey))
	if tickers := ExtractTickers(query); len(tickers) > 0 {
		u += "&tickers=" + url.QueryEscape(displayTicker(tickers[0]))
	}

	var resp alphaVantageNewsResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Feed) == 0 {
		return "", nil
	}

	var lines []string
	for i, f := range resp.Feed {
		if i >= 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s [sentiment: %s]", f.Title, f.OverallSentimentLabel))
	}
	return "Current market news:\n" + strings.Join(lines, "\n"), nil
}
