package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// companyTickers maps well-known company names to their tickers.
// Lookups are exact first, then fuzzy (Jaro-Winkler) to absorb typos like
// "microsft" or "nvidea".
var companyTickers = map[string]string{
	"apple":      "AAPL",
	"microsoft":  "MSFT",
	"google":     "GOOGL",
	"alphabet":   "GOOGL",
	"amazon":     "AMZN",
	"tesla":      "TSLA",
	"nvidia":     "NVDA",
	"meta":       "META",
	"facebook":   "META",
	"netflix":    "NFLX",
	"intel":      "INTC",
	"oracle":     "ORCL",
	"salesforce": "CRM",
	"disney":     "DIS",
	"boeing":     "BA",
	"walmart":    "WMT",
	"jpmorgan":   "JPM",
	"visa":       "V",
	"paypal":     "PYPL",
	"adobe":      "ADBE",
	"qualcomm":   "QCOM",
	"broadcom":   "AVGO",
	"palantir":   "PLTR",
}

// cryptoTickers maps crypto names to Polygon's X:SYMBOLUSD notation.
var cryptoTickers = map[string]string{
	"bitcoin":  "X:BTCUSD",
	"btc":      "X:BTCUSD",
	"ethereum": "X:ETHUSD",
	"eth":      "X:ETHUSD",
	"solana":   "X:SOLUSD",
	"dogecoin": "X:DOGEUSD",
	"doge":     "X:DOGEUSD",
	"cardano":  "X:ADAUSD",
	"litecoin": "X:LTCUSD",
	"ripple":   "X:XRPUSD",
	"xrp":      "X:XRPUSD",
}

// uppercaseStopWords are common English tokens that look like tickers but
// aren't. Bare uppercase candidates matching these are rejected.
var uppercaseStopWords = map[string]bool{
	"A": true, "I": true, "AM": true, "AN": true, "AND": true, "ARE": true,
	"AS": true, "AT": true, "BE": true, "BUY": true, "CAN": true, "CEO": true,
	"DO": true, "ETF": true, "FOR": true, "GET": true, "HOW": true, "IF": true,
	"IN": true, "IS": true, "IT": true, "ME": true, "MY": true, "NO": true,
	"NOT": true, "NOW": true, "OF": true, "OK": true, "ON": true, "OR": true,
	"SELL": true, "SO": true, "THE": true, "TO": true, "UP": true, "US": true,
	"USA": true, "USD": true, "WHAT": true, "WHO": true, "WHY": true,
	"YES": true, "YOU": true, "AI": true, "API": true, "IPO": true,
}

var (
	cashtagRe       = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	bareUpperRe     = regexp.MustCompile(`\b([A-Z]{1,5})\b`)
	priceVerbRe     = regexp.MustCompile(`(?i)\b(price|prices|trading|trade|trades|stock|stocks|shares|quote|worth|close|closed|ticker|market cap)\b`)
	wordRe          = regexp.MustCompile(`[a-zA-Z]+`)
	fuzzyNameScore  = 0.92
	maxTickerLookup = 3
)

// StockProvider answers ticker-price queries with a previous-close quote.
// Polygon is the primary source; Alpha Vantage is the fallback.
type StockProvider struct {
	client           *http.Client
	polygonKey       string
	alphaVantageKey  string
	polygonBase      string
	alphaVantageBase string
}

// NewStockProvider creates a stock provider. Either key may be empty; with
// both empty the provider reports unavailable.
func NewStockProvider(polygonKey, alphaVantageKey string, timeout time.Duration) *StockProvider {
	return &StockProvider{
		client:           &http.Client{Timeout: timeout},
		polygonKey:       polygonKey,
		alphaVantageKey:  alphaVantageKey,
		polygonBase:      "https://api.polygon.io",
		alphaVantageBase: "https://www.alphavantage.co",
	}
}

// Name implements [Provider].
func (p *StockProvider) Name() string { return "stocks" }

// Available implements [Provider].
func (p *StockProvider) Available() bool {
	return p.polygonKey != "" || p.alphaVantageKey != ""
}

// Relevant implements [Provider]: true when at least one ticker can be
// extracted from the query.
func (p *StockProvider) Relevant(query string) bool {
	return len(ExtractTickers(query)) > 0
}

// ExtractTickers identifies tickers in free text by, in order:
// company-name lexicon (exact then fuzzy), crypto-name lexicon with the
// X:SYMBOLUSD rewrite, $CASHTAG notation, and bare uppercase tokens next
// to a price/trade verb (filtered by a stop-list).
func ExtractTickers(query string) []string {
	seen := make(map[string]bool)
	var tickers []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}

	// Company and crypto lexicons work on lowercased words.
	for _, word := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if t, ok := companyTickers[word]; ok {
			add(t)
			continue
		}
		if t, ok := cryptoTickers[word]; ok {
			add(t)
			continue
		}
		if len(word) >= 5 {
			if t := fuzzyCompanyTicker(word); t != "" {
				add(t)
			}
		}
	}

	// $CASHTAG is an explicit signal regardless of surrounding words.
	for _, m := range cashtagRe.FindAllStringSubmatch(query, -1) {
		add(m[1])
	}

	// Bare uppercase tokens count only next to a price/trade verb.
	if priceVerbRe.MatchString(query) {
		for _, m := range bareUpperRe.FindAllStringSubmatch(query, -1) {
			token := m[1]
			if !uppercaseStopWords[token] {
				add(token)
			}
		}
	}

	return tickers
}

// fuzzyCompanyTicker matches a word against the company lexicon with
// Jaro-Winkler similarity, absorbing minor misspellings.
func fuzzyCompanyTicker(word string) string {
	bestScore := fuzzyNameScore
	best := ""
	for name, ticker := range companyTickers {
		if score := matchr.JaroWinkler(word, name, false); score > bestScore {
			bestScore = score
			best = ticker
		}
	}
	return best
}

// lookupTicker resolves a lowercase company/crypto word to a ticker, for
// reuse by the news provider. Empty when unknown.
func lookupTicker(word string) string {
	if t, ok := companyTickers[word]; ok {
		return t
	}
	if t, ok := cryptoTickers[word]; ok {
		return t
	}
	return ""
}

// Lookup implements [Provider]: one previous-close quote per detected
// ticker, formatted "TICKER: $P (±pct% up/down)".
func (p *StockProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	tickers := ExtractTickers(query)
	if len(tickers) == 0 {
		return false, "", nil
	}
	if len(tickers) > maxTickerLookup {
		tickers = tickers[:maxTickerLookup]
	}

	var lines []string
	var lastErr error
	for _, ticker := range tickers {
		line, err := p.quote(ctx, ticker)
		if err != nil {
			lastErr = err
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return false, "", lastErr
	}
	return true, "Real-time stock data:\n" + strings.Join(lines, "\n"), nil
}

func (p *StockProvider) quote(ctx context.Context, ticker string) (string, error) {
	if p.polygonKey != "" {
		line, err := p.polygonPrevClose(ctx, ticker)
		if err == nil {
			return line, nil
		}
		if p.alphaVantageKey == "" {
			return "", err
		}
	}
	return p.alphaVantageQuote(ctx, ticker)
}

type polygonPrevResp struct {
	Results []struct {
		Close float64 `json:"c"`
		Open  float64 `json:"o"`
	} `json:"results"`
}

func (p *StockProvider) polygonPrevClose(ctx context.Context, ticker string) (string, error) {
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s",
		p.polygonBase, url.PathEscape(ticker), url.QueryEscape(p.polygonKey))

	var resp polygonPrevResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", fmt.Errorf("no previous close for %s", ticker)
	}

	r := resp.Results[0]
	pct := 0.0
	if r.Open != 0 {
		pct = (r.Close - r.Open) / r.Open * 100
	}
	return formatQuote(displayTicker(ticker), r.Close, pct), nil
}

type alphaVantageQuoteResp struct {
	GlobalQuote struct {
		Price         string `json:"05. price"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (p *StockProvider) alphaVantageQuote(ctx context.Context, ticker string) (string, error) {
	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.alphaVantageBase, url.QueryEscape(displayTicker(ticker)), url.QueryEscape(p.alphaVantageKey))

	var resp alphaVantageQuoteResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}
	if resp.GlobalQuote.Price == "" {
		return "", fmt.Errorf("no quote for %s", ticker)
	}

	price, err := strconv.ParseFloat(resp.GlobalQuote.Price, 64)
	if err != nil {
		return "", fmt.Errorf("bad price %q for %s: %w", resp.GlobalQuote.Price, ticker, err)
	}
	pctStr := strings.TrimSuffix(strings.TrimSpace(resp.GlobalQuote.ChangePercent), "%")
	pct, _ := strconv.ParseFloat(pctStr, 64)

	return formatQuote(displayTicker(ticker), price, pct), nil
}

// displayTicker strips Polygon's crypto prefix/suffix for human display:
// X:BTCUSD → BTC.
func displayTicker(ticker string) string {
	if strings.HasPrefix(ticker, "X:") {
		return strings.TrimSuffix(strings.TrimPrefix(ticker, "X:"), "USD")
	}
	return ticker
}

func formatQuote(ticker string, price, pct float64) string {
	direction := "up"
	if pct < 0 {
		direction = "down"
	}
	return fmt.Sprintf("%s: $%.2f (%+.2f%% %s)", ticker, price, pct, direction)
}
