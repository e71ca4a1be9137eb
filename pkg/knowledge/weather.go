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

const geocodeCacheTTL = 24 * time.Hour

var (
	weatherTopicRe = regexp.MustCompile(`(?i)\b(weather|temperature|forecast|rain|raining|snow|snowing|sunny|cloudy|humidity|windy|degrees)\b`)
	forecastRe     = regexp.MustCompile(`(?i)\b(forecast|tomorrow|week|weekend|next|days)\b`)

	// "weather in Boston", "forecast for New York City tomorrow"
	locationInRe = regexp.MustCompile(`(?i)\b(?:in|for|at)\s+([A-Za-z][A-Za-z .'-]{1,40}?)(?:\s+(?:today|tonight|tomorrow|this|next|right|now)\b|[?!,]|$)`)
)

// WeatherProvider answers weather queries via OpenWeatherMap: geocoding
// (cached 24h), current conditions, and the 5-day forecast. Units are
// imperial (°F).
type WeatherProvider struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	geocodes *ttlCache
}

func NewWeatherProvider(apiKey string, timeout time.Duration) *WeatherProvider {
	return &WeatherProvider{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		baseURL:  "https://api.openweathermap.org",
		geocodes: newTTLCache(geocodeCacheTTL),
	}
}

// Name implements [Provider].
func (p *WeatherProvider) Name() string { return "weather" }

// Available implements [Provider].
func (p *WeatherProvider) Available() bool { return p.apiKey != "" }

// Relevant implements [Provider].
func (p *WeatherProvider) Relevant(query string) bool {
	return weatherTopicRe.MatchString(query)
}

// ExtractLocation pulls a place name out of a weather query. Empty when
// none is present ("is it raining?" without a location).
func ExtractLocation(query string) string {
	m := locationInRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], " .")
}

type geoPoint struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (p *WeatherProvider) geocode(ctx context.Context, location string) (*geoPoint, error) {
	key := strings.ToLower(location)
	if cached, ok := p.geocodes.get(key); ok {
		return cached.(*geoPoint), nil
	}

	u := fmt.Sprintf("%s/geo/1.0/direct?q=%s&limit=1&appid=%s",
		p.baseURL, url.QueryEscape(location), url.QueryEscape(p.apiKey))

	var points []geoPoint
	if err := fetchJSON(ctx, p.client, u, nil, &points); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("unknown location %q", location)
	}

	p.geocodes.set(key, &points[0])
	return &points[0], nil
}

type currentWeatherResp struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastResp struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

// Lookup implements [Provider]: current conditions, plus a daily forecast
// summary when the query asks about the future.
func (p *WeatherProvider) Lookup(ctx context.Context, query string) (bool, string, error) {
	location := ExtractLocation(query)
	if location == "" {
		return false, "", nil
	}

	point, err := p.geocode(ctx, location)
	if err != nil {
		return false, "", err
	}

	var parts []string

	current, err := p.current(ctx, point)
	if err != nil {
		return false, "", err
	}
	parts = append(parts, current)

	if forecastRe.MatchString(query) {
		forecast, err := p.forecast(ctx, point)
		if err == nil && forecast != "" {
			parts = append(parts, forecast)
		}
	}

	return true, "Real-time weather data:\n" + strings.Join(parts, "\n"), nil
}

func (p *WeatherProvider) current(ctx context.Context, point *geoPoint) (string, error) {
	u := fmt.Sprintf("%s/data/2.5/weather?lat=%f&lon=%f&units=imperial&appid=%s",
		p.baseURL, point.Lat, point.Lon, url.QueryEscape(p.apiKey))

	var resp currentWeatherResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}

	desc := "unknown conditions"
	if len(resp.Weather) > 0 {
		desc = resp.Weather[0].Description
	}
	return fmt.Sprintf("%s: %s, %.0f°F (feels like %.0f°F), humidity %d%%, wind %.0f mph",
		point.Name, desc, resp.Main.Temp, resp.Main.FeelsLike, resp.Main.Humidity, resp.Wind.Speed), nil
}

// forecast summarizes the 5-day/3-hour forecast to one line per day,
// using the midday reading as representative.
func (p *WeatherProvider) forecast(ctx context.Context, point *geoPoint) (string, error) {
	u := fmt.Sprintf("%s/data/2.5/forecast?lat=%f&lon=%f&units=imperial&appid=%s",
		p.baseURL, point.Lat, point.Lon, url.QueryEscape(p.apiKey))

	var resp forecastResp
	if err := fetchJSON(ctx, p.client, u, nil, &resp); err != nil {
		return "", err
	}

	var lines []string
	for _, entry := range resp.List {
		if !strings.Contains(entry.DtTxt, "12:00:00") {
			continue
		}
		day := strings.SplitN(entry.DtTxt, " ", 2)[0]
		desc := ""
		if len(entry.Weather) > 0 {
			desc = entry.Weather[0].Description
		}
		lines = append(lines, fmt.Sprintf("  %s: %s, %.0f°F", day, desc, entry.Main.Temp))
		if len(lines) >= 5 {
			break
		}
	}

	if len(lines) == 0 {
		return "", nil
	}
	return "Forecast:\n" + strings.Join(lines, "\n"), nil
}
