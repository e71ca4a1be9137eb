// Package knowledge provides the pre-lookup pipeline: domain-specific
// providers that detect whether a query needs real-time external data,
// fetch it, and format an injectable context blob for the model prompt.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Provider is a domain-specific pre-lookup module.
//
// Relevant must be cheap (keyword/regex only, no I/O). Lookup may perform
// network calls and must honor ctx; failures are swallowed by the router,
// so providers should return errors rather than degrade silently.
type Provider interface {
	// Name identifies the provider in stats and logs.
	Name() string

	// Available reports whether the provider can serve lookups (typically:
	// its credential is configured). Unavailable providers are skipped.
	Available() bool

	// Relevant reports whether the query falls in this provider's domain.
	Relevant(query string) bool

	// Lookup fetches and formats a context blob for the query.
	// hit=false with nil error means the domain matched but nothing useful
	// was found (e.g. an unknown ticker).
	Lookup(ctx context.Context, query string) (hit bool, blob string, err error)
}

// userAgent identifies thalamus to external data vendors.
const userAgent = "thalamus/1.0 (+https://github.com/thalamus-ai/thalamus)"

// fetchJSON performs a GET request and decodes the JSON response into target.
// Non-2xx statuses are errors; the caller's http.Client supplies the timeout.
func fetchJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
