package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// postJSON posts a JSON body and decodes the JSON response.
func postJSON(t *testing.T, url string, body any) (int, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeJSON(t, resp)
}

// getJSON fetches a URL and decodes the JSON response.
func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	resp, err := httpClient.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode, decodeJSON(t, resp)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// chat sends one message through POST /chat and requires a 200.
func (app *TestApp) chat(t *testing.T, message string) map[string]any {
	t.Helper()
	status, body := postJSON(t, app.BaseURL+"/chat", map[string]any{"message": message})
	require.Equal(t, http.StatusOK, status, "chat response: %v", body)
	return body
}

// quality extracts the quality assessment from a chat response body.
func quality(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	q, ok := body["quality"].(map[string]any)
	require.True(t, ok, "quality missing in %v", body)
	return q
}
