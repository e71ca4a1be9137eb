package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
)

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestChatHandler(t *testing.T) {
	env := newTestServer(t)

	rec := postJSON(t, env.server, "/chat",
		`{"message": "hello", "user_id": "dave", "consensus": false, "metadata": {"role": "executive"}}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello there", resp["response"])
	assert.Equal(t, "local", resp["provider"])
	assert.Equal(t, "dave", resp["user_id"])

	require.Len(t, env.engine.hints, 1)
	assert.Equal(t, "false", env.engine.hints[0]["consensus"])
	assert.Equal(t, "executive", env.engine.hints[0]["role"])
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	env := newTestServer(t)

	rec := postJSON(t, env.server, "/chat", `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.engine.inputs)
}

func TestChatHandler_AllBackendsFailed(t *testing.T) {
	env := newTestServer(t)
	env.engine.err = orchestrator.ErrAllBackendsFailed

	rec := postJSON(t, env.server, "/chat", `{"message": "hello"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChatHandler_Backpressure(t *testing.T) {
	env := newTestServer(t)

	// Fill every inflight slot so the next request is rejected.
	for i := 0; i < cap(env.server.inflight); i++ {
		env.server.inflight <- struct{}{}
	}

	rec := postJSON(t, env.server, "/chat", `{"message": "hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, env.engine.inputs)
}

func TestClearHandler(t *testing.T) {
	env := newTestServer(t)

	rec := postJSON(t, env.server, "/clear", `{"user_id": "dave"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ClearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cleared", resp.Status)
	assert.Equal(t, []string{"dave"}, env.engine.cleared)
}
