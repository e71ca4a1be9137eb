package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func postPath(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestPrivacyStatusHandler(t *testing.T) {
	env := newTestServer(t)

	rec := getPath(t, env.server, "/api/privacy-status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "LOCAL", resp["mode"])
	assert.Equal(t, false, resp["cloud_allowed"])
}

func TestRequestCloudAccessHandler(t *testing.T) {
	env := newTestServer(t)

	rec := postPath(t, env.server, "/api/request-cloud-access?provider=CLAUDE&reason=stock+lookup")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CloudAccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Approved)
	assert.Equal(t, "claude", resp.Provider)
	assert.Equal(t, "HYBRID", resp.Mode)
	assert.Equal(t, []string{"claude"}, env.privacy.requested)
}

func TestRequestCloudAccessHandler_Denied(t *testing.T) {
	env := newTestServer(t)
	env.privacy.approve = false

	rec := postPath(t, env.server, "/api/request-cloud-access?provider=claude")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CloudAccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Approved)
}

func TestRequestCloudAccessHandler_Validation(t *testing.T) {
	env := newTestServer(t)

	rec := postPath(t, env.server, "/api/request-cloud-access")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing provider")

	rec = postPath(t, env.server, "/api/request-cloud-access?provider=mystery")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown provider")

	// A local backend is not a cloud provider.
	rec = postPath(t, env.server, "/api/request-cloud-access?provider=local")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.privacy.requested)
}

func TestDisableCloudHandler(t *testing.T) {
	env := newTestServer(t)

	rec := postPath(t, env.server, "/api/disable-cloud?provider=claude")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"claude"}, env.privacy.disabled)
	assert.False(t, env.privacy.disabledAll)

	rec = postPath(t, env.server, "/api/disable-cloud")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.privacy.disabledAll)

	var resp DisableCloudResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "disabled", resp.Status)
	assert.Equal(t, "LOCAL", resp.Mode)
}
