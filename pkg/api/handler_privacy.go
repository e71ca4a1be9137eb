package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/thalamus-ai/thalamus/pkg/llm"
)

// CloudAccessResponse is the HTTP response for POST /api/request-cloud-access.
type CloudAccessResponse struct {
	Approved bool   `json:"approved"`
	Provider string `json:"provider"`
	Mode     string `json:"mode"`
	Message  string `json:"message"`
}

// DisableCloudResponse is the HTTP response for POST /api/disable-cloud.
type DisableCloudResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

// privacyStatusHandler handles GET /api/privacy-status.
func (s *Server) privacyStatusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.privacy.Snapshot())
}

// requestCloudAccessHandler handles POST /api/request-cloud-access.
//
// Query parameters: provider (required), reason (optional). The provider
// must name a registered cloud backend.
func (s *Server) requestCloudAccessHandler(c *echo.Context) error {
	provider := strings.ToLower(c.QueryParam("provider"))
	if provider == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "provider is required")
	}
	if !s.isCloudBackend(c, provider) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown cloud provider")
	}

	reason := c.QueryParam("reason")
	if reason == "" {
		reason = "user request"
	}

	approved := s.privacy.RequestCloudAccess(c.Request().Context(), provider, reason)
	snap := s.privacy.Snapshot()

	msg := "cloud access denied"
	if approved {
		msg = "cloud access enabled for " + provider
	}
	return c.JSON(http.StatusOK, &CloudAccessResponse{
		Approved: approved,
		Provider: provider,
		Mode:     string(snap.Mode),
		Message:  msg,
	})
}

// disableCloudHandler handles POST /api/disable-cloud.
//
// With ?provider=X only that provider is disabled; without it every cloud
// provider is revoked and the controller returns to LOCAL mode.
func (s *Server) disableCloudHandler(c *echo.Context) error {
	provider := strings.ToLower(c.QueryParam("provider"))
	if provider == "" {
		s.privacy.DisableAllCloud()
	} else {
		if !s.isCloudBackend(c, provider) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown cloud provider")
		}
		s.privacy.DisableProvider(provider)
	}

	return c.JSON(http.StatusOK, &DisableCloudResponse{
		Status: "disabled",
		Mode:   string(s.privacy.Snapshot().Mode),
	})
}

func (s *Server) isCloudBackend(c *echo.Context, provider string) bool {
	for _, b := range s.backends.Backends(c.Request().Context()) {
		if b.Name == provider && b.Status.Kind == llm.KindCloud {
			return true
		}
	}
	return false
}
