package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// HealthCheck is one component's health.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the HTTP response for GET /healthz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Checks   map[string]HealthCheck `json:"checks"`
	Backends []BackendHealth        `json:"backends"`
}

// BackendHealth summarizes one model backend for the health surface.
type BackendHealth struct {
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Kind      string `json:"kind"`
	Available bool   `json:"available"`
}

// healthHandler handles GET /healthz.
//
// The database is the only hard dependency: the process is useless without
// its brain store. Model backends are reported but never fail the check,
// since an unreachable cloud provider is an expected state in LOCAL mode.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if _, err := database.Health(reqCtx, s.dbClient.DB()); err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	backends := make([]BackendHealth, 0)
	anyAvailable := false
	for _, b := range s.backends.Backends(reqCtx) {
		if b.Available {
			anyAvailable = true
		}
		backends = append(backends, BackendHealth{
			Name:      b.Name,
			Provider:  b.Status.Provider,
			Model:     b.Status.Model,
			Kind:      string(b.Status.Kind),
			Available: b.Available,
		})
	}
	if !anyAvailable && status == healthStatusHealthy {
		status = healthStatusDegraded
		checks["backends"] = HealthCheck{Status: healthStatusDegraded, Message: "no model backend available"}
	} else {
		checks["backends"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:   status,
		Version:  version.GitCommit,
		Checks:   checks,
		Backends: backends,
	})
}
