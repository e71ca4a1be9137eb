package api

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
)

// maxMessageBytes bounds a single chat message.
const maxMessageBytes = 100_000

// ChatRequest is the HTTP request body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	// Consensus overrides the configured default when non-nil.
	Consensus *bool `json:"consensus"`
	// Metadata carries request hints (role, system_call, feedback).
	Metadata map[string]string `json:"metadata"`
}

// ClearRequest is the HTTP request body for POST /clear.
type ClearRequest struct {
	UserID string `json:"user_id"`
}

// ClearResponse is the HTTP response for POST /clear.
type ClearResponse struct {
	Status string `json:"status"`
}

// chatHandler handles POST /chat: the full governance pipeline for one
// message. The response body is the governance result verbatim.
func (s *Server) chatHandler(c *echo.Context) error {
	if !s.acquire() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is at capacity")
	}
	defer s.release()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if len(req.Message) > maxMessageBytes {
		return echo.NewHTTPError(http.StatusBadRequest, "message exceeds maximum length")
	}

	hints := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		hints[k] = v
	}
	if req.Consensus != nil {
		hints["consensus"] = strconv.FormatBool(*req.Consensus)
	}

	resp, err := s.engine.ProcessInput(c.Request().Context(), req.Message, req.UserID, hints)
	if err != nil {
		if errors.Is(err, orchestrator.ErrAllBackendsFailed) {
			return echo.NewHTTPError(http.StatusBadGateway, "no model backend produced a response")
		}
		s.logger.Error("Chat processing failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, resp)
}

// clearHandler handles POST /clear: drops the user's rolling conversation
// window. Long-term memory is untouched.
func (s *Server) clearHandler(c *echo.Context) error {
	var req ClearRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.engine.Clear(req.UserID)
	return c.JSON(http.StatusOK, &ClearResponse{Status: "cleared"})
}
