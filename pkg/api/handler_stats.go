package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/thalamus-ai/thalamus/pkg/brain"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// TaskHistoryResponse is the HTTP response for GET /api/task-history.
type TaskHistoryResponse struct {
	Tasks []TaskHistoryItem `json:"tasks"`
}

// TaskHistoryItem is one stored conversation turn, newest first.
type TaskHistoryItem struct {
	ID         string   `json:"id"`
	Timestamp  string   `json:"timestamp"`
	UserText   string   `json:"user_text"`
	Response   string   `json:"response"`
	Topics     []string `json:"topics,omitempty"`
	Importance int      `json:"importance"`
	UserID     string   `json:"user_id"`
	ModelsUsed []string `json:"models_used,omitempty"`
}

// AgentPerformanceResponse is the HTTP response for GET /api/agent-performance.
type AgentPerformanceResponse struct {
	Agents map[string]AgentPerformanceItem `json:"agents"`
}

// AgentPerformanceItem summarizes one agent's track record.
type AgentPerformanceItem struct {
	Attempts    int     `json:"attempts"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
	LastUsed    string  `json:"last_used"`
}

// brainStatsHandler handles GET /api/brain-stats: per-layer and per-table
// memory counters.
func (s *Server) brainStatsHandler(c *echo.Context) error {
	stats, err := s.memory.Stats(c.Request().Context())
	if err != nil {
		s.logger.Error("Brain stats failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, stats)
}

// taskHistoryHandler handles GET /api/task-history?limit=N.
func (s *Server) taskHistoryHandler(c *echo.Context) error {
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = n
	}

	turns, err := s.history.ConversationContext(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("Task history failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	resp := TaskHistoryResponse{Tasks: make([]TaskHistoryItem, 0, len(turns))}
	for _, t := range turns {
		resp.Tasks = append(resp.Tasks, taskHistoryItem(t))
	}
	return c.JSON(http.StatusOK, resp)
}

func taskHistoryItem(t *brain.Turn) TaskHistoryItem {
	return TaskHistoryItem{
		ID:         t.ID,
		Timestamp:  t.Timestamp.Format(time.RFC3339),
		UserText:   t.UserText,
		Response:   t.AssistantText,
		Topics:     t.Topics,
		Importance: t.Importance,
		UserID:     t.UserID,
		ModelsUsed: t.ModelsUsed,
	}
}

// agentPerformanceHandler handles GET /api/agent-performance.
func (s *Server) agentPerformanceHandler(c *echo.Context) error {
	perf, err := s.history.AgentPerformance(c.Request().Context())
	if err != nil {
		s.logger.Error("Agent performance failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	resp := AgentPerformanceResponse{Agents: make(map[string]AgentPerformanceItem, len(perf))}
	for name, st := range perf {
		resp.Agents[name] = AgentPerformanceItem{
			Attempts:    st.Attempts,
			Successes:   st.Successes,
			SuccessRate: st.SuccessRate,
			LastUsed:    st.LastUsed.Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// orchestratorStatusHandler handles GET /api/orchestrator-status: per-backend
// call counters and per-provider knowledge lookup counters.
func (s *Server) orchestratorStatusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.backends.Status())
}
