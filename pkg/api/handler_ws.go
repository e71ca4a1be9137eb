package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/thalamus-ai/thalamus/pkg/governance"
)

// wsWriteTimeout bounds one outbound frame write.
const wsWriteTimeout = 10 * time.Second

// WSChatMessage is one inbound chat frame.
type WSChatMessage struct {
	Message  string            `json:"message"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata"`
}

// WSClassificationFrame is sent as soon as the task is classified, before
// generation starts, so the client can show routing feedback immediately.
type WSClassificationFrame struct {
	Type       string   `json:"type"`
	TaskType   string   `json:"task_type"`
	Confidence float64  `json:"confidence"`
	Agents     []string `json:"agents"`
}

// WSResponseFrame carries the completed governance response.
type WSResponseFrame struct {
	Type     string               `json:"type"`
	Response *governance.Response `json:"response"`
}

// WSErrorFrame reports a failed message without closing the connection.
type WSErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsChatHandler handles GET /ws/chat: a persistent chat session. Each
// inbound message yields a classification frame followed by a response or
// error frame. Blocks until the client disconnects.
func (s *Server) wsChatHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.wsOriginPatterns(),
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := c.Request().Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or failed; exit the read loop.
			return nil
		}

		var msg WSChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.writeFrame(ctx, conn, &WSErrorFrame{Type: "error", Error: "invalid message"})
			continue
		}
		if msg.Message == "" {
			s.writeFrame(ctx, conn, &WSErrorFrame{Type: "error", Error: "message is required"})
			continue
		}

		s.handleWSMessage(ctx, conn, &msg)
	}
}

func (s *Server) handleWSMessage(ctx context.Context, conn *websocket.Conn, msg *WSChatMessage) {
	if !s.acquire() {
		s.writeFrame(ctx, conn, &WSErrorFrame{Type: "error", Error: "server is at capacity"})
		return
	}
	defer s.release()

	cls, recs := s.engine.Plan(ctx, msg.Message)
	agents := make([]string, 0, len(recs))
	for _, r := range recs {
		agents = append(agents, r.Agent)
	}
	s.writeFrame(ctx, conn, &WSClassificationFrame{
		Type:       "task_classification",
		TaskType:   string(cls.TaskType),
		Confidence: cls.Confidence,
		Agents:     agents,
	})

	resp, err := s.engine.ProcessInput(ctx, msg.Message, msg.UserID, msg.Metadata)
	if err != nil {
		s.logger.Warn("WebSocket chat failed", "error", err)
		s.writeFrame(ctx, conn, &WSErrorFrame{Type: "error", Error: err.Error()})
		return
	}
	s.writeFrame(ctx, conn, &WSResponseFrame{Type: "response", Response: resp})
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("WebSocket frame marshal failed", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.logger.Debug("WebSocket write failed", "error", err)
	}
}

// wsOriginPatterns returns the accepted WebSocket origins: localhost
// variants plus anything configured.
func (s *Server) wsOriginPatterns() []string {
	patterns := []string{"localhost:*", "localhost", "127.0.0.1:*", "127.0.0.1"}
	return append(patterns, s.cfg.AllowedWSOrigins...)
}
