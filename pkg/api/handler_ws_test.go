package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(server.URL, "http://", "ws://", 1) + "/ws/chat"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func writeFrameJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestWSChat(t *testing.T) {
	env := newTestServer(t)
	server := httptest.NewServer(env.server.Handler())
	defer server.Close()

	conn := dialWS(t, server)
	writeFrameJSON(t, conn, &WSChatMessage{Message: "explain how goroutines work", UserID: "dave"})

	cls := readFrame(t, conn)
	assert.Equal(t, "task_classification", cls["type"])
	assert.Equal(t, "LEARNING", cls["task_type"])
	assert.NotEmpty(t, cls["agents"])

	resp := readFrame(t, conn)
	require.Equal(t, "response", resp["type"])
	body, ok := resp["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello there", body["response"])
	assert.Equal(t, "dave", body["user_id"])
}

func TestWSChat_EmptyMessage(t *testing.T) {
	env := newTestServer(t)
	server := httptest.NewServer(env.server.Handler())
	defer server.Close()

	conn := dialWS(t, server)
	writeFrameJSON(t, conn, &WSChatMessage{Message: ""})

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])

	// The connection survives a bad message.
	writeFrameJSON(t, conn, &WSChatMessage{Message: "hello"})
	cls := readFrame(t, conn)
	assert.Equal(t, "task_classification", cls["type"])
}
