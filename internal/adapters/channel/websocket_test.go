package channel

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer plays the host: it echoes every message back.
func echoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, err := DialWebSocket(ctx, echoServer(t), 0)
	require.NoError(t, err)
	defer ws.Close()

	for _, msg := range []string{`{"id":1,"ok":true}`, `{"target":1,"event":"running"}`} {
		require.NoError(t, ws.Send(ctx, core.Frame(msg)))
	}
	for _, want := range []string{`{"id":1,"ok":true}`, `{"target":1,"event":"running"}`} {
		f, err := ws.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(f))
	}
}

func TestWebSocketReceiveHonoursContext(t *testing.T) {
	ws, err := DialWebSocket(context.Background(), echoServer(t), 0)
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ws.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebSocketClose(t *testing.T) {
	ws, err := DialWebSocket(context.Background(), echoServer(t), 0)
	require.NoError(t, err)

	require.NoError(t, ws.Close())
	assert.NoError(t, ws.Close())
	assert.ErrorIs(t, ws.Send(context.Background(), core.Frame("x")), ErrClosed)
}

func TestWebSocketHostCloseIsEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ws, err := DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), 0)
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
