package channel

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// WebSocket is a channel over a websocket connection to the host, one
// message per frame. A single write pump owns all data writes.
type WebSocket struct {
	conn *websocket.Conn
	send chan core.Frame

	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

// DialWebSocket connects to the host at url.
func DialWebSocket(ctx context.Context, url string, maxSize int64) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "channel").Str("url", url).Msg("websocket channel open")
	return NewWebSocket(conn, maxSize), nil
}

func NewWebSocket(conn *websocket.Conn, maxSize int64) *WebSocket {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	conn.SetReadLimit(maxSize)
	ws := &WebSocket{
		conn:     conn,
		send:     make(chan core.Frame, 64),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	go ws.writePump()
	return ws
}

func (w *WebSocket) Receive(ctx context.Context) (core.Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = w.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		select {
		case <-w.done:
			return nil, ErrClosed
		default:
		}
		// A close handshake from the host is the end of input.
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (w *WebSocket) Send(ctx context.Context, f core.Frame) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.send <- f:
		return nil
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WebSocket) writePump() {
	defer close(w.pumpDone)
	for {
		select {
		case f := <-w.send:
			if err := w.write(f); err != nil {
				log.Error().Err(err).Str("module", "channel").Msg("writePump write error")
				return
			}
		case <-w.done:
			// Flush what was queued before Close.
			for {
				select {
				case f := <-w.send:
					if err := w.write(f); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (w *WebSocket) write(f core.Frame) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, f)
}

// Close flushes queued frames, sends a close message and closes the socket.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		<-w.pumpDone
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = w.conn.Close()
		log.Info().Str("module", "channel").Msg("websocket channel closed")
	})
	return err
}
