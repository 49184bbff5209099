package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dm-service/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

func newUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "" || origin == allowedOrigin
		},
	}
}

// socketConn is a gorilla websocket connection with a buffered, ordered
// outbound queue drained by a single writer goroutine.
type socketConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  logging.Logger

	mu     sync.Mutex
	closed bool
}

func newSocketConn(id string, conn *websocket.Conn, log logging.Logger) *socketConn {
	return &socketConn{
		id:   id,
		ws:   conn,
		send: make(chan []byte, sendBuffer),
		log:  log,
	}
}

func (c *socketConn) ID() string { return c.id }

// Enqueue never blocks. A full buffer means the peer is too slow; the
// connection is reported dead and the hub closes it.
func (c *socketConn) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *socketConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump is the only writer of the underlying connection.
func (c *socketConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug(context.Background(), "websocket write failed", "conn_id", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the read side alive for control frames and returns the
// close reason once the peer goes away.
func (c *socketConn) readPump() (string, bool) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			unexpected := websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			return err.Error(), unexpected
		}
	}
}
