package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"dm-service/internal/clientsync"
	"dm-service/internal/models"
)

// Stream is the live push connection of one signed-in user.
type Stream struct {
	conn *websocket.Conn
}

// DialStream opens /ws for userID, presenting the session cookies in jar.
func DialStream(ctx context.Context, base *url.URL, userID string, jar http.CookieJar) (*Stream, error) {
	wsURL := *base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{"userId": {userID}}.Encode()

	dialer := *websocket.DefaultDialer
	dialer.Jar = jar

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial stream: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next pushed event. Frames with an unknown event name
// are skipped.
func (s *Stream) Next() (clientsync.Action, error) {
	for {
		var env models.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return nil, err
		}
		action, err := clientsync.DecodeEvent(env)
		if errors.Is(err, clientsync.ErrUnknownEvent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return action, nil
	}
}

// Run feeds every pushed event to dispatch until the connection drops or
// ctx is done. A normal close returns nil.
func (s *Stream) Run(ctx context.Context, dispatch func(context.Context, clientsync.Action)) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		action, err := s.Next()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		dispatch(ctx, action)
	}
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
