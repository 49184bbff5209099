package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/clientsync"
	"dm-service/internal/models"
)

func TestStreamDecodesPushedEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "session-token", Path: "/"})
		_, _ = w.Write([]byte(`{"_id":"alice"}`))
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("jwt"); err != nil || c.Value != "session-token" || r.URL.Query().Get("userId") != "alice" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range []string{
			`{"event":"getOnlineUsers","data":["alice"]}`,
			`{"event":"typing","data":{}}`,
			`{"event":"newMessage","data":{"_id":"m1","senderId":"bob","receiverId":"alice","text":"hi","edited":false,"createdAt":"2024-06-01T12:00:00Z"}}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api, err := NewAPI(srv.URL)
	require.NoError(t, err)

	_, err = DialStream(t.Context(), api.BaseURL(), "alice", api.Jar())
	require.Error(t, err, "dial without a session must fail")

	_, err = api.Login(t.Context(), "alice@example.com", "x")
	require.NoError(t, err)

	stream, err := DialStream(t.Context(), api.BaseURL(), "alice", api.Jar())
	require.NoError(t, err)
	defer stream.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var got []clientsync.Action
	err = stream.Run(ctx, func(_ context.Context, a clientsync.Action) {
		got = append(got, a)
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, clientsync.OnlineSetChanged{UserIDs: []string{"alice"}}, got[0])
	pushed, ok := got[1].(clientsync.MessagePushed)
	require.True(t, ok)
	assert.Equal(t, models.Message{
		ID:         "m1",
		SenderID:   "bob",
		ReceiverID: "alice",
		Text:       "hi",
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}, pushed.Message)
}
