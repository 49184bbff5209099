package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dm-service/internal/auth"
	"dm-service/internal/events"
	"dm-service/internal/middleware"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
	carolID = "33333333-3333-3333-3333-333333333333"
	msgID   = "44444444-4444-4444-4444-444444444444"
)

// recordingBus captures published push events.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, ev events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func newTestAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(auth.NewTokenManager("test-secret", time.Hour), auth.NewMemoryRevocations())
}

func newTestEngine(t *testing.T, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, userID)
			c.Next()
		})
	}
	return r
}
