package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any, _ map[string]string) error {
	p.keys = append(p.keys, routingKey)
	return p.err
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishEvent(context.Background(), "ws_events.dm", nil, nil))
}

func TestPublishEventCountsErrors(t *testing.T) {
	pub := &recordingPublisher{err: assert.AnError}
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	before := testutil.ToFloat64(amqpPublishErrorsTotal)
	err := PublishEvent(context.Background(), "ws_events.dm", EventEnvelope{}, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrorsTotal))
	assert.Equal(t, []string{"ws_events.dm"}, pub.keys)
}

func TestObserveDelivery(t *testing.T) {
	missed := testutil.ToFloat64(pushMissedTotal.WithLabelValues("test_event"))
	delivered := testutil.ToFloat64(pushDeliveredTotal.WithLabelValues("test_event"))

	ObserveDelivery("test_event", 0)
	ObserveDelivery("test_event", 2)

	assert.Equal(t, missed+1, testutil.ToFloat64(pushMissedTotal.WithLabelValues("test_event")))
	assert.Equal(t, delivered+2, testutil.ToFloat64(pushDeliveredTotal.WithLabelValues("test_event")))
}

func TestHTTPMetricsMiddlewareUsesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "204")))
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(req))
}

func TestNewWSEnvelope(t *testing.T) {
	env := NewWSEnvelope("ws_connect", "c1", "", time.Time{}, Identity{UserID: "u1"})
	assert.Equal(t, "ws_events", env.EventType)
	payload := env.Payload.(map[string]interface{})
	assert.Equal(t, WSEvent{Event: "ws_connect", ConnID: "c1"}, payload["ws"])
	assert.Equal(t, Identity{UserID: "u1"}, payload["identity"])
}

func TestSplitFullMethod(t *testing.T) {
	svc, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", svc)
	assert.Equal(t, "Check", method)

	svc, method = splitFullMethod("bad")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "unknown", method)
}
