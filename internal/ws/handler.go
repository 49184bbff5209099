package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dm-service/internal/auth"
	"dm-service/internal/logging"
	"dm-service/internal/observability"
)

const wsRoutingKey = "ws_events.dm"

// TokenAuthenticator resolves a session token to its claims.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Claims, error)
}

// ConnectionHandler performs the live connection handshake.
type ConnectionHandler struct {
	hub      *Hub
	auth     TokenAuthenticator
	log      logging.Logger
	upgrader websocket.Upgrader
}

// NewConnectionHandler constructs a ConnectionHandler. allowedOrigin is
// matched against the Origin header; empty allows any origin.
func NewConnectionHandler(hub *Hub, authenticator TokenAuthenticator, allowedOrigin string, log logging.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		hub:      hub,
		auth:     authenticator,
		log:      log,
		upgrader: newUpgrader(allowedOrigin),
	}
}

// Handle authenticates, upgrades and registers the connection, then runs
// its pumps until the peer goes away.
func (h *ConnectionHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId is required"})
		return
	}

	claims, err := h.auth.Authenticate(ctx, auth.TokenFromRequest(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Invalid Token"})
		return
	}
	if claims.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"message": "userId does not match session"})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", "user_id", userID, "err", err)
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	identity := observability.Identity{UserID: info.UserID, DeviceID: info.DeviceID, IP: info.IP}
	headers := observability.BuildHeaders(requestID, traceID)
	// The request context ends with the handler; lifecycle events outlive it.
	eventCtx := context.WithoutCancel(ctx)

	conn := newSocketConn(info.ConnID, wsConn, h.log)
	go conn.writePump()
	h.hub.Register(userID, conn, info)

	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(eventCtx, wsRoutingKey,
		observability.NewWSEnvelope("ws_connect", info.ConnID, "", time.Time{}, identity), headers)
	h.log.Info(ctx, "websocket connected", "user_id", userID, "conn_id", info.ConnID)

	go func() {
		reason, unexpected := conn.readPump()
		if unexpected {
			observability.IncWSEvent("ws_error")
			_ = observability.PublishEvent(eventCtx, wsRoutingKey,
				observability.NewWSEnvelope("ws_error", info.ConnID, reason, info.ConnectedAt, identity), headers)
		}

		h.hub.Unregister(conn)
		conn.Close()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(eventCtx, wsRoutingKey,
			observability.NewWSEnvelope("ws_disconnect", info.ConnID, reason, info.ConnectedAt, identity), headers)
		h.log.Info(eventCtx, "websocket disconnected", "user_id", userID, "conn_id", info.ConnID, "reason", reason)
	}()
}
