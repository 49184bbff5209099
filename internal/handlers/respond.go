package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dm-service/internal/events"
	"dm-service/internal/logging"
	"dm-service/internal/middleware"
)

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// internalError logs err against the request and answers a generic 500.
func internalError(c *gin.Context, log logging.Logger, op string, err error) {
	log.Error(c.Request.Context(), op, "err", err, "request_id", requestIDFromContext(c), "user_id", currentUserID(c))
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, "Internal server error")
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// parseIDParam reads a UUID path parameter or answers 400.
func parseIDParam(c *gin.Context, name, label string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid "+label+" id")
		return "", false
	}
	return id.String(), true
}

// push hands a persisted change to the delivery plane. Delivery is best
// effort and never fails the request.
func push(ctx context.Context, bus events.Bus, log logging.Logger, name, target string, payload any) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, events.Event{Name: name, Target: target, Payload: payload}); err != nil {
		log.Warn(ctx, "push event publish failed", "event", name, "target", target, "err", err)
	}
}
