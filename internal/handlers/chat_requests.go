package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dm-service/internal/events"
	"dm-service/internal/logging"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

// ChatRequestHandler drives the none -> requested -> accepted workflow.
type ChatRequestHandler struct {
	requests repositories.ChatRequestRepository
	users    repositories.UserRepository
	bus      events.Bus
	log      logging.Logger
}

// NewChatRequestHandler builds a ChatRequestHandler.
func NewChatRequestHandler(requests repositories.ChatRequestRepository, users repositories.UserRepository, bus events.Bus, log logging.Logger) *ChatRequestHandler {
	return &ChatRequestHandler{requests: requests, users: users, bus: bus, log: log}
}

// Send records a request from the caller to :receiverId and notifies the
// receiver.
func (h *ChatRequestHandler) Send(c *gin.Context) {
	receiverID, ok := parseIDParam(c, "receiverId", "user")
	if !ok {
		return
	}
	senderID := currentUserID(c)
	if receiverID == senderID {
		fail(c, http.StatusBadRequest, "Cannot send a chat request to yourself")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		internalError(c, h.log, "chat request receiver lookup failed", err)
		return
	}

	req, err := h.requests.Create(ctx, receiverID, senderID)
	if errors.Is(err, repositories.ErrRequestExists) {
		fail(c, http.StatusConflict, "Already requested")
		return
	}
	if err != nil {
		internalError(c, h.log, "create chat request failed", err)
		return
	}

	push(ctx, h.bus, h.log, models.EventChatRequest, receiverID, models.ChatRequestEvent{
		SenderID:  senderID,
		CreatedAt: req.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Chat request sent"})
}

// List returns the caller's pending requests with sender profiles.
func (h *ChatRequestHandler) List(c *gin.Context) {
	reqs, err := h.requests.ListPending(c.Request.Context(), currentUserID(c))
	if err != nil {
		internalError(c, h.log, "list chat requests failed", err)
		return
	}
	if reqs == nil {
		reqs = []models.PendingRequest{}
	}
	c.JSON(http.StatusOK, reqs)
}

// Accept consumes the pending request from :senderId.
func (h *ChatRequestHandler) Accept(c *gin.Context) {
	senderID, ok := parseIDParam(c, "senderId", "user")
	if !ok {
		return
	}

	err := h.requests.Accept(c.Request.Context(), currentUserID(c), senderID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		fail(c, http.StatusNotFound, "Chat request not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "accept chat request failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request accepted"})
}
