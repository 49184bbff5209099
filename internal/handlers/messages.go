package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dm-service/internal/events"
	"dm-service/internal/logging"
	"dm-service/internal/media"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

// MessageHandler manages direct message endpoints.
type MessageHandler struct {
	messages repositories.MessageRepository
	users    repositories.UserRepository
	requests repositories.ChatRequestRepository
	images   media.ImageHost
	bus      events.Bus
	gated    bool
	log      logging.Logger
}

// NewMessageHandler builds a MessageHandler. With gated set, sending
// requires an accepted chat request between the pair.
func NewMessageHandler(messages repositories.MessageRepository, users repositories.UserRepository, requests repositories.ChatRequestRepository,
	images media.ImageHost, bus events.Bus, gated bool, log logging.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		users:    users,
		requests: requests,
		images:   images,
		bus:      bus,
		gated:    gated,
		log:      log,
	}
}

// History returns the conversation with the user in :id, oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	partnerID, ok := parseIDParam(c, "id", "user")
	if !ok {
		return
	}

	msgs, err := h.messages.ListConversation(c.Request.Context(), currentUserID(c), partnerID)
	if err != nil {
		internalError(c, h.log, "load conversation failed", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Text    string `json:"text"`
	Image   string `json:"image"`
	ReplyTo string `json:"replyTo"`
}

// Send stores a message to the user in :id and pushes it to the receiver.
func (h *MessageHandler) Send(c *gin.Context) {
	receiverID, ok := parseIDParam(c, "id", "user")
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		fail(c, http.StatusBadRequest, "Message must include text or an image")
		return
	}

	ctx := c.Request.Context()
	senderID := currentUserID(c)

	if _, err := h.users.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		internalError(c, h.log, "receiver lookup failed", err)
		return
	}

	if h.gated && senderID != receiverID {
		accepted, err := h.requests.IsAccepted(ctx, senderID, receiverID)
		if err != nil {
			internalError(c, h.log, "chat request check failed", err)
			return
		}
		if !accepted {
			fail(c, http.StatusForbidden, "Chat request has not been accepted")
			return
		}
	}

	msg := models.Message{SenderID: senderID, ReceiverID: receiverID, Text: req.Text}

	if req.ReplyTo != "" {
		replyID, err := uuid.Parse(req.ReplyTo)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid reply id")
			return
		}
		target, err := h.messages.Get(ctx, replyID.String())
		if errors.Is(err, repositories.ErrMessageNotFound) {
			fail(c, http.StatusNotFound, "Reply target not found")
			return
		}
		if err != nil {
			internalError(c, h.log, "reply lookup failed", err)
			return
		}
		if !target.InConversation(senderID, receiverID) {
			fail(c, http.StatusBadRequest, "Reply target is not part of this conversation")
			return
		}
		msg.ReplyTo = target.Snapshot()
	}

	if req.Image != "" {
		url, err := h.images.Upload(ctx, req.Image)
		if errors.Is(err, media.ErrInvalidImage) {
			fail(c, http.StatusBadRequest, "Invalid image")
			return
		}
		if err != nil {
			observability.IncDownstreamFailure("image", "message")
			h.log.Warn(ctx, "message image upload failed", "user_id", senderID, "err", err)
			fail(c, http.StatusBadGateway, "Image upload failed")
			return
		}
		msg.Image = url
	}

	stored, err := h.messages.Create(ctx, msg)
	if err != nil {
		internalError(c, h.log, "store message failed", err)
		return
	}

	push(ctx, h.bus, h.log, models.EventNewMessage, receiverID, stored)
	c.JSON(http.StatusCreated, stored)
}

type updateMessageRequest struct {
	Text string `json:"text"`
}

// Update edits the text of the caller's own message.
func (h *MessageHandler) Update(c *gin.Context) {
	msg, ok := h.loadMessage(c)
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, "Text is required")
		return
	}
	if msg.SenderID != currentUserID(c) {
		fail(c, http.StatusForbidden, "Unauthorized")
		return
	}

	ctx := c.Request.Context()
	updated, err := h.messages.UpdateText(ctx, msg.ID, req.Text)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "update message failed", err)
		return
	}

	push(ctx, h.bus, h.log, models.EventUpdatedMessage, updated.ReceiverID, updated)
	c.JSON(http.StatusOK, updated)
}

type reactRequest struct {
	Emoji string `json:"emoji"`
}

// React sets the single reaction slot. Either participant may react and
// both are notified.
func (h *MessageHandler) React(c *gin.Context) {
	msg, ok := h.loadMessage(c)
	if !ok {
		return
	}

	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !msg.IsParticipant(currentUserID(c)) {
		fail(c, http.StatusForbidden, "Unauthorized")
		return
	}

	ctx := c.Request.Context()
	updated, err := h.messages.SetReaction(ctx, msg.ID, req.Emoji)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "react failed", err)
		return
	}

	push(ctx, h.bus, h.log, models.EventUpdatedMessage, updated.ReceiverID, updated)
	if updated.SenderID != updated.ReceiverID {
		push(ctx, h.bus, h.log, models.EventUpdatedMessage, updated.SenderID, updated)
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes the caller's own message. The counterpart is not notified.
func (h *MessageHandler) Delete(c *gin.Context) {
	msg, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if msg.SenderID != currentUserID(c) {
		fail(c, http.StatusForbidden, "Unauthorized")
		return
	}

	err := h.messages.Delete(c.Request.Context(), msg.ID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		fail(c, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "delete message failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// DeleteChat removes every message between the caller and :userId.
func (h *MessageHandler) DeleteChat(c *gin.Context) {
	partnerID, ok := parseIDParam(c, "userId", "user")
	if !ok {
		return
	}

	n, err := h.messages.DeleteConversation(c.Request.Context(), currentUserID(c), partnerID)
	if err != nil {
		internalError(c, h.log, "delete chat failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted", "deleted": n})
}

func (h *MessageHandler) loadMessage(c *gin.Context) (models.Message, bool) {
	id, ok := parseIDParam(c, "id", "message")
	if !ok {
		return models.Message{}, false
	}

	msg, err := h.messages.Get(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		fail(c, http.StatusNotFound, "Not found")
		return models.Message{}, false
	}
	if err != nil {
		internalError(c, h.log, "load message failed", err)
		return models.Message{}, false
	}
	return msg, true
}
