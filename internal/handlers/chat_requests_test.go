package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/logging"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

func setupChatRequestRouter(t *testing.T, userID string) (*gin.Engine, *mocks.ChatRequestRepositoryMock, *mocks.UserRepositoryMock, *recordingBus) {
	requests := new(mocks.ChatRequestRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	bus := &recordingBus{}
	h := NewChatRequestHandler(requests, users, bus, logging.Nop())

	r := newTestEngine(t, userID)
	r.POST("/chat-request/:receiverId", h.Send)
	r.GET("/chat-requests", h.List)
	r.POST("/accept-request/:senderId", h.Accept)
	return r, requests, users, bus
}

func TestSendChatRequest(t *testing.T) {
	r, requests, users, bus := setupChatRequestRouter(t, aliceID)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	users.On("GetByID", mock.Anything, bobID).Return(models.User{ID: bobID}, nil).Once()
	requests.On("Create", mock.Anything, bobID, aliceID).
		Return(models.ChatRequest{ReceiverID: bobID, SenderID: aliceID, CreatedAt: created}, nil).Once()

	rec := doJSON(r, http.MethodPost, "/chat-request/"+bobID, "")

	require.Equal(t, http.StatusOK, rec.Code)
	evs := bus.published()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventChatRequest, evs[0].Name)
	assert.Equal(t, bobID, evs[0].Target)
	assert.Equal(t, models.ChatRequestEvent{SenderID: aliceID, CreatedAt: "2024-06-01T12:00:00Z"}, evs[0].Payload)
	requests.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestSendChatRequestToSelf(t *testing.T) {
	r, requests, _, bus := setupChatRequestRouter(t, aliceID)

	rec := doJSON(r, http.MethodPost, "/chat-request/"+aliceID, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	requests.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, bus.published())
}

func TestSendChatRequestUnknownReceiver(t *testing.T) {
	r, requests, users, _ := setupChatRequestRouter(t, aliceID)
	users.On("GetByID", mock.Anything, carolID).Return(nil, repositories.ErrUserNotFound).Once()

	rec := doJSON(r, http.MethodPost, "/chat-request/"+carolID, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	requests.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendChatRequestDuplicate(t *testing.T) {
	r, requests, users, bus := setupChatRequestRouter(t, aliceID)
	users.On("GetByID", mock.Anything, bobID).Return(models.User{ID: bobID}, nil).Once()
	requests.On("Create", mock.Anything, bobID, aliceID).Return(nil, repositories.ErrRequestExists).Once()

	rec := doJSON(r, http.MethodPost, "/chat-request/"+bobID, "")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Already requested", decodeBody(t, rec)["message"])
	assert.Empty(t, bus.published())
}

func TestListChatRequests(t *testing.T) {
	r, requests, _, _ := setupChatRequestRouter(t, bobID)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	requests.On("ListPending", mock.Anything, bobID).
		Return([]models.PendingRequest{{SenderID: aliceID, FullName: "alice123", CreatedAt: created}}, nil).Once()

	rec := doJSON(r, http.MethodGet, "/chat-requests", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"_id":"`+aliceID+`","fullName":"alice123","profilePic":"","createdAt":"2024-06-01T12:00:00Z"}]`, rec.Body.String())
}

func TestListChatRequestsEmpty(t *testing.T) {
	r, requests, _, _ := setupChatRequestRouter(t, bobID)
	requests.On("ListPending", mock.Anything, bobID).Return(nil, nil).Once()

	rec := doJSON(r, http.MethodGet, "/chat-requests", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAcceptChatRequest(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		r, requests, _, _ := setupChatRequestRouter(t, bobID)
		requests.On("Accept", mock.Anything, bobID, aliceID).Return(nil).Once()

		rec := doJSON(r, http.MethodPost, "/accept-request/"+aliceID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		requests.AssertExpectations(t)
	})

	t.Run("none pending", func(t *testing.T) {
		r, requests, _, _ := setupChatRequestRouter(t, bobID)
		requests.On("Accept", mock.Anything, bobID, aliceID).Return(repositories.ErrRequestNotFound).Once()

		rec := doJSON(r, http.MethodPost, "/accept-request/"+aliceID, "")

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
