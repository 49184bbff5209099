package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/auth"
	"dm-service/internal/logging"
	"dm-service/internal/middleware"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
)

func TestRegisterGuardsProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := new(mocks.UserRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	requests := new(mocks.ChatRequestRepositoryMock)
	sessions := newTestAuthenticator()
	bus := &recordingBus{}

	h := Handlers{
		Auth:         NewAuthHandler(users, sessions, new(mocks.MailerMock), new(mocks.ImageHostMock), bus, nil, AuthOptions{}, logging.Nop()),
		Users:        NewUserHandler(users, logging.Nop()),
		Messages:     NewMessageHandler(messages, users, requests, new(mocks.ImageHostMock), bus, false, logging.Nop()),
		ChatRequests: NewChatRequestHandler(requests, users, bus, logging.Nop()),
	}
	r := gin.New()
	h.Register(r, middleware.AuthMiddleware(sessions))

	for _, path := range []string{"/api/auth/check", "/api/messages/users", "/api/messages/chat-requests", "/api/users/search?query=a"} {
		rec := doJSON(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	token, _, err := sessions.Issue(aliceID)
	require.NoError(t, err)
	users.On("ListPartners", mock.Anything, aliceID).Return([]models.User{}, nil).Once()

	rec := doJSON(r, http.MethodGet, "/api/messages/users", "", &http.Cookie{Name: auth.CookieName, Value: token})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	users.AssertExpectations(t)
}
