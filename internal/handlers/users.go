package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/logging"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

// UserHandler serves the user directory.
type UserHandler struct {
	users repositories.UserRepository
	log   logging.Logger
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// searchResult omits the email of other users.
type searchResult struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// Search matches display names by substring, case-insensitively, excluding
// the caller.
func (h *UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, []searchResult{})
		return
	}

	users, err := h.users.Search(c.Request.Context(), query, currentUserID(c))
	if err != nil {
		internalError(c, h.log, "user search failed", err)
		return
	}

	results := make([]searchResult, 0, len(users))
	for _, u := range users {
		results = append(results, searchResult{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic})
	}
	c.JSON(http.StatusOK, results)
}

// GetUser returns one user without credentials.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "user")
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "get user failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListPartners returns the users the caller has a conversation with, most
// recent first.
func (h *UserHandler) ListPartners(c *gin.Context) {
	users, err := h.users.ListPartners(c.Request.Context(), currentUserID(c))
	if err != nil {
		internalError(c, h.log, "list partners failed", err)
		return
	}

	partners := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		partners = append(partners, u.Public())
	}
	c.JSON(http.StatusOK, partners)
}
