// Package client talks to dm-service over REST and the live socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"dm-service/internal/clientsync"
	"dm-service/internal/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("dm-service: status %d", e.Status)
	}
	return fmt.Sprintf("dm-service: %s (status %d)", e.Message, e.Status)
}

// API is a REST client holding the session cookie in its jar.
type API struct {
	base *url.URL
	http *http.Client
}

// NewAPI builds a client for the server at baseURL.
func NewAPI(baseURL string) (*API, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &API{
		base: base,
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// Jar exposes the session cookies for the live socket dialer.
func (a *API) Jar() http.CookieJar {
	return a.http.Jar
}

// BaseURL returns the server root.
func (a *API) BaseURL() *url.URL {
	u := *a.base
	return &u
}

// Signup creates an account and starts a session.
func (a *API) Signup(ctx context.Context, fullName, email, password string) (models.PublicUser, error) {
	var user models.PublicUser
	err := a.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	}, &user)
	return user, err
}

// Login starts a session.
func (a *API) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	var user models.PublicUser
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &user)
	return user, err
}

// Logout ends the session.
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Check returns the signed-in user.
func (a *API) Check(ctx context.Context) (models.PublicUser, error) {
	var user models.PublicUser
	err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &user)
	return user, err
}

// VerifyEmail submits a verification code.
func (a *API) VerifyEmail(ctx context.Context, code string) (models.PublicUser, error) {
	var resp struct {
		User models.PublicUser `json:"user"`
	}
	err := a.do(ctx, http.MethodPost, "/api/auth/verify-email", map[string]string{"code": code}, &resp)
	return resp.User, err
}

// Partners lists the users with an existing conversation.
func (a *API) Partners(ctx context.Context) ([]models.PublicUser, error) {
	var users []models.PublicUser
	err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users)
	return users, err
}

// History fetches the conversation with partnerID.
func (a *API) History(ctx context.Context, partnerID string) ([]models.Message, error) {
	var msgs []models.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(partnerID), nil, &msgs)
	return msgs, err
}

// User looks up one user in the directory.
func (a *API) User(ctx context.Context, id string) (models.PublicUser, error) {
	var user models.PublicUser
	err := a.do(ctx, http.MethodGet, "/api/users/user/"+url.PathEscape(id), nil, &user)
	return user, err
}

// Search finds users by display name.
func (a *API) Search(ctx context.Context, query string) ([]models.PublicUser, error) {
	var users []models.PublicUser
	err := a.do(ctx, http.MethodGet, "/api/users/search?query="+url.QueryEscape(query), nil, &users)
	return users, err
}

// Send posts a message to partnerID.
func (a *API) Send(ctx context.Context, partnerID string, in clientsync.SendInput) (models.Message, error) {
	var msg models.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(partnerID), in, &msg)
	return msg, err
}

// Edit replaces the text of an own message.
func (a *API) Edit(ctx context.Context, messageID, text string) (models.Message, error) {
	var msg models.Message
	err := a.do(ctx, http.MethodPut, "/api/messages/update/"+url.PathEscape(messageID), map[string]string{"text": text}, &msg)
	return msg, err
}

// React sets the reaction of a message.
func (a *API) React(ctx context.Context, messageID, emoji string) (models.Message, error) {
	var msg models.Message
	err := a.do(ctx, http.MethodPut, "/api/messages/react/"+url.PathEscape(messageID), map[string]string{"emoji": emoji}, &msg)
	return msg, err
}

// DeleteMessage removes an own message.
func (a *API) DeleteMessage(ctx context.Context, messageID string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/delete/"+url.PathEscape(messageID), nil, nil)
}

// DeleteChat removes the conversation with partnerID.
func (a *API) DeleteChat(ctx context.Context, partnerID string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/chat/"+url.PathEscape(partnerID), nil, nil)
}

// SendChatRequest asks receiverID to chat.
func (a *API) SendChatRequest(ctx context.Context, receiverID string) error {
	return a.do(ctx, http.MethodPost, "/api/messages/chat-request/"+url.PathEscape(receiverID), nil, nil)
}

// ChatRequests lists pending incoming requests.
func (a *API) ChatRequests(ctx context.Context) ([]models.PendingRequest, error) {
	var reqs []models.PendingRequest
	err := a.do(ctx, http.MethodGet, "/api/messages/chat-requests", nil, &reqs)
	return reqs, err
}

// AcceptChatRequest accepts the pending request from senderID.
func (a *API) AcceptChatRequest(ctx context.Context, senderID string) error {
	return a.do(ctx, http.MethodPost, "/api/messages/accept-request/"+url.PathEscape(senderID), nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ clientsync.API = (*API)(nil)
