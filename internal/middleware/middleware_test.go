package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/auth"
	"dm-service/internal/logging"
)

func setupAuthRouter(authenticator TokenAuthenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(authenticator), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	authenticator := auth.NewAuthenticator(auth.NewTokenManager("secret", time.Hour), auth.NewMemoryRevocations())
	token, _, err := authenticator.Tokens().Issue("u1")
	require.NoError(t, err)
	router := setupAuthRouter(authenticator)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "garbage", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, status: http.StatusOK, body: "u1"},
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token}) }, status: http.StatusOK, body: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	authenticator := auth.NewAuthenticator(auth.NewTokenManager("secret", time.Hour), auth.NewMemoryRevocations())
	token, claims, err := authenticator.Tokens().Issue("u1")
	require.NoError(t, err)
	require.NoError(t, authenticator.Revoke(t.Context(), claims))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	setupAuthRouter(authenticator).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDAndLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logging.New(&buf, false)))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), "request_id=req-42")
	assert.Contains(t, buf.String(), "status=204")
}
