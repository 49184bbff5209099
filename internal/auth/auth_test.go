package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, claims, err := m.Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	parsed, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.UserID)
	assert.Equal(t, claims.ID, parsed.ID)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return issued }
	token, _, err := m.Issue("user-1")
	require.NoError(t, err)

	other := NewTokenManager("other", time.Minute)
	other.now = m.now
	_, err = other.Parse(token)
	assert.Error(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Parse(token)
	assert.Error(t, err)
}

func TestAuthenticatorHonoursRevocation(t *testing.T) {
	ctx := context.Background()
	a := NewAuthenticator(NewTokenManager("secret", time.Hour), NewMemoryRevocations())

	token, _, err := a.Tokens().Issue("user-1")
	require.NoError(t, err)

	claims, err := a.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, a.Revoke(ctx, claims))
	_, err = a.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestMemoryRevocationsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryRevocations()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Revoke(ctx, "jti", now.Add(time.Minute)))
	revoked, _ := store.IsRevoked(ctx, "jti")
	assert.True(t, revoked)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	revoked, _ = store.IsRevoked(ctx, "jti")
	assert.False(t, revoked)
}

func TestTokenFromRequestPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "c"})
	assert.Equal(t, "c", TokenFromRequest(req))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Str0ng!pass"))
	for _, weak := range []string{"short1!", "alllower1!", "ALLUPPER1!", "NoDigits!!", "NoSpecial12"} {
		assert.ErrorIs(t, ValidatePassword(weak), ErrWeakPassword, weak)
	}
}

func TestValidateFullName(t *testing.T) {
	assert.NoError(t, ValidateFullName("alice123"))
	assert.NoError(t, ValidateFullName("Alice Smith"))
	assert.Error(t, ValidateFullName("ab"))
	assert.Error(t, ValidateFullName("12345"))
	assert.Error(t, ValidateFullName("bad-name"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.Error(t, ValidateEmail("alice@example"))
	assert.Error(t, ValidateEmail("al ice@example.com"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "Str0ng!pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestCodesShape(t *testing.T) {
	code, err := NewVerificationCode()
	require.NoError(t, err)
	assert.Regexp(t, `^[1-9][0-9]{5}$`, code)

	token, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, token, 40)
}
