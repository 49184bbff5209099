package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dm-service/internal/auth"
	"dm-service/internal/events"
	"dm-service/internal/logging"
	"dm-service/internal/mail"
	"dm-service/internal/media"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

const (
	verificationTTL = 24 * time.Hour
	resetTokenTTL   = time.Hour
)

// AuthOptions carries the deployment specific bits of the auth flows.
type AuthOptions struct {
	ClientURL    string
	CookieSecure bool
}

// AuthHandler serves the account lifecycle endpoints.
type AuthHandler struct {
	users    repositories.UserRepository
	sessions *auth.Authenticator
	mailer   mail.Mailer
	images   media.ImageHost
	bus      events.Bus
	audit    *telemetry.AuditEmitter
	opts     AuthOptions
	log      logging.Logger
	now      func() time.Time
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, sessions *auth.Authenticator, mailer mail.Mailer, images media.ImageHost,
	bus events.Bus, audit *telemetry.AuditEmitter, opts AuthOptions, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		images:   images,
		bus:      bus,
		audit:    audit,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an unverified account, starts a session and mails the
// verification code.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}
	for _, check := range []error{
		auth.ValidateFullName(req.FullName),
		auth.ValidateEmail(req.Email),
		auth.ValidatePassword(req.Password),
	} {
		if check != nil {
			fail(c, http.StatusBadRequest, check.Error())
			return
		}
	}

	ctx := c.Request.Context()
	existing, err := h.users.FindByEmailOrName(ctx, req.Email, req.FullName)
	switch {
	case err == nil && existing.Email == req.Email:
		fail(c, http.StatusConflict, "Email already in use")
		return
	case err == nil:
		fail(c, http.StatusConflict, "Username already taken")
		return
	case !errors.Is(err, repositories.ErrUserNotFound):
		internalError(c, h.log, "signup lookup failed", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, h.log, "signup hash failed", err)
		return
	}
	code, err := auth.NewVerificationCode()
	if err != nil {
		internalError(c, h.log, "signup code failed", err)
		return
	}

	user, err := h.users.Create(ctx, repositories.NewUser{
		Email:                 req.Email,
		FullName:              req.FullName,
		PasswordHash:          hash,
		VerificationToken:     code,
		VerificationExpiresAt: h.now().Add(verificationTTL),
	})
	if err != nil {
		if h.conflict(c, err) {
			return
		}
		internalError(c, h.log, "signup create failed", err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}

	if err := h.mailer.SendVerification(ctx, user.Email, code); err != nil {
		observability.IncDownstreamFailure("mail", "verification")
		h.log.Warn(ctx, "verification email failed", "user_id", user.ID, "err", err)
	}
	h.audit.Emit(ctx, "INFO", "user signed up", requestIDFromContext(c), &user.ID)

	c.JSON(http.StatusCreated, user.Public())
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid credentials")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if errors.Is(err, repositories.ErrUserNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		h.audit.Emit(ctx, "WARN", "login failed", requestIDFromContext(c), nil)
		fail(c, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		internalError(c, h.log, "login lookup failed", err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}

	now := h.now().UTC()
	if err := h.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		internalError(c, h.log, "login touch failed", err)
		return
	}
	user.LastLogin = &now
	h.audit.Emit(ctx, "INFO", "user logged in", requestIDFromContext(c), &user.ID)

	c.JSON(http.StatusOK, user)
}

// Logout revokes the presented session, if any, and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := auth.TokenFromRequest(c.Request); raw != "" {
		if claims, err := h.sessions.Authenticate(ctx, raw); err == nil {
			if err := h.sessions.Revoke(ctx, claims); err != nil {
				h.log.Warn(ctx, "token revoke failed", "user_id", claims.UserID, "err", err)
			}
		}
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Check returns the authenticated user.
func (h *AuthHandler) Check(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), currentUserID(c))
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "check session failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
}

// UpdateProfile changes avatar, display name and email. A new email needs
// verification again. An image upload failure keeps the other changes and
// answers 502.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.ProfilePic == "" && req.FullName == "" && req.Email == "" {
		fail(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	user, err := h.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "profile lookup failed", err)
		return
	}

	if req.FullName != "" && req.FullName != user.FullName {
		if err := auth.ValidateFullName(req.FullName); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		user.FullName = req.FullName
	}

	var newCode string
	if req.Email != "" && req.Email != user.Email {
		if err := auth.ValidateEmail(req.Email); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		other, err := h.users.GetByEmail(ctx, req.Email)
		if err == nil && other.ID != userID {
			fail(c, http.StatusConflict, "Email already in use")
			return
		}
		if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
			internalError(c, h.log, "profile email lookup failed", err)
			return
		}
		if newCode, err = auth.NewVerificationCode(); err != nil {
			internalError(c, h.log, "profile code failed", err)
			return
		}
		expires := h.now().Add(verificationTTL)
		user.Email = req.Email
		user.IsVerified = false
		user.VerificationToken = &newCode
		user.VerificationTokenExpiresAt = &expires
	}

	var uploadErr error
	if req.ProfilePic != "" {
		url, err := h.images.Upload(ctx, req.ProfilePic)
		if err != nil {
			uploadErr = err
			observability.IncDownstreamFailure("image", "profile")
			h.log.Warn(ctx, "profile image upload failed", "user_id", userID, "err", err)
		} else {
			user.ProfilePic = url
		}
	}

	updated, err := h.users.UpdateProfile(ctx, user)
	if err != nil {
		if h.conflict(c, err) {
			return
		}
		internalError(c, h.log, "profile update failed", err)
		return
	}

	if newCode != "" {
		if err := h.mailer.SendVerification(ctx, updated.Email, newCode); err != nil {
			observability.IncDownstreamFailure("mail", "verification")
			h.log.Warn(ctx, "verification email failed", "user_id", userID, "err", err)
		}
	}

	public := updated.Public()
	push(ctx, h.bus, h.log, models.EventProfileUpdated, "", updated.Directory())

	if uploadErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{"message": "Image upload failed", "user": public})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": public})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword replaces the credential after checking the old one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		fail(c, http.StatusBadRequest, "Both fields are required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByID(ctx, currentUserID(c))
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "change password lookup failed", err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.OldPassword) {
		fail(c, http.StatusBadRequest, "Incorrect old password")
		return
	}
	if auth.CheckPassword(user.PasswordHash, req.NewPassword) {
		fail(c, http.StatusBadRequest, "New password must be different from the old password")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		internalError(c, h.log, "change password hash failed", err)
		return
	}
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		internalError(c, h.log, "change password failed", err)
		return
	}
	h.audit.Emit(ctx, "INFO", "password changed", requestIDFromContext(c), &user.ID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated successfully"})
}

type verifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerifyEmail consumes a verification code. Expired codes are cleared.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}

	ctx := c.Request.Context()
	code := strings.TrimSpace(req.Code)
	user, err := h.users.GetByVerificationToken(ctx, code)
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}
	if err != nil {
		internalError(c, h.log, "verify lookup failed", err)
		return
	}

	if expired(user.VerificationTokenExpiresAt, h.now()) {
		if err := h.users.ClearVerificationToken(ctx, user.ID); err != nil {
			h.log.Warn(ctx, "clear expired verification code failed", "user_id", user.ID, "err", err)
		}
		fail(c, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}

	verified, err := h.users.MarkVerified(ctx, user.ID, code)
	if errors.Is(err, repositories.ErrTokenConsumed) {
		fail(c, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}
	if err != nil {
		internalError(c, h.log, "verify update failed", err)
		return
	}

	if err := h.mailer.SendWelcome(ctx, verified.Email, verified.FullName); err != nil {
		observability.IncDownstreamFailure("mail", "welcome")
		h.log.Warn(ctx, "welcome email failed", "user_id", verified.ID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email verified successfully",
		"user":    verified.Public(),
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ForgotPassword stores a reset token and mails the reset link. A mail
// failure is reported to the caller.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Email is required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c, h.log, "forgot password lookup failed", err)
		return
	}

	token, err := auth.NewResetToken()
	if err != nil {
		internalError(c, h.log, "reset token failed", err)
		return
	}
	if err := h.users.SetResetToken(ctx, user.ID, token, h.now().Add(resetTokenTTL)); err != nil {
		internalError(c, h.log, "store reset token failed", err)
		return
	}

	resetURL := strings.TrimRight(h.opts.ClientURL, "/") + "/reset-password/" + token
	if err := h.mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		observability.IncDownstreamFailure("mail", "password_reset")
		h.log.Error(ctx, "password reset email failed", "user_id", user.ID, "err", err)
		fail(c, http.StatusBadGateway, "Failed to send password reset email")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset link sent to your email"})
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// ResetPassword consumes a reset token and sets the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Password is required")
		return
	}

	ctx := c.Request.Context()
	token := c.Param("token")
	user, err := h.users.GetByResetToken(ctx, token)
	if errors.Is(err, repositories.ErrUserNotFound) {
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		internalError(c, h.log, "reset lookup failed", err)
		return
	}

	if expired(user.ResetPasswordExpiresAt, h.now()) {
		if err := h.users.ClearResetToken(ctx, user.ID); err != nil {
			h.log.Warn(ctx, "clear expired reset token failed", "user_id", user.ID, "err", err)
		}
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, h.log, "reset hash failed", err)
		return
	}
	err = h.users.ResetPassword(ctx, user.ID, token, hash)
	if errors.Is(err, repositories.ErrTokenConsumed) {
		fail(c, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		internalError(c, h.log, "reset password failed", err)
		return
	}

	if err := h.mailer.SendResetSuccess(ctx, user.Email); err != nil {
		observability.IncDownstreamFailure("mail", "reset_success")
		h.log.Warn(ctx, "reset confirmation email failed", "user_id", user.ID, "err", err)
	}
	h.audit.Emit(ctx, "INFO", "password reset", requestIDFromContext(c), &user.ID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successful"})
}

func (h *AuthHandler) startSession(c *gin.Context, userID string) bool {
	token, _, err := h.sessions.Issue(userID)
	if err != nil {
		internalError(c, h.log, "issue session failed", err)
		return false
	}
	h.setCookie(c, token, int(h.sessions.Tokens().TTL().Seconds()))
	return true
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", h.opts.CookieSecure, true)
}

func (h *AuthHandler) conflict(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, repositories.ErrDuplicateEmail):
		fail(c, http.StatusConflict, "Email already in use")
	case errors.Is(err, repositories.ErrDuplicateName):
		fail(c, http.StatusConflict, "Username already taken")
	default:
		return false
	}
	return true
}

func expired(at *time.Time, now time.Time) bool {
	return at == nil || !now.Before(*at)
}
