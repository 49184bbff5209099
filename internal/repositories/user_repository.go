package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
	ErrDuplicateName  = errors.New("username already taken")
	// ErrTokenConsumed means the verification code or reset token was
	// already used or replaced by the time the write ran.
	ErrTokenConsumed = errors.New("token already consumed")
)

// NewUser carries the fields set at signup.
type NewUser struct {
	Email                 string
	FullName              string
	PasswordHash          string
	VerificationToken     string
	VerificationExpiresAt time.Time
}

// UserRepository abstracts the user directory.
type UserRepository interface {
	Create(ctx context.Context, u NewUser) (models.User, error)
	FindByEmailOrName(ctx context.Context, email, fullName string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (models.User, error)
	GetByResetToken(ctx context.Context, token string) (models.User, error)
	MarkVerified(ctx context.Context, id, code string) (models.User, error)
	ClearVerificationToken(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, token, passwordHash string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, u models.User) (models.User, error)
	Search(ctx context.Context, query, excludeID string) ([]models.User, error)
	ListPartners(ctx context.Context, userID string) ([]models.User, error)
}

const userColumns = `id, email, full_name, password_hash, profile_pic, is_verified,
        verification_token, verification_token_expires_at, reset_password_token,
        reset_password_expires_at, last_login, created_at, updated_at`

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new unverified user.
func (r *UserRepo) Create(ctx context.Context, u NewUser) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `INSERT INTO users (email, full_name, password_hash, verification_token, verification_token_expires_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		u.Email, u.FullName, u.PasswordHash, u.VerificationToken, u.VerificationExpiresAt)
	if err != nil {
		return models.User{}, mapUserWriteErr(err)
	}
	return user, nil
}

// FindByEmailOrName returns any user holding the email or the display name.
func (r *UserRepo) FindByEmailOrName(ctx context.Context, email, fullName string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1 OR full_name=$2 LIMIT 1`, email, fullName)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByEmail fetches a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

// GetByVerificationToken fetches the user owning a verification code,
// expired or not. Expiry is the caller's decision.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token=$1`, token)
}

// GetByResetToken fetches the user owning a password reset token.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_password_token=$1`, token)
}

// MarkVerified flags the user verified and consumes code. The write only
// applies while code is still the stored one.
func (r *UserRepo) MarkVerified(ctx context.Context, id, code string) (models.User, error) {
	user, err := r.getOne(ctx, `UPDATE users SET is_verified=TRUE, verification_token=NULL,
        verification_token_expires_at=NULL, updated_at=NOW()
        WHERE id=$1 AND verification_token=$2 RETURNING `+userColumns, id, code)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, ErrTokenConsumed
	}
	return user, err
}

// ClearVerificationToken drops an expired verification code.
func (r *UserRepo) ClearVerificationToken(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET verification_token=NULL, verification_token_expires_at=NULL,
        updated_at=NOW() WHERE id=$1`, id)
}

// SetResetToken stores a password reset token.
func (r *UserRepo) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.exec(ctx, `UPDATE users SET reset_password_token=$2, reset_password_expires_at=$3,
        updated_at=NOW() WHERE id=$1`, id, token, expiresAt)
}

// ClearResetToken drops an expired reset token.
func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET reset_password_token=NULL, reset_password_expires_at=NULL,
        updated_at=NOW() WHERE id=$1`, id)
}

// ResetPassword sets a new hash and consumes token in one write. Only one
// caller can consume a given token.
func (r *UserRepo) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	err := r.exec(ctx, `UPDATE users SET password_hash=$2, reset_password_token=NULL,
        reset_password_expires_at=NULL, updated_at=NOW()
        WHERE id=$1 AND reset_password_token=$3`, id, passwordHash, token)
	if errors.Is(err, ErrUserNotFound) {
		return ErrTokenConsumed
	}
	return err
}

// UpdatePassword replaces the credential hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, passwordHash)
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login=$2 WHERE id=$1`, id, at)
}

// UpdateProfile writes the editable profile fields of u.
func (r *UserRepo) UpdateProfile(ctx context.Context, u models.User) (models.User, error) {
	user, err := r.getOne(ctx, `UPDATE users SET full_name=$2, email=$3, profile_pic=$4, is_verified=$5,
        verification_token=$6, verification_token_expires_at=$7, updated_at=NOW()
        WHERE id=$1 RETURNING `+userColumns,
		u.ID, u.FullName, u.Email, u.ProfilePic, u.IsVerified, u.VerificationToken, u.VerificationTokenExpiresAt)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return models.User{}, mapUserWriteErr(err)
	}
	return user, err
}

// Search matches display names case-insensitively, excluding excludeID.
func (r *UserRepo) Search(ctx context.Context, query, excludeID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE full_name ILIKE '%' || $1 || '%' ESCAPE '\' AND id<>$2
        ORDER BY full_name ASC LIMIT 50`, escapeLike(query), excludeID)
	return users, err
}

// ListPartners returns every user that exchanged at least one message with
// userID, most recent conversation first.
func (r *UserRepo) ListPartners(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT u.id, u.email, u.full_name, u.password_hash, u.profile_pic, u.is_verified,
        u.verification_token, u.verification_token_expires_at, u.reset_password_token,
        u.reset_password_expires_at, u.last_login, u.created_at, u.updated_at
        FROM users u
        JOIN (
            SELECT CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END AS partner_id,
                   MAX(created_at) AS last_at
            FROM messages
            WHERE sender_id=$1 OR receiver_id=$1
            GROUP BY partner_id
        ) p ON p.partner_id = u.id
        ORDER BY p.last_at DESC`, userID)
	return users, err
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapUserWriteErr(err error) error {
	constraint, ok := uniqueConstraint(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(constraint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(constraint, "full_name"):
		return ErrDuplicateName
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
