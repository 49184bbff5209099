package repositories

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "email", "full_name", "password_hash", "profile_pic", "is_verified",
	"verification_token", "verification_token_expires_at", "reset_password_token",
	"reset_password_expires_at", "last_login", "created_at", "updated_at",
}

func aliceRow(verified bool, code any) *sqlmock.Rows {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var expires any
	if code != nil {
		expires = at.Add(24 * time.Hour)
	}
	return sqlmock.NewRows(userRowColumns).
		AddRow(aliceID, "alice@example.com", "alice123", "hash", "", verified, code, expires, nil, nil, nil, at, at)
}

func TestUserRepoCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	expires := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users \(email, full_name, password_hash, verification_token, verification_token_expires_at\)`).
		WithArgs("alice@example.com", "alice123", "hash", "123456", expires).
		WillReturnRows(aliceRow(false, "123456"))

	user, err := repo.Create(t.Context(), NewUser{
		Email:                 "alice@example.com",
		FullName:              "alice123",
		PasswordHash:          "hash",
		VerificationToken:     "123456",
		VerificationExpiresAt: expires,
	})

	require.NoError(t, err)
	assert.Equal(t, aliceID, user.ID)
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.VerificationToken)
	assert.Equal(t, "123456", *user.VerificationToken)
}

func TestUserRepoCreateMapsUniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_email_key", want: ErrDuplicateEmail},
		{constraint: "users_full_name_key", want: ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewUserRepo(db)
			mock.ExpectQuery(`INSERT INTO users`).
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tt.constraint})

			_, err := repo.Create(t.Context(), NewUser{Email: "alice@example.com", FullName: "alice123"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserRepoGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(`FROM users WHERE id=\$1`).
		WithArgs(aliceID).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.GetByID(t.Context(), aliceID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepoMarkVerified(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(`UPDATE users SET is_verified=TRUE, verification_token=NULL`).
		WithArgs(aliceID, "123456").
		WillReturnRows(aliceRow(true, nil))

	user, err := repo.MarkVerified(t.Context(), aliceID, "123456")

	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.VerificationToken)
}

func TestUserRepoMarkVerifiedCodeAlreadyUsed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(`WHERE id=\$1 AND verification_token=\$2`).
		WithArgs(aliceID, "123456").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.MarkVerified(t.Context(), aliceID, "123456")
	assert.ErrorIs(t, err, ErrTokenConsumed)
}

func TestUserRepoExecReportsMissingUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectExec(`UPDATE users SET password_hash=\$2, updated_at=NOW\(\) WHERE id=\$1`).
		WithArgs(aliceID, "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(t.Context(), aliceID, "newhash")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepoResetPasswordConsumesToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectExec(`UPDATE users SET password_hash=\$2, reset_password_token=NULL`).
		WithArgs(aliceID, "newhash", "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetPassword(t.Context(), aliceID, "tok", "newhash"))
}

func TestUserRepoResetPasswordTokenSingleUse(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	for _, affected := range []int64{1, 0} {
		mock.ExpectExec(`WHERE id=\$1 AND reset_password_token=\$3`).
			WithArgs(aliceID, "newhash", "tok").
			WillReturnResult(sqlmock.NewResult(0, affected))
	}

	require.NoError(t, repo.ResetPassword(t.Context(), aliceID, "tok", "newhash"))
	assert.ErrorIs(t, repo.ResetPassword(t.Context(), aliceID, "tok", "newhash"), ErrTokenConsumed)
}

func TestUserRepoSearchEscapesWildcards(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	mock.ExpectQuery(`WHERE full_name ILIKE`).
		WithArgs(`50\%\_a`, aliceID).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, err := repo.Search(t.Context(), "50%_a", aliceID)

	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestUserRepoListPartners(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`ORDER BY p.last_at DESC`).
		WithArgs(aliceID).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(bobID, "bob@example.com", "bob", "hash", "", true, nil, nil, nil, nil, nil, at, at))

	users, err := repo.ListPartners(t.Context(), aliceID)

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bobID, users[0].ID)
}
