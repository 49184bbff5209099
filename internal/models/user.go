package models

import "time"

// User is a persisted identity record.
type User struct {
	ID                         string     `db:"id" json:"_id"`
	Email                      string     `db:"email" json:"email"`
	FullName                   string     `db:"full_name" json:"fullName"`
	PasswordHash               string     `db:"password_hash" json:"-"`
	ProfilePic                 string     `db:"profile_pic" json:"profilePic"`
	IsVerified                 bool       `db:"is_verified" json:"isVerified"`
	VerificationToken          *string    `db:"verification_token" json:"-"`
	VerificationTokenExpiresAt *time.Time `db:"verification_token_expires_at" json:"-"`
	ResetPasswordToken         *string    `db:"reset_password_token" json:"-"`
	ResetPasswordExpiresAt     *time.Time `db:"reset_password_expires_at" json:"-"`
	LastLogin                  *time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt                  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt                  time.Time  `db:"updated_at" json:"updatedAt"`
}

// PublicUser is the projection of a user that other users may see.
type PublicUser struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic"`
	IsVerified bool   `json:"isVerified"`
}

// Public strips credentials and tokens.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		IsVerified: u.IsVerified,
	}
}

// Directory is the projection broadcast to every online user: Public
// without the email.
func (u User) Directory() PublicUser {
	p := u.Public()
	p.Email = ""
	return p
}
