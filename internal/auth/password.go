package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword = errors.New("Password must be at least 8 characters and include uppercase, lowercase, number, and special character")
	ErrBadFullName  = errors.New("Username must be 3-20 characters and only include letters, numbers, and underscores")
	ErrBadEmail     = errors.New("Invalid email format")
)

var (
	fullNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_ ]{3,20}$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// HashPassword hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword requires 8+ characters with lower, upper, digit and a
// non-alphanumeric character.
func ValidatePassword(password string) error {
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if len([]rune(password)) < 8 || !lower || !upper || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

// ValidateFullName accepts 3-20 letters, digits, underscores or spaces with
// at least one letter.
func ValidateFullName(name string) error {
	if !fullNamePattern.MatchString(name) || !hasLetter.MatchString(name) {
		return ErrBadFullName
	}
	return nil
}

// ValidateEmail checks the local@domain.tld shape.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrBadEmail
	}
	return nil
}

// NewVerificationCode returns a random 6-digit code.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewResetToken returns 20 random bytes, hex encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
