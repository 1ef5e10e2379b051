package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any username or password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns a bcrypt hash suitable for the auth.adminpasswordhash setting.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Credentials is the single configured admin account.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Verify checks username and password. It always runs bcrypt so a wrong
// username costs the same as a wrong password.
func (c Credentials) Verify(username, password string) error {
	if c.Username == "" || c.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
	if !userOK || err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
