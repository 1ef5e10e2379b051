package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the token role (admin = read and export contacts, viewer = read only).
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

const issuer = "cmsweb"

// ErrNoSecret is returned when no signing secret is configured.
var ErrNoSecret = errors.New("no secret configured")

// Claims holds JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// ValidRole reports whether r names a known role.
func ValidRole(r string) bool {
	return r == string(RoleAdmin) || r == string(RoleViewer)
}

// ValidateToken parses and validates a JWT token string with the given secret.
func ValidateToken(tokenString string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !ValidRole(claims.Role) {
		return nil, errors.New("invalid role")
	}
	return claims, nil
}

// NewToken creates a new JWT token for the given subject and role.
func NewToken(secret []byte, sub string, role Role, expiry time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	if !ValidRole(string(role)) {
		return "", errors.New("invalid role")
	}
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Role: string(role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
