package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads from its session token. The signature is
// not checked here; the backend does that on every request.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return claims, nil
}
