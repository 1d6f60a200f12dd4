package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the claims carried by identity-provider tokens that this
// service verifies. The provider signs with the shared HMAC secret; palisade
// never mints tokens of its own.
type TokenClaims struct {
	SubjectKey string `json:"sub_key"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller carries the administrator role.
func (c *TokenClaims) IsAdmin() bool {
	return c.Role == "admin"
}
