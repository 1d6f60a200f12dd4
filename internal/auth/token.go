package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/palisadehq/palisade/internal/models"
)

// TokenVerifier validates identity-provider tokens. The provider signs with
// HS256 and the shared secret; palisade never issues tokens itself.
type TokenVerifier struct {
	secret string
}

// NewTokenVerifier creates a new TokenVerifier
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// ValidateToken parses and validates a token string, returning its claims.
func (tv *TokenVerifier) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(tv.secret), nil
	})
	if err != nil {
		return nil, models.ErrUnauthorized
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}
	if claims.SubjectKey == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
