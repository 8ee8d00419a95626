package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the only token type issued by the agent
const TokenTypeAccess = "access"

type TokenClaims struct {
	Type   string   `json:"type"`
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role
func (c *TokenClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
