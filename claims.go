package identity

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the claim set carried by both token classes. Access tokens
// carry only the subject; refresh tokens additionally carry TID, a random
// per-issuance instance id that keeps two tokens minted in the same second
// from colliding.
type TokenClaims struct {
	jwt.RegisteredClaims
	TID string `json:"tid,omitempty"`
}

// SubjectID returns the account id the token was issued for.
func (c *TokenClaims) SubjectID() string {
	return c.RegisteredClaims.Subject
}
