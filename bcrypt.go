package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the adaptive work factor used for account passwords
// and refresh-token-at-rest hashes.
const DefaultBcryptCost = 10

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// HashRefreshToken hashes a refresh token for at-rest storage. Signed tokens
// exceed bcrypt's 72 byte input limit, so the token is reduced through
// SHA-256 first and the digest is what bcrypt sees.
func HashRefreshToken(token string) (string, error) {
	if token == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword(digestToken(token), DefaultBcryptCost)
	return string(h), err
}

// CompareRefreshTokenAndHash validates a presented refresh token against the
// stored hash.
func CompareRefreshTokenAndHash(token, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), digestToken(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

func digestToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum[:])
	return out
}
