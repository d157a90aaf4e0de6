package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService signs and validates both token classes. Access and refresh
// tokens use distinct secrets so a compromise of one does not expose the
// other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	logger        Logger

	// now is swappable in tests
	now func() time.Time
}

// NewTokenService creates a TokenService from the process configuration.
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.TokenIssuer,
		logger:        defLogger{},
		now:           time.Now,
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// AccessTTL exposes the configured access token lifetime.
func (ts *TokenService) AccessTTL() time.Duration { return ts.accessTTL }

// RefreshTTL exposes the configured refresh token lifetime.
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

// SignAccessToken mints a short lived stateless token carrying only the
// subject id. It is never persisted and cannot be revoked before expiry.
func (ts *TokenService) SignAccessToken(subject string) (string, error) {
	return ts.sign(subject, "", ts.accessSecret, ts.accessTTL)
}

// SignRefreshToken mints a long lived token carrying the subject plus a
// fresh instance id. The returned token is delivered once via cookie; only
// its hash is ever stored.
func (ts *TokenService) SignRefreshToken(subject string) (token string, tid string, err error) {
	tid, err = GenerateTokenID()
	if err != nil {
		return "", "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token instance id")
	}

	token, err = ts.sign(subject, tid, ts.refreshSecret, ts.refreshTTL)
	if err != nil {
		return "", "", err
	}

	return token, tid, nil
}

// ValidateAccessToken parses and verifies an access token.
func (ts *TokenService) ValidateAccessToken(raw string) (*TokenClaims, error) {
	return ts.validate(raw, ts.accessSecret)
}

// ValidateRefreshToken parses and verifies a refresh token.
func (ts *TokenService) ValidateRefreshToken(raw string) (*TokenClaims, error) {
	return ts.validate(raw, ts.refreshSecret)
}

// Validate satisfies the middleware TokenValidator contract using the access
// secret.
func (ts *TokenService) Validate(raw string) (*TokenClaims, error) {
	return ts.ValidateAccessToken(raw)
}

func (ts *TokenService) sign(subject, tid string, secret []byte, ttl time.Duration) (string, error) {
	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TID: tid,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

func (ts *TokenService) validate(raw string, secret []byte) (*TokenClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode claims")
	return nil, ErrTokenMalformed
}

// GenerateTokenID draws the random per-issuance instance id embedded in
// refresh tokens.
func GenerateTokenID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateVerificationToken draws the opaque single-use token mailed out for
// email ownership verification.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
