package identity

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface this package depends on
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer dispatches lifecycle emails. The implementation is an external
// collaborator; registration treats dispatch failures as non-fatal.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
}

// AccountStore is the narrow repository surface the authenticator needs.
// The bun-backed Accounts repository satisfies it.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	StoreRefreshTokenHash(ctx context.Context, id string, hash string) error
	ClearRefreshTokenHash(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	UpdateProfile(ctx context.Context, id string, displayName string) error
}

// VerificationStore is the narrow repository surface the email verification
// workflow needs.
type VerificationStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
	StoreVerificationToken(ctx context.Context, id string, token string, expires time.Time) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
