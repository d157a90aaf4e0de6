package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// LoginResult carries everything a transport layer needs to establish the
// hybrid session: the server side session claim, the bearer access token,
// and the refresh token destined for the httpOnly cookie.
type LoginResult struct {
	Account      *Account
	Session      SessionClaim
	AccessToken  string
	RefreshToken string
}

type Auther struct {
	store      AccountStore
	tokens     *TokenService
	sessionTTL time.Duration
	logger     Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store AccountStore, tokens *TokenService, sessionTTL time.Duration) *Auther {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}

	return &Auther{
		store:      store,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		logger:     defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Login verifies a local credential. Unknown email, an OAuth only account,
// and a bcrypt mismatch all collapse into ErrInvalidCredentials so the
// response does not reveal which check failed. A correct password against an
// unverified address is the one distinguishable outcome.
func (s *Auther) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Login account lookup error: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !account.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return s.EstablishSession(ctx, account)
}

// EstablishSession mints the access and refresh tokens for an already
// authenticated account and persists the refresh token digest. The account
// holds a single refresh slot, so any previously issued refresh token stops
// working here.
func (s *Auther) EstablishSession(ctx context.Context, account *Account) (*LoginResult, error) {
	subject := account.ID.String()

	access, err := s.tokens.SignAccessToken(subject)
	if err != nil {
		s.logger.Error("EstablishSession access token error: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	refresh, _, err := s.tokens.SignRefreshToken(subject)
	if err != nil {
		s.logger.Error("EstablishSession refresh token error: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign refresh token")
	}

	hash, err := HashRefreshToken(refresh)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash refresh token")
	}

	if err := s.store.StoreRefreshTokenHash(ctx, subject, hash); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token hash")
	}

	return &LoginResult{
		Account:      account,
		Session:      NewSessionClaim(subject, s.sessionTTL),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh rotates a refresh token. Every failure mode returns
// ErrRefreshTokenInvalid: a replayed token that no longer matches the stored
// digest is indistinguishable from a forged one.
func (s *Auther) Refresh(ctx context.Context, raw string) (*LoginResult, error) {
	if raw == "" {
		return nil, ErrRefreshTokenInvalid
	}

	claims, err := s.tokens.ValidateRefreshToken(raw)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	account, err := s.store.FindByID(ctx, claims.SubjectID())
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			s.logger.Error("Refresh account lookup error: %v", err)
		}
		return nil, ErrRefreshTokenInvalid
	}

	if account.RefreshTokenHash == "" {
		return nil, ErrRefreshTokenInvalid
	}

	if err := CompareRefreshTokenAndHash(raw, account.RefreshTokenHash); err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	return s.EstablishSession(ctx, account)
}

// Logout revokes the account's refresh slot. It is idempotent and never
// fails the caller for an unknown or already logged out subject.
func (s *Auther) Logout(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}

	if err := s.store.ClearRefreshTokenHash(ctx, subjectID); err != nil {
		s.logger.Warn("Logout clear refresh hash error: %v", err)
	}

	return nil
}

// RevokeRefreshToken decodes a presented refresh token and clears the owning
// account's slot. Decode failures are swallowed so a logout with a stale or
// garbage cookie still succeeds.
func (s *Auther) RevokeRefreshToken(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	claims, err := s.tokens.ValidateRefreshToken(raw)
	if err != nil {
		return nil
	}

	return s.Logout(ctx, claims.SubjectID())
}

// ChangePassword verifies the current credential before replacing it. The
// refresh slot is cleared so sessions on other devices must log in again.
func (s *Auther) ChangePassword(ctx context.Context, subjectID, current, updated string) error {
	account, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !account.HasPassword() {
		return ErrPasswordLoginUnavailable
	}

	if err := ComparePasswordAndHash(current, account.PasswordHash); err != nil {
		return ErrCurrentPasswordIncorrect
	}

	hash, err := HashPassword(updated)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := s.store.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password hash")
	}

	if err := s.store.ClearRefreshTokenHash(ctx, subjectID); err != nil {
		s.logger.Warn("ChangePassword clear refresh hash error: %v", err)
	}

	return nil
}

// UpdateProfile replaces the account's display name.
func (s *Auther) UpdateProfile(ctx context.Context, subjectID, displayName string) (*Account, error) {
	if err := s.store.UpdateProfile(ctx, subjectID, displayName); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	account, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account")
	}

	return account, nil
}
