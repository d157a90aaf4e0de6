package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

type VerifyEmailResponse struct {
	Account *Account `json:"account"`
	Message string   `json:"message"`
}

type VerifyEmailHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewVerifyEmailHandler(repo RepositoryManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrVerificationNotFound
	}

	account, err := h.repo.Accounts().GetByVerificationToken(ctx, event.Token)
	if err != nil {
		// an already consumed token clears the column, so replays land here
		if repository.IsRecordNotFound(err) {
			return ErrVerificationNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
	}

	if account.VerificationExpires == nil || time.Now().After(*account.VerificationExpires) {
		return ErrVerificationExpired
	}

	if err := h.repo.Accounts().MarkEmailVerified(ctx, account.ID.String()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
	}

	account.EmailVerified = true
	account.VerificationToken = ""
	account.VerificationExpires = nil

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{
			Account: account,
			Message: "Email verified successfully. You can now log in.",
		})
	}

	return nil
}

type ResendVerificationMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ResendVerificationResponse)
}

func (e ResendVerificationMessage) Type() string { return "account.resend_verification" }

type ResendVerificationResponse struct {
	Message string `json:"message"`
}

// ResendVerificationHandler reissues a verification token. The response is
// identical whether or not the address belongs to an account so the endpoint
// cannot be used to enumerate registered emails.
type ResendVerificationHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger

	verificationTTL time.Duration
}

func NewResendVerificationHandler(repo RepositoryManager, mailer Mailer) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:            repo,
		mailer:          mailer,
		logger:          defLogger{},
		verificationTTL: 24 * time.Hour,
	}
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationHandler) WithVerificationTTL(ttl time.Duration) *ResendVerificationHandler {
	if ttl > 0 {
		h.verificationTTL = ttl
	}
	return h
}

const resendVerificationMessage = "If an account exists for that email, a new verification link has been sent."

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	respond := func() {
		if event.OnResponse != nil {
			event.OnResponse(&ResendVerificationResponse{Message: resendVerificationMessage})
		}
	}

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			respond()
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account for resend")
	}

	if account.EmailVerified {
		respond()
		return nil
	}

	token, err := GenerateVerificationToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	// overwrites any live token, invalidating previously mailed links
	expires := time.Now().Add(h.verificationTTL)
	if err := h.repo.Accounts().StoreVerificationToken(ctx, account.ID.String(), token, expires); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	if h.mailer != nil {
		if err := h.mailer.SendVerificationEmail(ctx, account.Email, token); err != nil {
			h.logger.Error("failed to send verification email: %v", err)
		}
	}

	respond()
	return nil
}
