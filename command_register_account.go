package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DisplayName  string `json:"display_name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	BusinessName string `json:"business_name"`
	StudioCode   string `json:"studio_code"`
	OnResponse   func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

func (e RegisterAccountMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&e.DisplayName, validation.Required),
		validation.Field(&e.Role, validation.In("", string(RoleArtist), string(RoleStudio))),
	)
	if err != nil {
		return err
	}

	if e.Role == string(RoleStudio) && e.BusinessName == "" {
		return validation.Errors{
			"business_name": validation.Validate(e.BusinessName,
				validation.Required.Error("is required for studio accounts")),
		}
	}

	return nil
}

type RegisterAccountResponse struct {
	Account *Account `json:"account"`
	Message string   `json:"message"`
	Studio  *Account `json:"-"`
}

type RegisterAccountHandler struct {
	repo    RepositoryManager
	mailer  Mailer
	aliases *AliasGenerator
	logger  Logger

	verificationTTL time.Duration
}

func NewRegisterAccountHandler(repo RepositoryManager, mailer Mailer) *RegisterAccountHandler {
	h := &RegisterAccountHandler{
		repo:            repo,
		mailer:          mailer,
		aliases:         NewAliasGenerator(repo.Accounts()),
		logger:          defLogger{},
		verificationTTL: 24 * time.Hour,
	}
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
		h.aliases.WithLogger(logger)
	}
	return h
}

func (h *RegisterAccountHandler) WithVerificationTTL(ttl time.Duration) *RegisterAccountHandler {
	if ttl > 0 {
		h.verificationTTL = ttl
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	account := &Account{}
	resp := &RegisterAccountResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// The pre-check keeps the common duplicate path on a friendly error.
	// A racing create still lands on the unique index and surfaces the
	// same conflict from RegisterTx.
	if _, err := h.repo.Accounts().GetByEmail(ctx, event.Email); err == nil {
		return ErrEmailTaken
	} else if !repository.IsRecordNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
	}

	var studio *Account
	if event.StudioCode != "" {
		found, err := h.repo.Accounts().GetByAlias(ctx, event.StudioCode)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidStudioCode
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve studio code")
		}
		if !found.IsStudio() {
			return ErrInvalidStudioCode
		}
		studio = found
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		alias, err := h.aliases.Generate(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate box alias")
		}

		token, err := GenerateVerificationToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
		}
		expires := time.Now().Add(h.verificationTTL)

		account.Email = event.Email
		account.PasswordHash = hash
		account.BoxAlias = alias.Alias
		if role, ok := ParseRole(event.Role); ok {
			account.Role = role
		}
		account.DisplayName = event.DisplayName
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.BusinessName = event.BusinessName
		account.VerificationToken = token
		account.VerificationExpires = &expires

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	// email delivery is best effort and never rolls back the account
	if h.mailer != nil {
		if err := h.mailer.SendVerificationEmail(ctx, account.Email, account.VerificationToken); err != nil {
			h.logger.Error("failed to send verification email: %v", err)
		}
	}

	resp.Account = account
	resp.Studio = studio
	resp.Message = "Registration successful. Please check your email to verify your account."
	if studio != nil {
		resp.Message = "Registration successful. You have joined " + studio.BoxAlias + ". Please check your email to verify your account."
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
