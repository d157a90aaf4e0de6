package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/boxworks/go-identity"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

// AccountRepository captures the account operations linking needs. The
// identity.Accounts repository satisfies it.
type AccountRepository interface {
	GetByGoogleID(ctx context.Context, googleID string) (*identity.Account, error)
	GetByEmail(ctx context.Context, email string) (*identity.Account, error)
	AttachGoogleID(ctx context.Context, id string, googleID string, profileImageURL string) error
	Register(ctx context.Context, account *identity.Account) (*identity.Account, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// LinkingResult contains the resolved account and metadata.
type LinkingResult struct {
	Account   *identity.Account
	IsNewUser bool
	Linked    bool
}

// AccountLinker resolves a provider profile into an account, linking on
// first use. Resolution order is provider identity first, then email match,
// then signup.
type AccountLinker struct {
	repo    AccountRepository
	aliases *identity.AliasGenerator
	logger  identity.Logger
}

// NewAccountLinker creates a linker backed by the accounts repository.
func NewAccountLinker(repo AccountRepository) *AccountLinker {
	return &AccountLinker{
		repo:    repo,
		aliases: identity.NewAliasGenerator(repo),
	}
}

func (l *AccountLinker) WithLogger(logger identity.Logger) *AccountLinker {
	if logger != nil {
		l.logger = logger
		l.aliases.WithLogger(logger)
	}
	return l
}

// Resolve implements the link-on-first-use policy:
//
//  1. An account already holding the provider identity wins, regardless of
//     its current email.
//  2. An account matching the profile email gets the identity attached,
//     unless it is already linked to a different one.
//  3. Otherwise a new account is created, pre-verified, since the provider
//     vouches for the address.
func (l *AccountLinker) Resolve(ctx context.Context, profile *SocialProfile) (*LinkingResult, error) {
	if profile == nil || profile.ProviderUserID == "" {
		return nil, ErrProfileIncomplete
	}

	existing, err := l.repo.GetByGoogleID(ctx, profile.ProviderUserID)
	if err == nil {
		return &LinkingResult{Account: existing}, nil
	}
	if !repository.IsRecordNotFound(err) {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}

	if profile.Email != "" {
		account, err := l.repo.GetByEmail(ctx, profile.Email)
		if err == nil {
			return l.linkExisting(ctx, account, profile)
		}
		if !repository.IsRecordNotFound(err) {
			return nil, fmt.Errorf("failed to find account by email: %w", err)
		}
	}

	return l.signup(ctx, profile)
}

func (l *AccountLinker) linkExisting(ctx context.Context, account *identity.Account, profile *SocialProfile) (*LinkingResult, error) {
	if account.GoogleID == profile.ProviderUserID {
		return &LinkingResult{Account: account}, nil
	}

	if account.GoogleID != "" {
		return nil, ErrAccountAlreadyLinked
	}

	if err := l.repo.AttachGoogleID(ctx, account.ID.String(), profile.ProviderUserID, profile.AvatarURL); err != nil {
		return nil, fmt.Errorf("failed to attach provider identity: %w", err)
	}

	// mirror what AttachGoogleID persisted
	account.GoogleID = profile.ProviderUserID
	account.EmailVerified = true
	if account.ProfileImageURL == "" {
		account.ProfileImageURL = profile.AvatarURL
	}

	return &LinkingResult{Account: account, Linked: true}, nil
}

func (l *AccountLinker) signup(ctx context.Context, profile *SocialProfile) (*LinkingResult, error) {
	if profile.Email == "" {
		return nil, ErrProfileIncomplete
	}

	alias, err := l.aliases.Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate box alias: %w", err)
	}

	account := &identity.Account{
		Email:           profile.Email,
		GoogleID:        profile.ProviderUserID,
		BoxAlias:        alias.Alias,
		Role:            identity.RoleArtist,
		DisplayName:     displayNameFromProfile(profile),
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		ProfileImageURL: profile.AvatarURL,
		EmailVerified:   true,
	}

	if id, err := hashid.NewUUID(profile.Email); err == nil {
		account.ID = id
	}

	created, err := l.repo.Register(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return &LinkingResult{Account: created, IsNewUser: true}, nil
}

func displayNameFromProfile(profile *SocialProfile) string {
	if profile.Name != "" {
		return profile.Name
	}
	if profile.FirstName != "" {
		name := profile.FirstName
		if profile.LastName != "" {
			name += " " + profile.LastName
		}
		return name
	}
	return strings.Split(profile.Email, "@")[0]
}
