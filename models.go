package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRole is the account's role on the platform
type AccountRole = string

const (
	// RoleArtist is the default role for individual creators
	RoleArtist AccountRole = "artist"
	// RoleStudio is a studio account that can invite artists by box alias
	RoleStudio AccountRole = "studio"
	// RoleAdmin is a platform operator
	RoleAdmin AccountRole = "admin"
)

// ParseRole validates a raw role string, returning false for unknown values
func ParseRole(raw string) (AccountRole, bool) {
	switch raw {
	case RoleArtist, RoleStudio, RoleAdmin:
		return raw, true
	default:
		return "", false
	}
}

// Account is the persisted identity record.
//
// Invariants enforced by this package:
//   - Email and BoxAlias are unique; BoxAlias never changes once assigned.
//   - PasswordHash is empty for OAuth-only accounts.
//   - EmailVerified only transitions false -> true.
//   - RefreshTokenHash holds at most one live hash; rotation overwrites it,
//     logout clears it.
//   - VerificationToken holds at most one live token; successful verification
//     clears it.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID              uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email           string      `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash    string      `bun:"password_hash" json:"-"`
	GoogleID        string      `bun:"google_id,nullzero,unique" json:"-"`
	BoxAlias        string      `bun:"box_alias,notnull,unique" json:"box_alias,omitempty"`
	Role            AccountRole `bun:"account_role,notnull" json:"account_role,omitempty"`
	DisplayName     string      `bun:"display_name" json:"display_name,omitempty"`
	FirstName       string      `bun:"first_name" json:"first_name,omitempty"`
	LastName        string      `bun:"last_name" json:"last_name,omitempty"`
	BusinessName    string      `bun:"business_name" json:"business_name,omitempty"`
	ProfileImageURL string      `bun:"profile_image_url" json:"profile_image_url,omitempty"`

	EmailVerified       bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	VerificationToken   string     `bun:"verification_token,nullzero" json:"-"`
	VerificationExpires *time.Time `bun:"verification_expires,nullzero" json:"-"`

	RefreshTokenHash string `bun:"refresh_token_hash,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPassword reports whether local credential login is enabled.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// HasGoogleID reports whether an external provider subject is attached.
func (a *Account) HasGoogleID() bool {
	return a != nil && a.GoogleID != ""
}

// IsStudio reports whether the account can be joined via its box alias.
func (a *Account) IsStudio() bool {
	return a != nil && a.Role == RoleStudio
}

// HasLiveVerification reports whether a verification token is pending.
func (a *Account) HasLiveVerification() bool {
	return a != nil && a.VerificationToken != ""
}

// Summary is the minimal account view returned by login.
type Summary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	BoxAlias  string `json:"box_alias,omitempty"`
}

// Summarize builds the login response view for an account.
func (a *Account) Summarize() Summary {
	return Summary{
		ID:        a.ID.String(),
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		BoxAlias:  a.BoxAlias,
	}
}
