package identity_test

import (
	"testing"

	identity "github.com/boxworks/go-identity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestCategoryStatus(t *testing.T) {
	tests := []struct {
		name     string
		category goerrors.Category
		want     int
	}{
		{name: "Validation", category: goerrors.CategoryValidation, want: 400},
		{name: "Bad input", category: goerrors.CategoryBadInput, want: 400},
		{name: "Auth", category: goerrors.CategoryAuth, want: 401},
		{name: "Authz", category: goerrors.CategoryAuthz, want: 403},
		{name: "Not found", category: goerrors.CategoryNotFound, want: 404},
		{name: "Conflict", category: goerrors.CategoryConflict, want: 409},
		{name: "Internal", category: goerrors.CategoryInternal, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.CategoryStatus(tt.category))
		})
	}
}

func TestSentinelStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *goerrors.Error
		want int
	}{
		{name: "Invalid credentials", err: identity.ErrInvalidCredentials, want: 401},
		{name: "Email not verified", err: identity.ErrEmailNotVerified, want: 403},
		{name: "Email taken", err: identity.ErrEmailTaken, want: 409},
		{name: "Invalid studio code", err: identity.ErrInvalidStudioCode, want: 400},
		{name: "Verification not found", err: identity.ErrVerificationNotFound, want: 404},
		{name: "Verification expired", err: identity.ErrVerificationExpired, want: 400},
		{name: "Refresh invalid", err: identity.ErrRefreshTokenInvalid, want: 401},
		{name: "External id conflict", err: identity.ErrExternalIDConflict, want: 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identity.CategoryStatus(tt.err.Category))
		})
	}
}

func TestErrorMatchers(t *testing.T) {
	assert.True(t, identity.IsTokenExpiredError(identity.ErrTokenExpired))
	assert.False(t, identity.IsTokenExpiredError(identity.ErrTokenMalformed))
	assert.False(t, identity.IsTokenExpiredError(nil))

	assert.True(t, identity.IsMalformedError(identity.ErrTokenMalformed))
	assert.False(t, identity.IsMalformedError(identity.ErrTokenExpired))
	assert.False(t, identity.IsMalformedError(nil))
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw    string
		want   identity.AccountRole
		wantOK bool
	}{
		{raw: "artist", want: identity.RoleArtist, wantOK: true},
		{raw: "studio", want: identity.RoleStudio, wantOK: true},
		{raw: "admin", want: identity.RoleAdmin, wantOK: true},
		{raw: "", wantOK: false},
		{raw: "superuser", wantOK: false},
		{raw: "Artist", wantOK: false},
	}

	for _, tt := range tests {
		role, ok := identity.ParseRole(tt.raw)
		assert.Equal(t, tt.wantOK, ok, "role %q", tt.raw)
		assert.Equal(t, tt.want, role, "role %q", tt.raw)
	}
}
