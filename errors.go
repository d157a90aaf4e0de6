package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials  = "invalid_credentials"
	TextCodeEmailNotVerified    = "email_not_verified"
	TextCodeEmailTaken          = "email_taken"
	TextCodeAliasTaken          = "alias_taken"
	TextCodeInvalidStudioCode   = "invalid_studio_code"
	TextCodeVerificationMissing = "verification_not_found"
	TextCodeVerificationExpired = "verification_expired"
	TextCodeRefreshInvalid      = "refresh_token_invalid"
	TextCodeTokenExpired        = "token_expired"
	TextCodeTokenMalformed      = "token_malformed"
	TextCodeOAuthOnlyAccount    = "oauth_only_account"
	TextCodeCurrentPasswordBad  = "current_password_incorrect"
)

// ErrIdentityNotFound is returned when no account matches a lookup.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidCredentials collapses every credential failure (unknown email,
// OAuth-only account, bcrypt mismatch) into one uniform message.
var ErrInvalidCredentials = errors.New("Invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified blocks login until the address is verified.
var ErrEmailNotVerified = errors.New("Please verify your email before logging in", errors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrEmailTaken is the visible outcome of the email uniqueness constraint,
// whether caught by the pre-check or by the repository on a racing create.
var ErrEmailTaken = errors.New("Email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrAliasTaken is returned when a box alias collides on create.
var ErrAliasTaken = errors.New("Box alias already assigned", errors.CategoryConflict).
	WithTextCode(TextCodeAliasTaken).
	WithCode(errors.CodeConflict)

// ErrInvalidStudioCode is returned when a studio-join code does not resolve
// to a studio account.
var ErrInvalidStudioCode = errors.New("Invalid studio code", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidStudioCode).
	WithCode(errors.CodeBadRequest)

// ErrExternalIDConflict is returned when a provider identity is already
// linked to a different account.
var ErrExternalIDConflict = errors.New("Account already linked to a different Google identity", errors.CategoryConflict).
	WithTextCode("external_id_conflict").
	WithCode(errors.CodeConflict)

// ErrVerificationNotFound is returned when no account holds the presented
// verification token.
var ErrVerificationNotFound = errors.New("Invalid or expired verification link", errors.CategoryNotFound).
	WithTextCode(TextCodeVerificationMissing).
	WithCode(errors.CodeNotFound)

// ErrVerificationExpired is returned when the verification token exists but
// is past its expiry. Distinct from ErrVerificationNotFound.
var ErrVerificationExpired = errors.New("Verification link has expired", errors.CategoryValidation).
	WithTextCode(TextCodeVerificationExpired).
	WithCode(errors.CodeBadRequest)

// ErrRefreshTokenInvalid is the uniform outcome of every refresh failure:
// missing cookie, bad signature, expiry, unknown subject, cleared slot, or
// hash mismatch after rotation.
var ErrRefreshTokenInvalid = errors.New("Invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for access tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing or signature
// verification.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the low level bcrypt mismatch sentinel.
var ErrMismatchedHashAndPassword = errors.New("hash does not match", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects hashing empty input.
var ErrNoEmptyString = errors.New("refusing to hash empty string", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)

// ErrPasswordLoginUnavailable is returned by change-password for accounts
// without a local credential. Distinct from ErrCurrentPasswordIncorrect.
var ErrPasswordLoginUnavailable = errors.New("Account uses OAuth login - password cannot be changed", errors.CategoryValidation).
	WithTextCode(TextCodeOAuthOnlyAccount).
	WithCode(errors.CodeBadRequest)

// ErrCurrentPasswordIncorrect is returned when the supplied current password
// fails verification.
var ErrCurrentPasswordIncorrect = errors.New("Current password is incorrect", errors.CategoryValidation).
	WithTextCode(TextCodeCurrentPasswordBad).
	WithCode(errors.CodeBadRequest)

// ErrUnableToFindSession is the error when a request carries no session
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when a session value cannot be
// normalized into a Principal
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// CategoryStatus maps an error category to the HTTP status the controllers
// respond with. Unknown categories collapse to 500 with a generic message.
func CategoryStatus(category errors.Category) int {
	switch category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return 400
	case errors.CategoryAuth:
		return 401
	case errors.CategoryAuthz:
		return 403
	case errors.CategoryNotFound:
		return 404
	case errors.CategoryConflict:
		return 409
	default:
		return 500
	}
}
