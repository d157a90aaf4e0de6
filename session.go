package identity

import (
	"time"
)

// Principal is the single normalized authenticated-identity shape every
// downstream consumer depends on. It is request scoped and never persisted.
type Principal struct {
	SubjectID string `json:"sub"`
	Role      string `json:"role,omitempty"`
}

// SessionClaim is the wrapper written into session state at login. Its shape
// mirrors the legacy cookie-session representation so both authentication
// paths deserialize into something NormalizePrincipal understands.
type SessionClaim struct {
	Claims struct {
		Sub string `json:"sub"`
	} `json:"claims"`
	ExpiresAt int64 `json:"expires_at"`
}

// NewSessionClaim builds the session wrapper for an account.
func NewSessionClaim(subjectID string, ttl time.Duration) SessionClaim {
	sc := SessionClaim{ExpiresAt: time.Now().Add(ttl).Unix()}
	sc.Claims.Sub = subjectID
	return sc
}

// Expired reports whether the session claim is past its expiry.
func (sc SessionClaim) Expired() bool {
	return sc.ExpiresAt != 0 && time.Now().Unix() > sc.ExpiresAt
}

// SessionStore abstracts the cookie-session collaborator. Implementations
// live in the host application; this package only reads, writes, and
// destroys the claim wrapper.
type SessionStore interface {
	Put(key string, value any)
	Get(key string) (any, bool)
	Destroy()
}

// SessionPrincipalKey is the session entry holding the claim wrapper.
const SessionPrincipalKey = "passport"

// NormalizePrincipal reconciles every deserialized authentication
// representation into the one Principal shape. It is idempotent: a Principal
// in is the same Principal out. Supported inputs are the Principal itself,
// validated token claims, the SessionClaim wrapper, and the loosely typed
// map a session codec may hand back.
func NormalizePrincipal(v any) (Principal, bool) {
	switch p := v.(type) {
	case Principal:
		return p, p.SubjectID != ""
	case *Principal:
		if p == nil {
			return Principal{}, false
		}
		return *p, p.SubjectID != ""
	case *TokenClaims:
		if p == nil || p.SubjectID() == "" {
			return Principal{}, false
		}
		return Principal{SubjectID: p.SubjectID()}, true
	case SessionClaim:
		if p.Expired() || p.Claims.Sub == "" {
			return Principal{}, false
		}
		return Principal{SubjectID: p.Claims.Sub}, true
	case *SessionClaim:
		if p == nil {
			return Principal{}, false
		}
		return NormalizePrincipal(*p)
	case map[string]any:
		return principalFromMap(p)
	default:
		return Principal{}, false
	}
}

// principalFromMap copes with session codecs that round-trip the claim
// wrapper through JSON and hand back untyped maps. It accepts both the
// wrapper shape {"claims":{"sub":...}} and a bare {"sub":...} or {"id":...}.
func principalFromMap(m map[string]any) (Principal, bool) {
	if claims, ok := m["claims"].(map[string]any); ok {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return Principal{SubjectID: sub}, true
		}
		return Principal{}, false
	}

	for _, key := range []string{"sub", "id", "user_id"} {
		if sub, ok := m[key].(string); ok && sub != "" {
			return Principal{SubjectID: sub}, true
		}
	}

	return Principal{}, false
}

// PrincipalFromSession reads and normalizes the session-stored claim.
func PrincipalFromSession(store SessionStore) (Principal, error) {
	if store == nil {
		return Principal{}, ErrUnableToFindSession
	}

	raw, ok := store.Get(SessionPrincipalKey)
	if !ok {
		return Principal{}, ErrUnableToFindSession
	}

	principal, ok := NormalizePrincipal(raw)
	if !ok {
		return Principal{}, ErrUnableToDecodeSession
	}

	return principal, nil
}
