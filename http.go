package identity

import (
	"context"
	"time"

	"github.com/boxworks/go-identity/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator bridges the Auther to go-router transports: it owns the
// refresh cookie and the server side session slot, and translates rich
// errors into JSON responses.
type RouteAuthenticator struct {
	auth             *Auther
	cookieName       string
	cookieDuration   time.Duration
	cookieSecure     bool
	sessions         func(router.Context) SessionStore
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 30 * 24 * time.Hour
	if cfg.RefreshTokenTTL > 0 {
		cookieDuration = cfg.RefreshTokenTTL
	}

	cookieName := cfg.RefreshCookieName
	if cookieName == "" {
		cookieName = "refresh_token"
	}

	a := &RouteAuthenticator{
		auth:           auther,
		cookieName:     cookieName,
		cookieDuration: cookieDuration,
		cookieSecure:   cfg.CookieSecure,
		Logger:         defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithSessionStore wires the host's per request cookie-session store.
func (a *RouteAuthenticator) WithSessionStore(provider func(router.Context) SessionStore) *RouteAuthenticator {
	a.sessions = provider
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// EstablishSession persists the session claim and sets the refresh cookie
// for a freshly authenticated account.
func (a *RouteAuthenticator) EstablishSession(ctx router.Context, result *LoginResult) error {
	if a.sessions != nil {
		if store := a.sessions(ctx); store != nil {
			store.Put(SessionPrincipalKey, result.Session)
		}
	}

	a.setRefreshCookie(ctx, result.RefreshToken)
	return nil
}

// ClearSession destroys the server side session and expires the refresh
// cookie. Safe to call for requests that carry neither.
func (a *RouteAuthenticator) ClearSession(ctx router.Context) {
	if a.sessions != nil {
		if store := a.sessions(ctx); store != nil {
			store.Destroy()
		}
	}

	a.cookieDel(ctx, a.cookieName)
}

// RefreshTokenFromRequest returns the refresh token cookie value, empty when
// the request carries none.
func (a *RouteAuthenticator) RefreshTokenFromRequest(ctx router.Context) string {
	return ctx.Cookies(a.cookieName, "")
}

func (a *RouteAuthenticator) setRefreshCookie(c router.Context, val string) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    val,
		Expires:  time.Now().Add(a.cookieDuration),
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

// accessTokenValidator adapts the TokenService to the middleware's mirrored
// TokenValidator interface.
type accessTokenValidator struct {
	tokens *TokenService
}

func (v accessTokenValidator) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.ValidateAccessToken(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ProtectedRoute guards a route behind a valid access token. The validated
// claims are stored in Locals under contextKey and propagated into the
// request context so PrincipalFromContext works downstream.
func (a *RouteAuthenticator) ProtectedRoute(contextKey string, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.MakeClientRouteAuthErrorHandler(false)
	}

	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		ContextKey:     contextKey,
		TokenLookup:    "header:" + router.HeaderAuthorization,
		AuthScheme:     "Bearer",
		TokenValidator: accessTokenValidator{tokens: a.auth.TokenService()},
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			if principal, ok := NormalizePrincipal(claims); ok {
				return WithPrincipalContext(c, principal)
			}
			return c
		},
	})
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.AuthErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info("Authentication error: %s (%s) %s", richErr.Message, richErr.TextCode, c.OriginalURL())

	status := CategoryStatus(richErr.Category)
	if status != router.StatusUnauthorized && status != router.StatusForbidden {
		status = router.StatusUnauthorized
	}

	return c.JSON(status, errorBody(richErr))
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Request error handler: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		status := CategoryStatus(richErr.Category)
		if status == 500 {
			return c.JSON(status, router.ViewContext{
				"error": "Internal server error",
			})
		}
		return c.JSON(status, errorBody(richErr))
	}
}

func errorBody(richErr *errors.Error) router.ViewContext {
	body := router.ViewContext{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}
	if richErr.TextCode == TextCodeEmailNotVerified {
		body["needsVerification"] = true
	}
	return body
}
