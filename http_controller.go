package identity

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.Verify, controller.VerifyEmail).
		SetName("verify.get")

	app.Post(controller.Routes.Resend, controller.ResendVerification).
		SetName("resend.post")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("refresh.post")

	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.post")

	app.Post(controller.Routes.ChangePassword, controller.ChangePassword).
		SetName("password.post")

	app.Put(controller.Routes.Profile, controller.UpdateProfile).
		SetName("profile.put")
}

type AuthControllerRoutes struct {
	Register       string
	Verify         string
	Resend         string
	Login          string
	Refresh        string
	Logout         string
	ChangePassword string
	Profile        string
}

type AuthControllerViews struct {
	Verify string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Auther       *Auther
	HTTP         *RouteAuthenticator
	Mailer       Mailer
	ContextKey   string
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &AuthControllerRoutes{
			Register:       "/auth/register",
			Verify:         "/auth/verify",
			Resend:         "/auth/resend-verification",
			Login:          "/auth/login",
			Refresh:        "/auth/refresh",
			Logout:         "/auth/logout",
			ChangePassword: "/auth/change-password",
			Profile:        "/auth/profile",
		},
		Views: &AuthControllerViews{
			Verify: "verify_email",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.HTTP.ErrorHandler
	}

	return c
}

func WithAuthControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithAuthControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithAuthControllerAuther(auther *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithAuthControllerHTTP(http *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = http
		return c
	}
}

func WithAuthControllerViews(views *AuthControllerViews) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if views != nil {
			c.Views = views
		}
		return c
	}
}

func WithAuthControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterAccountMessage)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "Failed to parse request body",
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	var res *RegisterAccountResponse
	payload.OnResponse = func(resp *RegisterAccountResponse) {
		res = resp
	}

	handler := NewRegisterAccountHandler(a.Repo, a.Mailer).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		a.Logger.Error("register account error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success":           true,
		"needsVerification": true,
		"message":           res.Message,
		"account":           res.Account.Summarize(),
	})
}

// VerifyEmail is the link target from the verification email, so it renders
// a status page through the host's view engine instead of returning JSON.
func (a *AuthController) VerifyEmail(ctx router.Context) error {
	token := ctx.Query("token", "")

	var res *VerifyEmailResponse
	input := VerifyEmailMessage{
		Token: token,
		OnResponse: func(resp *VerifyEmailResponse) {
			res = resp
		},
	}

	handler := NewVerifyEmailHandler(a.Repo).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), input); err != nil {
		a.Logger.Error("email verification error: %v", err)

		status := "invalid"
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeVerificationExpired {
			status = "expired"
		}

		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Verify, router.ViewContext{
			"verified": false,
			"status":   status,
		})
	}

	return ctx.Render(a.Views.Verify, router.ViewContext{
		"verified": true,
		"status":   "verified",
		"message":  res.Message,
	})
}

func (a *AuthController) ResendVerification(ctx router.Context) error {
	payload := new(ResendVerificationMessage)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "Failed to parse request body",
		})
	}

	if err := validation.Validate(payload.Email, validation.Required, is.Email); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "A valid email is required",
		})
	}

	var res *ResendVerificationResponse
	payload.OnResponse = func(resp *ResendVerificationResponse) {
		res = resp
	}

	handler := NewResendVerificationHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		a.Logger.Error("resend verification error: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": res.Message,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": err.Error(),
		})
	}

	result, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.HTTP.EstablishSession(ctx, result); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"account":      result.Account.Summarize(),
		"access_token": result.AccessToken,
	})
}

// RefreshPost rotates the refresh cookie. The rotated token replaces the
// cookie before the new access token is returned.
func (a *AuthController) RefreshPost(ctx router.Context) error {
	raw := a.HTTP.RefreshTokenFromRequest(ctx)

	result, err := a.Auther.Refresh(ctx.Context(), raw)
	if err != nil {
		a.HTTP.ClearSession(ctx)
		return a.ErrorHandler(ctx, err)
	}

	if err := a.HTTP.EstablishSession(ctx, result); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"access_token": result.AccessToken,
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	if principal, err := GetRouterPrincipal(ctx, a.ContextKey); err == nil {
		if err := a.Auther.Logout(ctx.Context(), principal.SubjectID); err != nil {
			a.Logger.Warn("logout error: %v", err)
		}
	}

	// the route is reachable without a bearer token, so the refresh cookie
	// is the only way to identify which slot to revoke
	if raw := a.HTTP.RefreshTokenFromRequest(ctx); raw != "" {
		if err := a.Auther.RevokeRefreshToken(ctx.Context(), raw); err != nil {
			a.Logger.Warn("logout revoke error: %v", err)
		}
	}

	a.HTTP.ClearSession(ctx)

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Logged out",
	})
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 0)),
	)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	principal, err := GetRouterPrincipal(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangePasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": err.Error(),
		})
	}

	if err := a.Auther.ChangePassword(ctx.Context(), principal.SubjectID, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// other devices lost their refresh slot, this one keeps its cookie
	return ctx.JSON(router.StatusOK, router.ViewContext{
		"message": "Password updated",
	})
}

// UpdateProfileRequest payload
type UpdateProfileRequest struct {
	DisplayName string `form:"display_name" json:"display_name"`
}

// Validate will run validation rules
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 120)),
	)
}

func (a *AuthController) UpdateProfile(ctx router.Context) error {
	principal, err := GetRouterPrincipal(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UpdateProfileRequest)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, router.ViewContext{
			"error": err.Error(),
		})
	}

	account, err := a.Auther.UpdateProfile(ctx.Context(), principal.SubjectID, payload.DisplayName)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"account": account.Summarize(),
	})
}
