package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// Config is the immutable process configuration. It is parsed from the
// environment exactly once at startup and injected into every component;
// business logic never reads the environment directly.
type Config struct {
	AccessTokenSecret  string        `env:"JWT_ACCESS_SECRET,notEmpty"`
	RefreshTokenSecret string        `env:"JWT_REFRESH_SECRET,notEmpty"`
	AccessTokenTTL     time.Duration `env:"JWT_ACCESS_EXP" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"JWT_REFRESH_EXP" envDefault:"720h"`
	TokenIssuer        string        `env:"TOKEN_ISSUER" envDefault:"go-identity"`

	VerificationTTL time.Duration `env:"VERIFICATION_TOKEN_EXP" envDefault:"24h"`
	SessionTTL      time.Duration `env:"SESSION_EXP" envDefault:"168h"`

	RefreshCookieName string `env:"REFRESH_COOKIE_NAME" envDefault:"refresh_token"`
	CookieSecure      bool   `env:"COOKIE_SECURE" envDefault:"false"`

	// BaseURL is the public origin used to build verification links.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5000"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	StateEncryptionKey string `env:"OAUTH_STATE_KEY"`
	StateHMACKey       string `env:"OAUTH_STATE_HMAC_KEY"`
}

// LoadConfig parses the environment into a Config. Call it once at process
// start and hand the value down.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryInternal, "failed to parse environment configuration")
	}
	return cfg, nil
}
