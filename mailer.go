package identity

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer delivers verification emails over plain SMTP auth. It is meant
// to be called from command handlers that treat delivery as best effort.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
	baseURL  string
	logger   Logger
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPUser,
		baseURL:  cfg.BaseURL,
		logger:   defLogger{},
	}
}

func (s *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *SMTPMailer) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/auth/verify?token=%s", s.baseURL, token)

	body, err := renderVerificationEmail(link)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render verification email")
	}

	if err := s.send(toEmail, "Verify your email address", body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send verification email").
			WithMetadata(map[string]any{"email": toEmail})
	}

	s.logger.Info("verification email sent to %s", toEmail)
	return nil
}

func (s *SMTPMailer) send(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.from, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, auth, s.from, []string{to}, msg)
}

var verificationEmailTemplate = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h2>Verify your email address</h2>
	<p>Thanks for signing up. Click the link below to verify your email address and activate your account.</p>
	<p><a href="{{.Link}}">Verify Email Address</a></p>
	<p>Or copy and paste this link into your browser:</p>
	<p style="word-break: break-all;">{{.Link}}</p>
	<p>This link expires in 24 hours. If you did not create an account you can ignore this email.</p>
</body>
</html>
`))

func renderVerificationEmail(link string) (string, error) {
	var buf bytes.Buffer
	err := verificationEmailTemplate.Execute(&buf, struct{ Link string }{Link: link})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogMailer is the default Mailer. It writes the verification link to the
// logger instead of delivering mail, which is what you want in development
// and in tests.
type LogMailer struct {
	logger Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, toEmail, token string) error {
	m.logger.Info("verification email for %s: /auth/verify?token=%s", toEmail, token)
	return nil
}
