package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/miaomc/passport"
	"github.com/samber/oops"
)

//go:embed templates/*.html
var templateFS embed.FS

var codeTemplate = template.Must(template.ParseFS(templateFS, "templates/verify_code.html"))

var (
	_ passport.MailSender = (*SMTPSender)(nil)
	_ passport.MailSender = (*LogSender)(nil)
)

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "Your MiaoMC verification code"

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends verification codes over SMTP.
type SMTPSender struct {
	cfg    Config
	send   SendFunc
	logger *slog.Logger
}

type Option func(*SMTPSender)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *SMTPSender) {
		s.send = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *SMTPSender) {
		s.logger = l
	}
}

func NewSMTPSender(cfg Config, opts ...Option) (*SMTPSender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, oops.In("mail").Code("MAIL_CONFIG").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, oops.In("mail").Code("MAIL_CONFIG").Errorf("sender address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	s := &SMTPSender{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mail")
	return s, nil
}

type codeView struct {
	Code    string
	Email   string
	Minutes int
}

// SendCode renders the verification template and sends it to email.
func (s *SMTPSender) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.render(email, code, ttl)
	if err != nil {
		return oops.In("mail").Code("MAIL_RENDER").With("email", email).Wrap(err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.From, []string{email}, msg); err != nil {
		return oops.In("mail").Code("MAIL_SEND").With("email", email).With("addr", addr).Wrap(err)
	}

	s.logger.Info("verification code sent", "email", email)
	return nil
}

func (s *SMTPSender) render(email, code string, ttl time.Duration) ([]byte, error) {
	var body bytes.Buffer
	if err := codeTemplate.Execute(&body, codeView{
		Code:    code,
		Email:   email,
		Minutes: int(ttl / time.Minute),
	}); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", s.cfg.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// LogSender logs codes instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "mail")}
}

func (s *LogSender) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	s.logger.InfoContext(ctx, "verification code", "email", email, "code", code, "ttl", ttl)
	return nil
}
