package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer sends one HTML mail.
type Mailer interface {
	Send(ctx context.Context, subject string, to []string, htmlBody string) error
}

// SMTPConfig configures the SMTP mailer. With an empty Host the mailer runs
// in mock mode and only logs, so local runs work without a mail relay.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
}

// SMTPMailer delivers mail over plain-auth SMTP.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, subject string, to []string, htmlBody string) error {
	if m.cfg.Host == "" {
		m.logger.InfoContext(ctx, "mock email", "subject", subject, "to", strings.Join(to, ","))
		return nil
	}

	from := m.cfg.Username
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.Username)
	}
	headers := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + sanitizeHeader(subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="utf-8"`,
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := smtp.SendMail(addr, auth, m.cfg.Username, to, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// sanitizeHeader strips CRLF so user-influenced values cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
