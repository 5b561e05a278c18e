package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/lumen-events/backend/config"
)

// Sender delivers confirmation mail over SMTP.
type Sender struct {
	cfg    config.EmailConfig
	logger *zap.Logger
}

// NewSender creates an SMTP sender.
func NewSender(cfg config.EmailConfig, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{cfg: cfg, logger: logger}
}

// Send delivers one message. Subject and body must already be localized.
func (s *Sender) Send(to, subject, body string) error {
	if !s.cfg.Enabled() {
		s.logger.Debug("smtp not configured, dropping mail", zap.String("to", to))
		return nil
	}
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// ConfirmationSubject returns the localized subject line.
func ConfirmationSubject(eventName, locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "es") {
		return "Confirmación de registro: " + eventName
	}
	return "Registration confirmed: " + eventName
}

// ConfirmationBody returns the localized body text.
func ConfirmationBody(recipientName, eventName, locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "es") {
		return fmt.Sprintf("Hola %s,\r\n\r\nTu registro para %s está confirmado. Presenta el código QR de tu gafete al llegar.\r\n", recipientName, eventName)
	}
	return fmt.Sprintf("Hi %s,\r\n\r\nYour registration for %s is confirmed. Present your badge QR code at the door.\r\n", recipientName, eventName)
}
