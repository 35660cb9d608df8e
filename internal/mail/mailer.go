package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AppBaseURL string
}

// Mailer delivers transactional auth emails over SMTP.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

func (m *Mailer) SendVerificationEmail(ctx context.Context, email, token, displayName string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.cfg.AppBaseURL, token)
	body := verificationEmailHTML(displayName, link)
	return m.send(email, "Verify your SkillForge account", body)
}

func (m *Mailer) SendPasswordResetEmail(ctx context.Context, email, token, displayName string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.cfg.AppBaseURL, token)
	body := passwordResetEmailHTML(displayName, link)
	return m.send(email, "Reset your SkillForge password", body)
}

func (m *Mailer) send(to, subject, body string) error {
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"utf-8\"\r\n\r\n",
		m.cfg.From, to, subject)
	message := []byte(headers + body)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, message); err != nil {
		m.logger.Error("email dispatch failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Info("email dispatched", zap.String("subject", subject))
	return nil
}
