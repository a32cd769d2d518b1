package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/username/zynbudget/backend/src/config"
	"github.com/username/zynbudget/backend/src/logger"
)

type smtpEmailService struct{}

func NewEmailService() EmailService {
	return &smtpEmailService{}
}

func (s *smtpEmailService) SendVerificationEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.VerificationEmailBaseURL, token)
	subject := "Verify your email address"
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nThanks for signing up. Please confirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in %s. If you did not create an account, ignore this message.\r\n",
		username, link, config.Cfg.VerificationTokenExpiry)
	return s.send(toEmail, subject, body)
}

func (s *smtpEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", config.Cfg.PasswordResetBaseURL, token)
	subject := "Reset your password"
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nA password reset was requested for your account. Open the link below to choose a new password:\r\n\r\n%s\r\n\r\nThe link expires in %s. If you did not request this, your password is unchanged.\r\n",
		username, link, config.Cfg.PasswordResetTokenExpiry)
	return s.send(toEmail, subject, body)
}

func (s *smtpEmailService) send(toEmail, subject, body string) error {
	// Without SMTP settings the mail is logged instead of sent, which keeps
	// local development working without a mail server.
	if config.Cfg.SMTPServer == "" {
		logger.L.Info("smtp not configured, logging email instead",
			"to", toEmail, "subject", subject)
		return nil
	}

	from := config.Cfg.SenderEmail
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", config.Cfg.SenderName, from),
		fmt.Sprintf("To: %s", toEmail),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", config.Cfg.SMTPServer, config.Cfg.SMTPPort)
	var auth smtp.Auth
	if config.Cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", config.Cfg.SMTPUser, config.Cfg.SMTPPassword, config.Cfg.SMTPServer)
	}
	if err := smtp.SendMail(addr, auth, from, []string{toEmail}, []byte(msg)); err != nil {
		logger.L.Error("failed to send email", "to", toEmail, "subject", subject, "error", err)
		return fmt.Errorf("sending email: %w", err)
	}
	logger.L.Info("email sent", "to", toEmail, "subject", subject)
	return nil
}
