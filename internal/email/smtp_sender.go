package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

const (
	verificationSubject = "Verify your email"
	resetSubject        = "Password reset code"
)

// SMTPSender envia correos via SMTP con gomail.
type SMTPSender struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		dialer:   gomail.NewDialer(host, port, username, password),
		from:     from,
		fromName: fromName,
	}, nil
}

func (s *SMTPSender) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	body := fmt.Sprintf("Your verification code is %s.\n", code)
	return s.send(ctx, toEmail, verificationSubject, body)
}

func (s *SMTPSender) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	body := fmt.Sprintf("Your password reset code is %s.\nIf you did not request it, ignore this email.\n", code)
	return s.send(ctx, toEmail, resetSubject, body)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	// gomail no acepta contexto: solo se corta antes de marcar.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(s.buildMessage(toEmail, subject, body))
}

func (s *SMTPSender) buildMessage(toEmail, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	if strings.TrimSpace(s.fromName) != "" {
		msg.SetHeader("From", msg.FormatAddress(s.from, s.fromName))
	} else {
		msg.SetHeader("From", s.from)
	}
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}
