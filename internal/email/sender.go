package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Sender entrega los códigos de verificación y de recuperación.
type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail, code string) error
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
}

type disabledSender struct {
	reason string
}

// NewDisabledSender devuelve un Sender que siempre falla; se usa cuando no hay SMTP configurado.
func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationCode(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendPasswordResetCode(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// LogSender escribe los códigos en el log. Solo para desarrollo.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationCode(_ context.Context, toEmail, code string) error {
	s.logger.Info("verification code issued", zap.String("to", toEmail), zap.String("code", code))
	return nil
}

func (s *LogSender) SendPasswordResetCode(_ context.Context, toEmail, code string) error {
	s.logger.Info("password reset code issued", zap.String("to", toEmail), zap.String("code", code))
	return nil
}
