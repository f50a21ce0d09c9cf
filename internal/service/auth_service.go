package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goodwe-gateway/internal/domain"
	"goodwe-gateway/internal/email"
	"goodwe-gateway/internal/repository"
)

const (
	codeSendWindow    = 10 * time.Minute
	codeSendMax       = 3
	codeAttemptWindow = 15 * time.Minute
	codeAttemptMax    = 10

	// Cada flujo cuenta sus intentos por separado.
	verifyAttemptKey = "verify:"
	resetAttemptKey  = "reset:"

	maxCodeRegenerations = 5
)

// SessionIssuer emite tokens de sesión locales.
type SessionIssuer interface {
	Issue(userID, email string) (string, error)
}

// AuthService coordina registro, verificación, login y recuperación de contraseña.
type AuthService struct {
	logger         *zap.Logger
	users          repository.UserRepository
	hasher         PasswordHasher
	codes          CodeGenerator
	tokens         SessionIssuer
	notifier       email.Sender
	sendLimiter    CodeRateLimiter
	attemptLimiter CodeRateLimiter
	now            func() time.Time
}

// NewAuthService arma el servicio. Los limiters nil se reemplazan por limiters en memoria.
func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	codes CodeGenerator,
	tokens SessionIssuer,
	notifier email.Sender,
	sendLimiter CodeRateLimiter,
	attemptLimiter CodeRateLimiter,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codes == nil {
		codes = NewNumericCodeGenerator()
	}
	if sendLimiter == nil {
		sendLimiter = NewCodeRateLimiter(codeSendWindow, codeSendMax)
	}
	if attemptLimiter == nil {
		attemptLimiter = NewCodeRateLimiter(codeAttemptWindow, codeAttemptMax)
	}
	return &AuthService{
		logger:         logger,
		users:          users,
		hasher:         hasher,
		codes:          codes,
		tokens:         tokens,
		notifier:       notifier,
		sendLimiter:    sendLimiter,
		attemptLimiter: attemptLimiter,
		now:            time.Now,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	if err := s.ready(); err != nil {
		return err
	}
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	if username == "" || emailAddr == "" || input.Password == "" {
		return ErrValidation
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	code, err := s.codes.Generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	user := domain.User{
		ID:               uuid.NewString(),
		Username:         username,
		Email:            emailAddr,
		PasswordHash:     hash,
		Verified:         false,
		VerificationCode: code,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return err
	}

	// La cuenta ya existe: un reintento daría 409, así que el fallo de entrega solo se registra.
	if err := s.notifier.SendVerificationCode(ctx, emailAddr, code); err != nil {
		s.logger.Warn("send verification code failed", zap.Error(err), zap.String("user_id", user.ID))
	}
	return nil
}

// VerifyEmail consume el código de verificación y devuelve un token de sesión.
func (s *AuthService) VerifyEmail(ctx context.Context, emailAddr, code string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || code == "" {
		return "", ErrValidation
	}
	if !s.attemptLimiter.Allow(verifyAttemptKey + emailAddr) {
		return "", ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if !codesEqual(user.VerificationCode, code) {
		return "", ErrInvalidCode
	}
	if err := s.users.MarkVerified(ctx, emailAddr, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCode
		}
		return "", err
	}
	return s.tokens.Issue(user.ID, user.Email)
}

// Login valida credenciales de una cuenta verificada. Email desconocido y contraseña
// incorrecta comparten ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return "", ErrValidation
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrUserNotFound)
		}
		return "", err
	}
	if !user.Verified {
		return "", ErrAccountNotVerified
	}
	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn("password compare failed", zap.Error(err), zap.String("user_id", user.ID))
		return "", ErrInvalidCredentials
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(user.ID, user.Email)
}

func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	if err := s.ready(); err != nil {
		return err
	}
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrValidation
	}
	if !s.sendLimiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	code, err := s.freshCode(user.ResetCode)
	if err != nil {
		return err
	}
	if err := s.users.SetResetCode(ctx, emailAddr, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.notifier.SendPasswordResetCode(ctx, emailAddr, code); err != nil {
		s.logger.Warn("send password reset code failed", zap.Error(err))
		return ErrNotificationFailed
	}
	return nil
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

// ResetPassword reemplaza la contraseña si el código coincide con el último emitido.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := s.ready(); err != nil {
		return err
	}
	emailAddr := normalizeEmail(input.Email)
	code := input.Code
	if emailAddr == "" || code == "" || input.NewPassword == "" {
		return ErrValidation
	}
	if !s.attemptLimiter.Allow(resetAttemptKey + emailAddr) {
		return ErrRateLimited
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.ResetPassword(ctx, emailAddr, code, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

// freshCode genera un código distinto de previous.
func (s *AuthService) freshCode(previous string) (string, error) {
	for i := 0; i < maxCodeRegenerations; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		if code != previous {
			return code, nil
		}
	}
	return "", errors.New("generate code: could not produce a new code")
}

func (s *AuthService) ready() error {
	if s == nil || s.users == nil || s.hasher == nil || s.tokens == nil || s.notifier == nil {
		return errors.New("auth service not configured")
	}
	return nil
}

// Los emails se comparan tal cual; solo se recortan espacios.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func codesEqual(stored, given string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
