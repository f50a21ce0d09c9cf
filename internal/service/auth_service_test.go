package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"goodwe-gateway/internal/domain"
	"goodwe-gateway/internal/repository"
)

type mockUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *mockUserRepo) MarkVerified(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok || user.VerificationCode == "" || user.VerificationCode != code {
		return repository.ErrNotFound
	}
	user.Verified = true
	user.VerificationCode = ""
	m.byEmail[email] = user
	return nil
}

func (m *mockUserRepo) SetResetCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return repository.ErrNotFound
	}
	user.ResetCode = code
	m.byEmail[email] = user
	return nil
}

func (m *mockUserRepo) ResetPassword(_ context.Context, email, code, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok || user.ResetCode == "" || user.ResetCode != code {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetCode = ""
	m.byEmail[email] = user
	return nil
}

type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (s *sequenceCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.codes) {
		return "", errors.New("no more codes")
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}

type capturingSender struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	err          error
}

func newCapturingSender() *capturingSender {
	return &capturingSender{
		verification: make(map[string]string),
		reset:        make(map[string]string),
	}
}

func (c *capturingSender) SendVerificationCode(_ context.Context, to, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verification[to] = code
	return c.err
}

func (c *capturingSender) SendPasswordResetCode(_ context.Context, to, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset[to] = code
	return c.err
}

type mockLimiter struct {
	allow bool
}

func (m *mockLimiter) Allow(_ string) bool {
	return m.allow
}

type authFixture struct {
	svc    *AuthService
	repo   *mockUserRepo
	sender *capturingSender
	jwt    *JWTService
}

func newAuthFixture(codes ...string) authFixture {
	repo := newMockUserRepo()
	sender := newCapturingSender()
	jwtSvc := NewJWTService("test-secret", "", time.Hour)
	var gen CodeGenerator = NewNumericCodeGenerator()
	if len(codes) > 0 {
		gen = &sequenceCodes{codes: codes}
	}
	svc := NewAuthService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost), gen, jwtSvc, sender, nil, nil)
	return authFixture{svc: svc, repo: repo, sender: sender, jwt: jwtSvc}
}

func TestAuthService_RegisterVerifyLogin(t *testing.T) {
	f := newAuthFixture("4821")
	ctx := context.Background()

	if err := f.svc.Register(ctx, RegisterInput{Username: "ana", Email: "ana@x.com", Password: "s3cret"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, _ := f.repo.GetByEmail(ctx, "ana@x.com")
	if stored.Verified || stored.VerificationCode != "4821" {
		t.Fatalf("expected pending verification, got %+v", stored)
	}
	if stored.PasswordHash == "s3cret" || stored.PasswordHash == "" {
		t.Fatalf("expected hashed password")
	}
	if f.sender.verification["ana@x.com"] != "4821" {
		t.Fatalf("expected code delivered, got %q", f.sender.verification["ana@x.com"])
	}

	if _, err := f.svc.Login(ctx, "ana@x.com", "s3cret"); !errors.Is(err, ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified before verification, got %v", err)
	}

	if _, err := f.svc.VerifyEmail(ctx, "ana@x.com", "0000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for wrong code, got %v", err)
	}
	token, err := f.svc.VerifyEmail(ctx, "ana@x.com", "4821")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	claims, err := f.jwt.Verify(token)
	if err != nil || claims.Email != "ana@x.com" || claims.UserID != stored.ID {
		t.Fatalf("unexpected verify token claims %+v err=%v", claims, err)
	}

	if _, err := f.svc.VerifyEmail(ctx, "ana@x.com", "4821"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected consumed code to be rejected, got %v", err)
	}

	loginToken, err := f.svc.Login(ctx, "ana@x.com", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginToken == token {
		t.Fatalf("expected a fresh token per login")
	}

	if _, err := f.svc.Login(ctx, "ana@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected bare ErrInvalidCredentials for bad password, got %v", err)
	}
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.Login(context.Background(), "ghost@x.com", "pw")
	if !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected credentials error wrapping not found, got %v", err)
	}
}

func TestAuthService_EmailIsCaseSensitive(t *testing.T) {
	f := newAuthFixture("1111", "2222")
	ctx := context.Background()
	if err := f.svc.Register(ctx, RegisterInput{Username: "a", Email: " Ana@x.com ", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.repo.GetByEmail(ctx, "Ana@x.com"); err != nil {
		t.Fatalf("expected trimmed email stored, got %v", err)
	}
	if err := f.svc.Register(ctx, RegisterInput{Username: "b", Email: "ana@x.com", Password: "pw"}); err != nil {
		t.Fatalf("expected distinct account for different case, got %v", err)
	}
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newAuthFixture("1111", "2222")
	ctx := context.Background()
	in := RegisterInput{Username: "ana", Email: "ana@x.com", Password: "pw"}
	if err := f.svc.Register(ctx, in); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.Register(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_ConcurrentRegisterOneWinner(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	var wins, taken int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := f.svc.Register(ctx, RegisterInput{Username: fmt.Sprintf("u%d", i), Email: "race@x.com", Password: "pw"})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrEmailTaken):
				atomic.AddInt32(&taken, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || taken != 15 {
		t.Fatalf("expected 1 winner and 15 conflicts, got %d/%d", wins, taken)
	}
}

func TestAuthService_RegisterDeliveryFailureStillSucceeds(t *testing.T) {
	f := newAuthFixture("1234")
	f.sender.err = errors.New("smtp down")
	if err := f.svc.Register(context.Background(), RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("expected register to succeed despite delivery failure, got %v", err)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newAuthFixture()
	for _, in := range []RegisterInput{
		{Email: "a@x.com", Password: "pw"},
		{Username: "a", Email: "  ", Password: "pw"},
		{Username: "a", Email: "a@x.com"},
	} {
		if err := f.svc.Register(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, err)
		}
	}
}

func TestAuthService_VerifyUnknownEmail(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.svc.VerifyEmail(context.Background(), "ghost@x.com", "1234"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_PasswordResetLastCodeWins(t *testing.T) {
	f := newAuthFixture("1000", "2000", "3000")
	ctx := context.Background()
	if err := f.svc.Register(ctx, RegisterInput{Username: "ana", Email: "ana@x.com", Password: "old-pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.VerifyEmail(ctx, "ana@x.com", "1000"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := f.svc.ForgotPassword(ctx, "ana@x.com"); err != nil {
		t.Fatalf("forgot #1: %v", err)
	}
	first := f.sender.reset["ana@x.com"]
	if err := f.svc.ForgotPassword(ctx, "ana@x.com"); err != nil {
		t.Fatalf("forgot #2: %v", err)
	}
	second := f.sender.reset["ana@x.com"]
	if first == second {
		t.Fatalf("expected distinct codes, got %q twice", first)
	}

	err := f.svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@x.com", Code: first, NewPassword: "new-pw"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected superseded code rejected, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@x.com", Code: second, NewPassword: "new-pw"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := f.svc.ResetPassword(ctx, ResetPasswordInput{Email: "ana@x.com", Code: second, NewPassword: "other"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected consumed reset code rejected, got %v", err)
	}

	if _, err := f.svc.Login(ctx, "ana@x.com", "old-pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "ana@x.com", "new-pw"); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}
}

func TestAuthService_ForgotPasswordErrors(t *testing.T) {
	f := newAuthFixture("1000", "2000")
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "ghost@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, ok := f.sender.reset["ghost@x.com"]; ok {
		t.Fatalf("expected no reset code sent to unknown email")
	}
	if gen := f.svc.codes.(*sequenceCodes); gen.next != 0 {
		t.Fatalf("expected no code generated for unknown email, generated %d", gen.next)
	}

	if err := f.svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	f.sender.err = errors.New("smtp down")
	if err := f.svc.ForgotPassword(ctx, "a@x.com"); !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	user, _ := f.repo.GetByEmail(ctx, "a@x.com")
	if user.ResetCode != "2000" {
		t.Fatalf("expected reset code stored before delivery, got %q", user.ResetCode)
	}
}

func TestAuthService_ForgotPasswordNeverRepeatsCode(t *testing.T) {
	f := newAuthFixture("1000", "5555", "5555", "6000")
	ctx := context.Background()
	if err := f.svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot #1: %v", err)
	}
	if got := f.sender.reset["a@x.com"]; got != "5555" {
		t.Fatalf("expected first code 5555, got %q", got)
	}
	if err := f.svc.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot #2: %v", err)
	}
	if got := f.sender.reset["a@x.com"]; got != "6000" {
		t.Fatalf("expected repeated code skipped, got %q", got)
	}
	if err := f.svc.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Code: "5555", NewPassword: "x"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected superseded code rejected, got %v", err)
	}
}

func TestAuthService_ForgotPasswordGeneratorStuck(t *testing.T) {
	f := newAuthFixture("1000", "5555", "5555", "5555", "5555", "5555", "5555")
	ctx := context.Background()
	if err := f.svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot #1: %v", err)
	}
	if err := f.svc.ForgotPassword(ctx, "a@x.com"); err == nil {
		t.Fatalf("expected error when no new code can be produced")
	}
	user, _ := f.repo.GetByEmail(ctx, "a@x.com")
	if user.ResetCode != "5555" {
		t.Fatalf("expected previous reset code kept, got %q", user.ResetCode)
	}
}

func TestAuthService_CodesAreComparedExactly(t *testing.T) {
	f := newAuthFixture("4821", "3300")
	ctx := context.Background()
	if err := f.svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.VerifyEmail(ctx, "a@x.com", " 4821"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected padded code rejected, got %v", err)
	}
	if _, err := f.svc.VerifyEmail(ctx, "a@x.com", "4821"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := f.svc.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if err := f.svc.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Code: "3300 ", NewPassword: "x"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected padded reset code rejected, got %v", err)
	}
}

func TestAuthService_ResetUnknownUserIsInvalidCode(t *testing.T) {
	f := newAuthFixture()
	err := f.svc.ResetPassword(context.Background(), ResetPasswordInput{Email: "ghost@x.com", Code: "1234", NewPassword: "pw"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestAuthService_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	deny := &mockLimiter{allow: false}
	svc := NewAuthService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost), nil,
		NewJWTService("s", "", time.Hour), newCapturingSender(), deny, deny)
	ctx := context.Background()

	if err := svc.ForgotPassword(ctx, "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected forgot rate limited, got %v", err)
	}
	if _, err := svc.VerifyEmail(ctx, "a@x.com", "1234"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected verify rate limited, got %v", err)
	}
	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Code: "1234", NewPassword: "pw"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected reset rate limited, got %v", err)
	}
}

func TestAuthService_AttemptLimitStopsGuessing(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(zap.NewNop(), repo, NewBcryptHasher(bcrypt.MinCost), &sequenceCodes{codes: []string{"7777"}},
		NewJWTService("s", "", time.Hour), newCapturingSender(), nil, NewCodeRateLimiter(time.Minute, 3))
	ctx := context.Background()
	if err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, guess := range []string{"1000", "1001", "1002"} {
		if _, err := svc.VerifyEmail(ctx, "a@x.com", guess); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected ErrInvalidCode, got %v", err)
		}
	}
	if _, err := svc.VerifyEmail(ctx, "a@x.com", "7777"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected attempts exhausted, got %v", err)
	}

	// El bloqueo de verificación no consume el presupuesto de reset.
	if err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "a@x.com", Code: "1000", NewPassword: "x"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected reset attempts unaffected by verify lockout, got %v", err)
	}
}
