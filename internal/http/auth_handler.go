package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goodwe-gateway/internal/service"
)

// AuthHandler expone el flujo de cuentas locales.
type AuthHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
}

func NewAuthHandler(logger *zap.Logger, authSvc *service.AuthService) *AuthHandler {
	registerValidators()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, authSvc: authSvc}
}

// Register maneja POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,notblank"`
		Email    string `json:"email" binding:"required,notblank"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req, "register") {
		return
	}

	err := h.authSvc.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"message": "user registered, check your email for the verification code"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"message": "email already in use"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		h.logger.Error("register failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})
	}
}

// VerifyEmail maneja POST /verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,notblank"`
		Code  string `json:"code" binding:"required,notblank"`
	}
	if !h.bind(c, &req, "verify email") {
		return
	}

	token, err := h.authSvc.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "email verified", "token": token})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid verification code"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "too many attempts, try again later"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		h.logger.Error("verify email failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "email verification failed"})
	}
}

// Login maneja POST /login. Email desconocido (404) y contraseña incorrecta (400) comparten mensaje.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,notblank"`
		Password string `json:"password" binding:"required"`
	}
	if !h.bind(c, &req, "login") {
		return
	}

	token, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": service.ErrInvalidCredentials.Error()})
	case errors.Is(err, service.ErrAccountNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"message": "account not verified, check your email to continue"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
	}
}

// ForgotPassword maneja POST /forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,notblank"`
	}
	if !h.bind(c, &req, "forgot password") {
		return
	}

	err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password reset code sent"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "no user found with this email"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "too many requests"})
	case errors.Is(err, service.ErrNotificationFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "email delivery unavailable"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		h.logger.Error("forgot password failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not request password reset"})
	}
}

// ResetPassword maneja POST /reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,notblank"`
		Code        string `json:"code" binding:"required,notblank"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if !h.bind(c, &req, "reset password") {
		return
	}

	err := h.authSvc.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password reset successful"})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid or expired reset code"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "too many attempts, try again later"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	default:
		h.logger.Error("reset password failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not reset password"})
	}
}

// Protected maneja GET /protected; solo responde si el middleware aceptó el token.
func (h *AuthHandler) Protected(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "authentication token not provided"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "access granted", "userId": claims.UserID})
}

func (h *AuthHandler) bind(c *gin.Context, req any, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid "+op+" request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return false
	}
	return true
}
