package service

import "errors"

// Errores del flujo de autenticación y del broker. Los handlers los traducen a status HTTP.
var (
	ErrValidation         = errors.New("missing or invalid parameters")
	ErrEmailTaken         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotificationFailed = errors.New("notification delivery failed")
	ErrUpstreamAuthFailed = errors.New("upstream authentication failed")
)
