package repository

import "errors"

// Errores normalizados que exponen todas las implementaciones, sin importar el driver.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)
