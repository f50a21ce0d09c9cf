package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashea passwords con sal y los compara en tiempo constante.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// BcryptHasher usa bcrypt con el costo indicado.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func (h *BcryptHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Argon2Hasher usa argon2id con la configuración por defecto de la librería.
type Argon2Hasher struct {
	cfg argon2.Config
}

func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{cfg: argon2.DefaultConfig()}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(password))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (h *Argon2Hasher) Compare(hash, password string) (bool, error) {
	return argon2.VerifyEncoded([]byte(password), []byte(hash))
}

// chainHasher hashea con el algoritmo primario y verifica según el prefijo del hash,
// así un cambio de PASSWORD_HASHER no invalida cuentas existentes.
type chainHasher struct {
	primary PasswordHasher
	bcrypt  PasswordHasher
	argon2  PasswordHasher
}

// NewPasswordHasher devuelve el hasher para kind ("bcrypt" o "argon2").
func NewPasswordHasher(kind string, bcryptCost int) (PasswordHasher, error) {
	chain := &chainHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: NewArgon2Hasher(),
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bcrypt":
		chain.primary = chain.bcrypt
	case "argon2":
		chain.primary = chain.argon2
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
	return chain, nil
}

func (h *chainHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

func (h *chainHasher) Compare(hash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2"):
		return h.argon2.Compare(hash, password)
	case strings.HasPrefix(hash, "$2"):
		return h.bcrypt.Compare(hash, password)
	default:
		return false, errors.New("unrecognized password hash format")
	}
}
