package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produce códigos numéricos de un solo uso.
type CodeGenerator interface {
	Generate() (string, error)
}

// NumericCodeGenerator genera códigos de Digits dígitos sin cero inicial.
type NumericCodeGenerator struct {
	Digits int
}

func NewNumericCodeGenerator() NumericCodeGenerator {
	return NumericCodeGenerator{Digits: 4}
}

func (g NumericCodeGenerator) Generate() (string, error) {
	digits := g.Digits
	if digits <= 0 {
		digits = 4
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return n.Add(n, low).String(), nil
}
