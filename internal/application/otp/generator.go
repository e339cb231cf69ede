package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generator produces fixed-length numeric codes with no leading zero, drawn
// uniformly from [10^(n-1), 10^n-1] using crypto/rand.
type Generator struct {
	min  *big.Int
	span *big.Int
}

func NewGenerator(length int) *Generator {
	if length < 1 {
		length = 6
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	hi := new(big.Int).Mul(lo, big.NewInt(10))
	return &Generator{min: lo, span: new(big.Int).Sub(hi, lo)}
}

func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return n.Add(n, g.min).String(), nil
}
