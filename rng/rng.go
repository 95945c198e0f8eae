// Package rng draws round outcomes.
package rng

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// The single-zero wheel.
const (
	MinOutcome = 0
	MaxOutcome = 36
)

// ErrInvalidRange is returned when high < low.
var ErrInvalidRange = errors.New("rng: invalid range")

// Generator produces integers uniformly distributed over [low, high].
type Generator interface {
	Generate(low, high int) (int, error)
}

// CryptoGenerator draws from crypto/rand. It holds no state between calls.
type CryptoGenerator struct{}

// NewCryptoGenerator returns a generator backed by the operating system CSPRNG.
func NewCryptoGenerator() *CryptoGenerator {
	return &CryptoGenerator{}
}

// Generate returns a uniformly distributed integer in the closed range [low, high].
func (g *CryptoGenerator) Generate(low, high int) (int, error) {
	if high < low {
		return 0, fmt.Errorf("%w: high %d < low %d", ErrInvalidRange, high, low)
	}

	span := big.NewInt(int64(high) - int64(low) + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, fmt.Errorf("rng: read random source: %w", err)
	}
	return low + int(n.Int64()), nil
}

// Outcome draws a wheel number with g. A failure here means the fixed
// wheel range or the random source is broken, so it panics.
func Outcome(g Generator) int {
	n, err := g.Generate(MinOutcome, MaxOutcome)
	if err != nil {
		panic(err)
	}
	return n
}
