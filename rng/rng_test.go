package rng

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoGenerator_Bounds(t *testing.T) {
	g := NewCryptoGenerator()
	for i := 0; i < 5000; i++ {
		n, err := g.Generate(MinOutcome, MaxOutcome)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, MinOutcome)
		require.LessOrEqual(t, n, MaxOutcome)
	}
}

func TestCryptoGenerator_CoversRange(t *testing.T) {
	g := NewCryptoGenerator()
	seen := make(map[int]bool)
	for i := 0; i < 20000 && len(seen) < MaxOutcome+1; i++ {
		n, err := g.Generate(MinOutcome, MaxOutcome)
		require.NoError(t, err)
		seen[n] = true
	}
	assert.Len(t, seen, MaxOutcome+1, "every pocket should come up in 20000 draws")
}

func TestCryptoGenerator_SinglePoint(t *testing.T) {
	n, err := NewCryptoGenerator().Generate(7, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCryptoGenerator_NegativeRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := NewCryptoGenerator().Generate(-3, -1)
		require.NoError(t, err)
		assert.True(t, n >= -3 && n <= -1, "got %d", n)
	}
}

func TestCryptoGenerator_InvalidRange(t *testing.T) {
	_, err := NewCryptoGenerator().Generate(36, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

type brokenGenerator struct{}

func (brokenGenerator) Generate(low, high int) (int, error) { return 0, ErrInvalidRange }

func TestOutcome_PanicsOnContractViolation(t *testing.T) {
	assert.Panics(t, func() { Outcome(brokenGenerator{}) })
}
