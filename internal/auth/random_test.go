package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandom_LengthAndAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		s, err := GenerateRandom(12, 16)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(s), 12)
		assert.LessOrEqual(t, len(s), 16)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(randomAlphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestGenerateRandom_FixedLength(t *testing.T) {
	s, err := GenerateRandom(8, 8)
	require.NoError(t, err)
	assert.Len(t, s, 8)
}

func TestGenerateRandom_BadBounds(t *testing.T) {
	_, err := GenerateRandom(0, 5)
	require.ErrorIs(t, err, ErrRandomLength)

	_, err = GenerateRandom(6, 5)
	require.ErrorIs(t, err, ErrRandomLength)
}
