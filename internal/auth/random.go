package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var ErrRandomLength = errors.New("invalid random length bounds")

// GenerateRandom returns a string of random length in [minLen, maxLen]
// over lowercase letters and digits. It has no uniqueness guarantee.
func GenerateRandom(minLen, maxLen int) (string, error) {
	if minLen < 1 || maxLen < minLen {
		return "", fmt.Errorf("%w: [%d, %d]", ErrRandomLength, minLen, maxLen)
	}
	n, err := randInt(maxLen - minLen + 1)
	if err != nil {
		return "", err
	}
	out := make([]byte, minLen+n)
	for i := range out {
		j, err := randInt(len(randomAlphabet))
		if err != nil {
			return "", err
		}
		out[i] = randomAlphabet[j]
	}
	return string(out), nil
}

func randInt(upper int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(upper)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(n.Int64()), nil
}
