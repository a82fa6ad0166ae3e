package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"tablematch_server/models"
)

// GenerateJoinCode returns a random code drawn from the join code alphabet
func GenerateJoinCode() (string, error) {
	alphabet := models.JoinCodeAlphabet
	limit := big.NewInt(int64(len(alphabet)))
	code := make([]byte, models.JoinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}
