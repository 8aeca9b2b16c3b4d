package studysession

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a cryptographically random 6-digit verification code.
// Leading zeros are kept.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// validCode reports whether s is exactly CodeLength ASCII digits.
func validCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
