package signaling

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud or
// scribbled on paper.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a share code.
const CodeLength = 6

var codeMax = big.NewInt(int64(len(codeAlphabet)))

// GenerateCode returns a short share code such as "AB34CD". Rooms are
// created on first join, so collision tolerance comes from the code
// space (32^6) rather than server-side bookkeeping.
func GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, codeMax)
		if err != nil {
			return "", fmt.Errorf("generate share code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode maps a peer-entered code to canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
