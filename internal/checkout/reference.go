package checkout

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet omits 0/O/1/I so agents can read codes over the phone.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceLength = 6

// newReference produces a booking reference like SFR-7H2K9Q.
func newReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return "SFR-" + string(buf), nil
}
