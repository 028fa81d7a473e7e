package recovery

import (
	"crypto/rand"
	"encoding/hex"
)

// restorationTokenLength is the number of random bytes in a token.
const restorationTokenLength = 32

// newRestorationToken creates a cryptographically secure single-use token.
func newRestorationToken() (string, error) {
	bytes := make([]byte, restorationTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
