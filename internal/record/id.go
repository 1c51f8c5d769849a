package record

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewTestID mints a client-side test identifier from the current time and
// a short random token, e.g. "test-1724570000000-x4k9qz". The timestamp
// component keeps ids sortable; the token guards against same-millisecond
// collisions.
func NewTestID(now time.Time) string {
	return fmt.Sprintf("test-%d-%s", now.UnixMilli(), randomToken(6))
}

// ValidTestID reports whether a string is usable as a test key. The store
// accepts any non-empty id so legacy records with older formats survive.
func ValidTestID(id string) bool {
	return strings.TrimSpace(id) != ""
}

func randomToken(length int) string {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand is effectively infallible on supported
			// platforms; fall back to a fixed character rather than
			// failing id generation.
			b.WriteByte('0')
			continue
		}
		b.WriteByte(tokenAlphabet[n.Int64()])
	}
	return b.String()
}
