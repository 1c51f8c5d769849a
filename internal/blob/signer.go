package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer mints and verifies HMAC download links for drivers without a
// native presign facility. Links resolve against the daemon's /blobs/
// route.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner builds a signer. baseURL is the externally reachable daemon
// address, e.g. "http://127.0.0.1:7497".
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Sign returns a download URL for key that expires after ttl.
func (s *Signer) Sign(key string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	mac := s.compute(key, expires)
	return fmt.Sprintf("%s/blobs/%s?expires=%d&sig=%s", s.baseURL, escapeKeyPath(key), expires, mac)
}

// Verify checks the signature and expiry carried in a request's query
// parameters against the requested key.
func (s *Signer) Verify(key string, query url.Values) error {
	expiresRaw := query.Get("expires")
	sig := query.Get("sig")
	if expiresRaw == "" || sig == "" {
		return errors.New("missing signature")
	}
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return errors.New("malformed expiry")
	}
	if time.Now().Unix() > expires {
		return errors.New("link expired")
	}
	expected := s.compute(key, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errors.New("signature mismatch")
	}
	return nil
}

func (s *Signer) compute(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKeyPath(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
