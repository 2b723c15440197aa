// Package totp derives RFC 6238 one-time codes from stored Base32 secrets.
// The bridge only ever enriches credential responses with these codes, so the
// implementation is fixed to the common parameters: 30-second steps,
// HMAC-SHA1, 6 digits.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// Step is the code validity window.
	Step = 30 // seconds

	digits  = 6
	modulus = 1000000 // 10^digits
)

// Generate returns the 6-digit code for secret at the given unix time.
// secret is standard-alphabet Base32, case-insensitive, "=" padding optional.
func Generate(secret string, unixTime int64) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("totp secret: %w", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(unixTime/Step))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%modulus), nil
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}
