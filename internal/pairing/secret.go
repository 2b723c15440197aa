package pairing

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringSecret stores the shared pairing secret in the OS keyring,
// provisioning a random 32-byte value on first use. The secret never travels
// over the wire; the operator reads it out of band (vaultlinkctl secret) and
// enters it into the browser extension.
type KeyringSecret struct {
	Service string
	Account string
}

func (k KeyringSecret) SharedSecret() ([]byte, error) {
	s, err := keyring.Get(k.Service, k.Account)
	if err == nil && s != "" {
		b, derr := base64.StdEncoding.DecodeString(s)
		if derr != nil {
			return nil, fmt.Errorf("keyring secret invalid base64: %w", derr)
		}
		return b, nil
	}

	// go-keyring's not-found sentinel differs by platform; treat any Get
	// failure as "maybe missing" and try to provision.
	return k.Rotate()
}

// Rotate replaces the shared secret with a fresh random one and returns it.
// Existing pairings stay valid; only future TestAssociate proofs use the new
// secret.
func (k KeyringSecret) Rotate() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("rand shared secret: %w", err)
	}
	if err := keyring.Set(k.Service, k.Account, base64.StdEncoding.EncodeToString(b)); err != nil {
		return nil, fmt.Errorf("store shared secret: %w", err)
	}
	return b, nil
}

// StaticSecret is a fixed in-memory secret for tests and config overrides.
type StaticSecret []byte

func (s StaticSecret) SharedSecret() ([]byte, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no shared secret configured")
	}
	return []byte(s), nil
}

// Payload is the out-of-band pairing blob rendered for the extension
// (shown as JSON or a QR image by vaultlinkctl).
type Payload struct {
	Version   int    `json:"v"`
	SecretB64 string `json:"secret_b64"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
}

// BuildPayload creates the pairing JSON the extension consumes.
func BuildPayload(secret []byte, host string, port int) ([]byte, error) {
	p := Payload{
		Version:   1,
		SecretB64: base64.StdEncoding.EncodeToString(secret),
		Host:      host,
		Port:      port,
	}
	return json.MarshalIndent(p, "", "  ")
}
