package store

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"
)

// SealedFile keeps the whole key space as one JSON object, sealed with
// XChaCha20-Poly1305 and rewritten atomically on every mutation. The sealing
// key normally lives in the OS keyring (KeyFromKeyring); tests pass a key
// directly.
type SealedFile struct {
	path string
	key  []byte

	mu sync.Mutex
	m  map[string]string
}

const sealedFileAAD = "VaultLink store v1"

type sealedFileV1 struct {
	V        int    `json:"v"`
	Alg      string `json:"alg"` // "xchacha20poly1305"
	NonceB64 string `json:"nonce_b64"`
	CtB64    string `json:"ct_b64"`
}

// OpenSealedFile loads (or starts) the sealed store at path. key must be
// chacha20poly1305.KeySize bytes.
func OpenSealedFile(path string, key []byte) (*SealedFile, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealed store key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	s := &SealedFile{path: path, key: key, m: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading store file %q: %w", path, err)
	}

	var wrap sealedFileV1
	if err := json.Unmarshal(data, &wrap); err != nil || wrap.V != 1 || wrap.Alg != "xchacha20poly1305" {
		return nil, fmt.Errorf("store file %q is not a sealed v1 store", path)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("NewX: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(wrap.NonceB64)
	if err != nil {
		return nil, fmt.Errorf("decode nonce_b64: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(wrap.CtB64)
	if err != nil {
		return nil, fmt.Errorf("decode ct_b64: %w", err)
	}
	pt, err := aead.Open(nil, nonce, ct, []byte(sealedFileAAD))
	if err != nil {
		return nil, fmt.Errorf("decrypt store file %q: %w", path, err)
	}
	if err := json.Unmarshal(pt, &s.m); err != nil {
		return nil, fmt.Errorf("parse store json inside sealed wrapper: %w", err)
	}
	return s, nil
}

// KeyFromKeyring fetches the sealing key from the OS keyring, provisioning a
// fresh random one on first use. go-keyring's not-found sentinel differs by
// platform, so any Get failure is treated as "maybe missing".
func KeyFromKeyring(service, account string) ([]byte, error) {
	s, err := keyring.Get(service, account)
	if err == nil && s != "" {
		b, derr := base64.StdEncoding.DecodeString(s)
		if derr != nil {
			return nil, fmt.Errorf("keyring key invalid base64: %w", derr)
		}
		if len(b) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("keyring key wrong length: got %d want %d", len(b), chacha20poly1305.KeySize)
		}
		return b, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, rerr := rand.Read(key); rerr != nil {
		return nil, fmt.Errorf("rand store key: %w", rerr)
	}
	if serr := keyring.Set(service, account, base64.StdEncoding.EncodeToString(key)); serr != nil {
		return nil, serr
	}
	return key, nil
}

func (s *SealedFile) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *SealedFile) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.m[key]
	s.m[key] = value
	if err := s.flushLocked(); err != nil {
		// Undo so memory never claims more than disk holds.
		if had {
			s.m[key] = old
		} else {
			delete(s.m, key)
		}
		return err
	}
	return nil
}

func (s *SealedFile) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.m[key]
	if !had {
		return nil
	}
	delete(s.m, key)
	if err := s.flushLocked(); err != nil {
		s.m[key] = old
		return err
	}
	return nil
}

func (s *SealedFile) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *SealedFile) Close() error { return nil }

func (s *SealedFile) flushLocked() error {
	pt, err := json.MarshalIndent(s.m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store json: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("NewX: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("rand nonce: %w", err)
	}
	// AAD ties ciphertext to this purpose (not secret).
	ct := aead.Seal(nil, nonce, pt, []byte(sealedFileAAD))

	wrap := sealedFileV1{
		V:        1,
		Alg:      "xchacha20poly1305",
		NonceB64: base64.StdEncoding.EncodeToString(nonce),
		CtB64:    base64.StdEncoding.EncodeToString(ct),
	}
	out, err := json.MarshalIndent(&wrap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sealed wrapper: %w", err)
	}
	return atomicWrite0600(s.path, out)
}

func atomicWrite0600(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}
