// Package vault carries the decrypted credential model the bridge brokers and
// reference implementations of the collaborator interfaces the bridge
// consumes. The real encrypted storage layer lives in the vault application;
// the bridge only ever sees this in-memory shape.
package vault

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked means the credential source is not currently readable (vault
// locked or export missing). The bridge maps it to DATABASE_LOCKED.
var ErrLocked = errors.New("vault: credential source locked")

// Credential is one decrypted stored record.
type Credential struct {
	Title          string   `json:"title"`
	Username       string   `json:"username"`
	Password       string   `json:"password"`
	Website        string   `json:"website"`
	PackageName    string   `json:"packageName"`
	AllowedDomains []string `json:"allowedDomains"`
	OTPSecret      string   `json:"otpSecret,omitempty"`
}

// MemorySource is a concurrency-safe in-memory credential set, used by tests
// and by the daemon's file-backed wiring.
type MemorySource struct {
	mu     sync.RWMutex
	creds  []Credential
	locked bool
}

func NewMemorySource(creds ...Credential) *MemorySource {
	return &MemorySource{creds: creds}
}

// FetchAll returns a copy of the current credential set, or ErrLocked while
// the source is locked.
func (s *MemorySource) FetchAll(ctx context.Context) ([]Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.locked {
		return nil, ErrLocked
	}
	out := make([]Credential, len(s.creds))
	copy(out, s.creds)
	return out, nil
}

func (s *MemorySource) Add(c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, c)
}

// SetLocked flips the lock state; used to honor Lock requests and by tests.
func (s *MemorySource) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = locked
}

func (s *MemorySource) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}
