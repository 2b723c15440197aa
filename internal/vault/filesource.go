package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileSource reads the credential set from a JSON array on disk — the shape
// the vault application exports for the bridge. The file is re-read on every
// fetch so the bridge always reflects the latest export; a missing or
// unreadable file reads as locked.
type FileSource struct {
	path string
	log  *logrus.Entry

	mu     sync.Mutex
	locked bool
}

func NewFileSource(path string) *FileSource {
	return &FileSource{
		path: path,
		log:  logrus.WithField("component", "vault"),
	}
}

func (s *FileSource) FetchAll(ctx context.Context) ([]Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	locked := s.locked
	s.mu.Unlock()
	if locked {
		return nil, ErrLocked
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrLocked, s.path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLocked, s.path, err)
	}

	var creds []Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file %q: %w", s.path, err)
	}
	return creds, nil
}

// RequestLock honors a Lock request by marking the source locked until the
// vault application re-exports. Implements the bridge's Locker.
func (s *FileSource) RequestLock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
	s.log.Info("vault lock requested; credential source marked locked")
}

// Unlock clears the lock flag. Not exposed on the wire; the vault
// application calls it after a successful local unlock.
func (s *FileSource) Unlock() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}
