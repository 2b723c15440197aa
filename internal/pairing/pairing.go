// Package pairing holds the bridge's trust state: which remote clients have
// proven knowledge of the out-of-band shared secret, and the stable server
// identity shown to them.
package pairing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/OsbornePro/VaultLink/internal/store"
)

// ErrSecretMismatch rejects a TestAssociate whose keyHash does not prove
// knowledge of the shared secret. Callers treat it as an authentication
// failure, not a protocol error.
var ErrSecretMismatch = errors.New("pairing: shared secret mismatch")

const (
	recordPrefix = "pairing/"
	identityKey  = "server/identity"
)

// Record is one trusted remote peer. ClientKey is opaque key material; the
// bridge never decrypts or interprets it.
type Record struct {
	PairingID  string    `json:"pairingId"`
	DeviceName string    `json:"deviceName"`
	ClientKey  string    `json:"clientKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SecretSource supplies the shared secret the client must prove knowledge
// of. Errors fail closed: no secret means no pairing is ever accepted.
type SecretSource interface {
	SharedSecret() ([]byte, error)
}

// Store validates pairing proofs and persists trust records through an
// injected key-value store. All mutations write through before returning;
// concurrency safety is delegated to the backing store.
type Store struct {
	kv      store.KV
	secrets SecretSource
	log     *logrus.Entry

	// serializes lazy identity provisioning only
	idMu sync.Mutex
}

func NewStore(kv store.KV, secrets SecretSource) *Store {
	return &Store{
		kv:      kv,
		secrets: secrets,
		log:     logrus.WithField("component", "pairing"),
	}
}

// Create accepts the pairing iff keyHash == hex(HMAC-SHA256(secret, clientKey)),
// persists a fresh record and returns its id. Rejection is ErrSecretMismatch;
// cryptographic trouble (missing secret, bad hex) also rejects, never crashes.
func (s *Store) Create(clientKey, keyHash, deviceName string) (string, error) {
	if !s.proves(clientKey, keyHash) {
		return "", ErrSecretMismatch
	}

	rec := Record{
		PairingID:  uuid.NewString(),
		DeviceName: deviceName,
		ClientKey:  clientKey,
		CreatedAt:  time.Now().UTC(),
	}
	b, err := json.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("marshal pairing record: %w", err)
	}
	if err := s.kv.Put(recordPrefix+rec.PairingID, string(b)); err != nil {
		return "", fmt.Errorf("persist pairing record: %w", err)
	}

	s.log.WithFields(logrus.Fields{"id": rec.PairingID, "device": deviceName}).Info("pairing created")
	return rec.PairingID, nil
}

func (s *Store) proves(clientKey, keyHash string) bool {
	secret, err := s.secrets.SharedSecret()
	if err != nil || len(secret) == 0 {
		s.log.WithError(err).Warn("shared secret unavailable; rejecting pairing")
		return false
	}
	got, err := hex.DecodeString(keyHash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(clientKey))
	return hmac.Equal(got, mac.Sum(nil))
}

// Get returns the record for id, reading the latest durable state.
func (s *Store) Get(id string) (Record, bool) {
	v, err := s.kv.Get(recordPrefix + id)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		s.log.WithError(err).WithField("id", id).Error("corrupt pairing record")
		return Record{}, false
	}
	return rec, true
}

// Validate is the authorization gate for every protected request.
func (s *Store) Validate(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.Get(id)
	return ok
}

// List returns all records, newest first.
func (s *Store) List() ([]Record, error) {
	keys, err := s.kv.Keys(recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("enumerate pairings: %w", err)
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		v, err := s.kv.Get(k)
		if err != nil {
			continue // removed between enumerate and read
		}
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			s.log.WithError(err).WithField("key", k).Error("corrupt pairing record")
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Remove revokes a pairing. Idempotent; reports whether a record existed.
func (s *Store) Remove(id string) bool {
	_, existed := s.Get(id)
	if err := s.kv.Remove(recordPrefix + id); err != nil {
		s.log.WithError(err).WithField("id", id).Error("remove pairing")
		return false
	}
	if existed {
		s.log.WithField("id", id).Info("pairing revoked")
	}
	return existed
}

// ServerIdentityHash returns hex(SHA-256(identity token)), provisioning a
// random token on first call and reusing it across restarts. Storage or
// crypto failure yields "" (fail closed), never a crash.
func (s *Store) ServerIdentityHash() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	token, err := s.kv.Get(identityKey)
	if errors.Is(err, store.ErrNotFound) {
		b := make([]byte, 32)
		if _, rerr := rand.Read(b); rerr != nil {
			s.log.WithError(rerr).Error("generate server identity")
			return ""
		}
		token = hex.EncodeToString(b)
		if perr := s.kv.Put(identityKey, token); perr != nil {
			s.log.WithError(perr).Error("persist server identity")
			return ""
		}
		s.log.Info("provisioned server identity")
	} else if err != nil {
		s.log.WithError(err).Error("read server identity")
		return ""
	}

	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
