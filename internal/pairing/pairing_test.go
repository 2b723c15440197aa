package pairing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/OsbornePro/VaultLink/internal/store"
)

var testSecret = []byte("out-of-band-secret")

func newTestStore(t *testing.T) (*Store, store.KV) {
	t.Helper()
	kv := store.NewMemory()
	return NewStore(kv, StaticSecret(testSecret)), kv
}

func keyHashFor(secret []byte, clientKey string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(clientKey))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreate_AcceptsCorrectProof(t *testing.T) {
	s, _ := newTestStore(t)

	id, err := s.Create("client-key", keyHashFor(testSecret, "client-key"), "Firefox")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}
	if !s.Validate(id) {
		t.Fatal("fresh pairing does not validate")
	}

	rec, ok := s.Get(id)
	if !ok {
		t.Fatal("Get after Create failed")
	}
	if rec.DeviceName != "Firefox" || rec.ClientKey != "client-key" {
		t.Fatalf("record fields wrong: %+v", rec)
	}
}

func TestCreate_RejectsTamperedHash(t *testing.T) {
	s, _ := newTestStore(t)

	good := keyHashFor(testSecret, "client-key")
	raw, _ := hex.DecodeString(good)

	// Flip every single bit in turn; all mutations must reject.
	for i := 0; i < len(raw)*8; i++ {
		bad := make([]byte, len(raw))
		copy(bad, raw)
		bad[i/8] ^= 1 << (i % 8)

		_, err := s.Create("client-key", hex.EncodeToString(bad), "Evil")
		if !errors.Is(err, ErrSecretMismatch) {
			t.Fatalf("bit %d: expected ErrSecretMismatch, got %v", i, err)
		}
	}
}

func TestCreate_RejectsWrongSecretAndBadHex(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Create("k", keyHashFor([]byte("other secret"), "k"), "d"); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("wrong secret: got %v", err)
	}
	if _, err := s.Create("k", "not-hex!!", "d"); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("bad hex: got %v", err)
	}
}

func TestCreate_FailsClosedWithoutSecret(t *testing.T) {
	kv := store.NewMemory()
	s := NewStore(kv, StaticSecret(nil))

	// Empty shared secret must reject even a hash computed over empty key.
	if _, err := s.Create("k", keyHashFor(nil, "k"), "d"); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected fail-closed rejection, got %v", err)
	}
}

func TestRemove_RevokesAndIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	id, err := s.Create("k", keyHashFor(testSecret, "k"), "d")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !s.Remove(id) {
		t.Fatal("Remove of existing pairing returned false")
	}
	if s.Validate(id) {
		t.Fatal("pairing validates after Remove")
	}
	if s.Remove(id) {
		t.Fatal("second Remove returned true")
	}
}

func TestList_NewestFirst(t *testing.T) {
	s, _ := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Create("k", keyHashFor(testSecret, "k"), fmt.Sprintf("dev-%d", i))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond) // distinct createdAt
	}

	recs, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List returned %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if want := ids[len(ids)-1-i]; rec.PairingID != want {
			t.Fatalf("List[%d] = %s, want %s (newest first)", i, rec.PairingID, want)
		}
	}
}

func TestCreate_ConcurrentDistinctIDs(t *testing.T) {
	s, _ := newTestStore(t)

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Create("k", keyHashFor(testSecret, "k"), "d")
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if id == "" {
			t.Fatal("missing id from concurrent create")
		}
		if seen[id] {
			t.Fatalf("duplicate pairing id %s", id)
		}
		seen[id] = true
		if !s.Validate(id) {
			t.Fatalf("concurrently created pairing %s not retrievable", id)
		}
	}
}

func TestServerIdentityHash_StableAndWellFormed(t *testing.T) {
	s, kv := newTestStore(t)

	h1 := s.ServerIdentityHash()
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(h1) {
		t.Fatalf("hash %q is not 64 hex chars", h1)
	}
	if h2 := s.ServerIdentityHash(); h2 != h1 {
		t.Fatalf("hash changed between calls: %q vs %q", h1, h2)
	}

	// New store over the same durable state keeps the identity.
	s2 := NewStore(kv, StaticSecret(testSecret))
	if h3 := s2.ServerIdentityHash(); h3 != h1 {
		t.Fatalf("hash not stable across restart: %q vs %q", h1, h3)
	}
}
