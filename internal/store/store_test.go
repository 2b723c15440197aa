package store

import (
	"crypto/rand"
	"errors"
	"path/filepath"
	"sort"
	"testing"
)

// contract runs the KV behavior every backend must share.
func contract(t *testing.T, kv KV) {
	t.Helper()

	if _, err := kv.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing): want ErrNotFound, got %v", err)
	}

	if err := kv.Put("a/1", "one"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put("a/2", "two"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put("b/1", "other"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	v, err := kv.Get("a/1")
	if err != nil || v != "one" {
		t.Fatalf("Get(a/1) = %q, %v", v, err)
	}

	// overwrite
	if err := kv.Put("a/1", "uno"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if v, _ := kv.Get("a/1"); v != "uno" {
		t.Fatalf("overwrite lost: %q", v)
	}

	keys, err := kv.Keys("a/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
		t.Fatalf("Keys(a/) = %v", keys)
	}

	if err := kv.Remove("a/1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := kv.Get("a/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Remove: want ErrNotFound, got %v", err)
	}
	// removing again is fine
	if err := kv.Remove("a/1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestMemory_Contract(t *testing.T) {
	contract(t, NewMemory())
}

func randKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return key
}

func TestSealedFile_Contract(t *testing.T) {
	s, err := OpenSealedFile(filepath.Join(t.TempDir(), "kv.sealed"), randKey(t))
	if err != nil {
		t.Fatalf("OpenSealedFile: %v", err)
	}
	defer s.Close()
	contract(t, s)
}

func TestSealedFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.sealed")
	key := randKey(t)

	s, err := OpenSealedFile(path, key)
	if err != nil {
		t.Fatalf("OpenSealedFile: %v", err)
	}
	if err := s.Put("pairing/x", "rec"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s2, err := OpenSealedFile(path, key)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, err := s2.Get("pairing/x"); err != nil || v != "rec" {
		t.Fatalf("Get after reopen = %q, %v", v, err)
	}
}

func TestSealedFile_WrongKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.sealed")

	s, err := OpenSealedFile(path, randKey(t))
	if err != nil {
		t.Fatalf("OpenSealedFile: %v", err)
	}
	if err := s.Put("k", "v"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	if _, err := OpenSealedFile(path, randKey(t)); err == nil {
		t.Fatal("open with wrong key succeeded")
	}
}

func TestSealedFile_BadKeyLength(t *testing.T) {
	if _, err := OpenSealedFile(filepath.Join(t.TempDir(), "kv"), []byte("short")); err == nil {
		t.Fatal("expected key length error")
	}
}

func TestSQLite_Contract(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	contract(t, s)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Put("pairing/x", "rec"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, err := s2.Get("pairing/x"); err != nil || v != "rec" {
		t.Fatalf("Get after reopen = %q, %v", v, err)
	}
}
