package store

import (
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path, logr.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get(Images, "missing"); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(Images, "1.0.0-0-abc", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	v, ok, err := s.Get(Images, "1.0.0-0-abc")
	if err != nil || !ok {
		t.Fatalf("expected key present, got ok=%v err=%v", ok, err)
	}
	if string(v) != "payload" {
		t.Errorf("Get value = %q, want %q", v, "payload")
	}

	if err := s.Delete(Images, "1.0.0-0-abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(Images, "1.0.0-0-abc"); ok {
		t.Error("expected key absent after Delete")
	}

	// Deleting an already-absent key is a no-op, not an error.
	if err := s.Delete(Images, "1.0.0-0-abc"); err != nil {
		t.Errorf("Delete of absent key returned error: %v", err)
	}
}

func TestNamespacesAreIndependent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put(Images, "k", []byte("image")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := s.Get(Devices, "k"); ok {
		t.Error("expected key in Images to be invisible from Devices")
	}
}

func TestForEachOrdersByKey(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := s.Put(Groups, k, []byte(k)); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	var seen []string
	err := s.ForEach(Groups, func(key string, _ []byte) bool {
		seen = append(seen, key)
		return true
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestUpdateTransactionSpansNamespaces(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(func(tx *Tx) error {
		if err := tx.Put(Images, "1.0.0-0-abc", []byte("image")); err != nil {
			return err
		}
		return tx.Put(Devices, "device-1", []byte("1.0.0-0-abc"))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok, _ := s.Get(Images, "1.0.0-0-abc"); !ok {
		t.Error("expected image written by transaction")
	}
	if _, ok, _ := s.Get(Devices, "device-1"); !ok {
		t.Error("expected device written by transaction")
	}
}
