// Package store wraps go.etcd.io/bbolt as the black-box ordered KV engine
// spec.md §3/§5 describes: three logical namespaces with atomic get/put/
// delete and a periodic async flush, grounded on the embedded-KV usage in
// the broader example pack's kolide-launcher (go.etcd.io/bbolt) and on
// the original source's sled trees (lib-server/src/ota_db.rs).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	bolt "go.etcd.io/bbolt"
)

// Namespace names the three logical buckets the catalog partitions its
// state into.
type Namespace string

const (
	Images  Namespace = "images"
	Devices Namespace = "devices"
	Groups  Namespace = "groups"
)

var allNamespaces = []Namespace{Images, Devices, Groups}

// flushInterval matches spec.md §5's "periodic flush timer (every 10
// seconds)".
const flushInterval = 10 * time.Second

// Store is a thread-safe handle onto the on-disk catalog database. Bolt
// itself is already safe for concurrent use from multiple goroutines; the
// catalog package additionally only ever mutates it from one serial
// dispatch loop (spec.md §5's "single-task serial execution" rule), so no
// extra locking is added here.
type Store struct {
	log logr.Logger
	db  *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures all three namespace buckets exist. NoSync is enabled: writes
// are batched in the OS page cache and only durably flushed by the
// periodic Sync ticker started by RunFlushLoop, trading a 10-second
// durability window for write throughput — the same trade-off spec.md's
// "sled-like" black box makes explicit.
func Open(path string, log logr.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open catalog db %q: %w", path, err)
	}
	db.NoSync = true

	err = db.Update(func(tx *bolt.Tx) error {
		for _, ns := range allNamespaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return fmt.Errorf("create bucket %q: %w", ns, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{log: log, db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value stored at key in ns, or (nil, false) if
// absent.
func (s *Store) Get(ns Namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(ns))
		v := b.Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Put writes value at key in ns, overwriting any existing entry.
func (s *Store) Put(ns Namespace, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ns)).Put([]byte(key), value)
	})
}

// Delete removes key from ns. It is a no-op if the key is absent.
func (s *Store) Delete(ns Namespace, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(ns)).Delete([]byte(key))
	})
}

// Has reports whether key exists in ns.
func (s *Store) Has(ns Namespace, key string) (bool, error) {
	_, ok, err := s.Get(ns, key)
	return ok, err
}

// ForEach iterates every key/value pair in ns in key order (bbolt's
// native B+tree ordering), stopping early if fn returns false.
func (s *Store) ForEach(ns Namespace, fn func(key string, value []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(ns)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !fn(string(k), v) {
				break
			}
		}
		return nil
	})
}

// Update runs fn within a single read-write transaction spanning all
// three buckets, giving the catalog atomic multi-namespace operations (e.g.
// delete_ota_package's cascading devices/groups cleanup) without taking
// any additional locks.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Tx is a single read-write transaction scoped to all three namespaces.
type Tx struct {
	btx *bolt.Tx
}

func (t *Tx) bucket(ns Namespace) *bolt.Bucket {
	return t.btx.Bucket([]byte(ns))
}

func (t *Tx) Get(ns Namespace, key string) ([]byte, bool) {
	v := t.bucket(ns).Get([]byte(key))
	if v == nil {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

func (t *Tx) Put(ns Namespace, key string, value []byte) error {
	return t.bucket(ns).Put([]byte(key), value)
}

func (t *Tx) Delete(ns Namespace, key string) error {
	return t.bucket(ns).Delete([]byte(key))
}

func (t *Tx) ForEach(ns Namespace, fn func(key string, value []byte) bool) {
	c := t.bucket(ns).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if !fn(string(k), v) {
			return
		}
	}
}

// RunFlushLoop periodically calls Sync to durably persist writes made
// under NoSync, every flushInterval, until ctx is cancelled. It is
// intended to run as one of the top-level errgroup tasks.
func (s *Store) RunFlushLoop(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.db.Sync(); err != nil {
				s.log.Error(err, "periodic catalog flush failed")
			}
		}
	}
}
