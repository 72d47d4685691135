// Package testkit holds the conformance suite every chunk-store
// backend must pass.
package testkit

import (
	"bytes"
	"testing"

	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
)

// NewStore constructs a fresh, empty store for a test. The returned
// store MUST be isolated from other tests.
type NewStore func(t *testing.T) hoststore.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, candep chunk store")

		d, err := s.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if d != digest.Sum(want) {
			t.Fatalf("Put digest mismatch: got %s want %s", d, digest.Sum(want))
		}

		got, err := s.Get(d)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		d1, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		d2, err := s.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if d1 != d2 {
			t.Fatalf("Put not idempotent: %s vs %s", d1, d2)
		}

		list, err := s.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected exactly one stored digest, got %d", len(list))
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		d := digest.Sum(b)

		if s.Has(d) {
			t.Fatalf("Has returned true for missing digest")
		}
		if _, err := s.Get(d); !hoststore.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !s.Has(d) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("EmptyChunk", func(t *testing.T) {
		s := newStore(t)
		d, err := s.Put(nil)
		if err != nil {
			t.Fatalf("Put(empty) failed: %v", err)
		}
		got, err := s.Get(d)
		if err != nil {
			t.Fatalf("Get(empty) failed: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty chunk, got %d bytes", len(got))
		}
	})

	t.Run("ListSnapshot", func(t *testing.T) {
		s := newStore(t)
		want := map[digest.Digest]struct{}{}
		for _, b := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
			d, err := s.Put(b)
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			want[d] = struct{}{}
		}
		list, err := s.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != len(want) {
			t.Fatalf("List length: got %d want %d", len(list), len(want))
		}
		for _, d := range list {
			if _, ok := want[d]; !ok {
				t.Fatalf("List returned unexpected digest %s", d)
			}
		}
	})

	t.Run("ClearEmptiesStore", func(t *testing.T) {
		s := newStore(t)
		d, err := s.Put([]byte("to be cleared"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if s.Has(d) {
			t.Fatalf("Has returned true after Clear")
		}
		list, err := s.List()
		if err != nil {
			t.Fatalf("List after Clear failed: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("List after Clear returned %d digests", len(list))
		}
	})
}
