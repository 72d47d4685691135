// Package replicated mirrors chunk writes across several stores, so a
// host can pair a fast store with a durable one (for example memory
// over localfs).
package replicated

import (
	"fmt"

	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
)

// Store writes to all configured backends. Reads fall back in order;
// callers MUST supply a fixed order so retrieval stays deterministic.
type Store struct {
	Backends []hoststore.Store
}

var _ hoststore.Store = (*Store)(nil)

// New builds a replicated store over backends.
func New(backends ...hoststore.Store) (*Store, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("replicated: no backends")
	}
	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("replicated: nil backend at %d", i)
		}
	}
	return &Store{Backends: backends}, nil
}

// Put writes the chunk to every backend and requires all returned
// digests to match the locally computed one.
func (s *Store) Put(chunk []byte) (digest.Digest, error) {
	want := digest.Sum(chunk)
	for _, b := range s.Backends {
		got, err := b.Put(chunk)
		if err != nil {
			return digest.Digest{}, err
		}
		if got != want {
			return digest.Digest{}, hoststore.ErrImmutable
		}
	}
	return want, nil
}

func (s *Store) Get(d digest.Digest) ([]byte, error) {
	for _, b := range s.Backends {
		chunk, err := b.Get(d)
		if err == nil {
			return chunk, nil
		}
		if hoststore.IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, hoststore.ErrNotFound
}

func (s *Store) Has(d digest.Digest) bool {
	for _, b := range s.Backends {
		if b.Has(d) {
			return true
		}
	}
	return false
}

// List returns the union of all backend snapshots. A chunk present in
// any backend is listed once.
func (s *Store) List() ([]digest.Digest, error) {
	seen := make(map[digest.Digest]struct{})
	var out []digest.Digest
	for _, b := range s.Backends {
		ds, err := b.List()
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) Clear() error {
	for _, b := range s.Backends {
		if err := b.Clear(); err != nil {
			return err
		}
	}
	return nil
}
