// Package memory is an in-memory chunk store, used by tests and by
// hosts that do not need persistence.
package memory

import (
	"sync"

	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
)

// Store keeps chunks in a map guarded by a mutex. Safe for concurrent
// use.
type Store struct {
	mu     sync.RWMutex
	chunks map[digest.Digest][]byte
}

var _ hoststore.Store = (*Store)(nil)

func New() *Store {
	return &Store{chunks: make(map[digest.Digest][]byte)}
}

func (s *Store) Put(chunk []byte) (digest.Digest, error) {
	d := digest.Sum(chunk)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[d]; !ok {
		s.chunks[d] = append([]byte(nil), chunk...)
	}
	return d, nil
}

func (s *Store) Get(d digest.Digest) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.chunks[d]
	if !ok {
		return nil, hoststore.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Has(d digest.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[d]
	return ok
}

func (s *Store) List() ([]digest.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]digest.Digest, 0, len(s.chunks))
	for d := range s.chunks {
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[digest.Digest][]byte)
	return nil
}
