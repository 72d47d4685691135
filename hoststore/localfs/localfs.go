// Package localfs is a filesystem-backed chunk store. Chunks are
// written immutably, keyed by the CIDv1 form of their digest.
package localfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
)

// Store persists chunks under a root directory, sharded by the first
// two characters of the CID string.
type Store struct {
	root string
}

var _ hoststore.Store = (*Store)(nil)

// New constructs a store rooted at root, creating the directory if
// needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(chunk []byte) (digest.Digest, error) {
	d := digest.Sum(chunk)
	path := s.pathFor(d)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return digest.Digest{}, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := s.Get(d)
			if rerr != nil {
				return digest.Digest{}, hoststore.ErrImmutable
			}
			if string(existing) != string(chunk) {
				return digest.Digest{}, hoststore.ErrImmutable
			}
			return d, nil
		}
		return digest.Digest{}, err
	}
	defer f.Close()

	if _, err := f.Write(chunk); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return digest.Digest{}, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return digest.Digest{}, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return digest.Digest{}, err
	}
	return d, nil
}

func (s *Store) Get(d digest.Digest) ([]byte, error) {
	b, err := os.ReadFile(s.pathFor(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hoststore.ErrNotFound
		}
		return nil, err
	}
	if digest.Sum(b) != d {
		return nil, hoststore.ErrImmutable
	}
	return b, nil
}

func (s *Store) Has(d digest.Digest) bool {
	_, err := os.Stat(s.pathFor(d))
	return err == nil
}

func (s *Store) List() ([]digest.Digest, error) {
	var out []digest.Digest
	err := filepath.WalkDir(s.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		id, derr := cid.Decode(entry.Name())
		if derr != nil {
			// Foreign files under the root are not chunks.
			return nil
		}
		d, derr := digest.FromCID(id)
		if derr != nil {
			return nil
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) pathFor(d digest.Digest) string {
	name := d.CID().String()
	if len(name) < 2 {
		return filepath.Join(s.root, name)
	}
	return filepath.Join(s.root, name[:2], name)
}
