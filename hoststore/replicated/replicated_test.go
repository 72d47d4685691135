package replicated

import (
	"testing"

	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/localfs"
	"xdao.co/candep/hoststore/memory"
	"xdao.co/candep/hoststore/testkit"
)

func TestReplicatedStoreConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) hoststore.Store {
		durable, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		s, err := New(memory.New(), durable)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestNewRequiresBackends(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("New accepted zero backends")
	}
	if _, err := New(memory.New(), nil); err == nil {
		t.Fatal("New accepted a nil backend")
	}
}

func TestPutMirrorsToAllBackends(t *testing.T) {
	fast := memory.New()
	slow := memory.New()
	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	chunk := []byte("mirrored chunk")
	d, err := s.Put(chunk)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !fast.Has(d) || !slow.Has(d) {
		t.Fatal("chunk missing from a backend after Put")
	}
}

func TestGetFallsBack(t *testing.T) {
	fast := memory.New()
	slow := memory.New()
	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Seed only the second backend, as after a host restart that lost
	// the in-memory layer.
	chunk := []byte("durable-only chunk")
	d, err := slow.Put(chunk)
	if err != nil {
		t.Fatalf("seed Put: %v", err)
	}

	got, err := s.Get(d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(chunk) {
		t.Fatal("Get returned wrong bytes")
	}
	if !s.Has(d) {
		t.Fatal("Has returned false for chunk in second backend")
	}
}

func TestListUnions(t *testing.T) {
	fast := memory.New()
	slow := memory.New()
	s, err := New(fast, slow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := fast.Put([]byte("only fast")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := slow.Put([]byte("only slow")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	shared := []byte("in both")
	if _, err := s.Put(shared); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ds, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ds) != 3 {
		t.Fatalf("List returned %d digests, want 3", len(ds))
	}
	seen := make(map[digest.Digest]struct{}, len(ds))
	for _, d := range ds {
		seen[d] = struct{}{}
	}
	if _, ok := seen[digest.Sum(shared)]; !ok {
		t.Fatal("shared chunk missing from List")
	}
}
