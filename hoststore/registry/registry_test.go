package registry

import (
	"flag"
	"strings"
	"testing"

	"xdao.co/candep/hoststore"
)

func fakeBackend(name string) Backend {
	return Backend{
		Name:          name,
		RegisterFlags: func(fs *flag.FlagSet) {},
		Open: func(string) (hoststore.Store, func() error, error) {
			return nil, nil, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	if err := Register(Backend{}); err == nil {
		t.Fatal("expected error for empty backend name")
	}
	b := fakeBackend("test-incomplete")
	b.Open = nil
	if err := Register(b); err == nil {
		t.Fatal("expected error for missing Open")
	}
	b = fakeBackend("test-incomplete")
	b.RegisterFlags = nil
	if err := Register(b); err == nil {
		t.Fatal("expected error for missing RegisterFlags")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	if err := Register(fakeBackend("test-dup")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(fakeBackend("test-dup")); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestOpenUnknown(t *testing.T) {
	_, _, err := Open("no-such-backend", "")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "no-such-backend") {
		t.Fatalf("error should name the backend: %v", err)
	}
}

func TestOpenPassesInstance(t *testing.T) {
	var got string
	b := fakeBackend("test-instance")
	b.Open = func(instance string) (hoststore.Store, func() error, error) {
		got = instance
		return nil, nil, nil
	}
	if err := Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := Open("test-instance", "canister-a"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "canister-a" {
		t.Fatalf("instance = %q, want %q", got, "canister-a")
	}
}

func TestListSorted(t *testing.T) {
	if err := Register(fakeBackend("test-zz")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(fakeBackend("test-aa")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	names := make([]string, 0)
	for _, b := range List() {
		names = append(names, b.Name)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("List not sorted: %v", names)
		}
	}
}
