package principal

import (
	"bytes"
	"strings"
	"testing"
)

func TestManagementTextualForm(t *testing.T) {
	p := Management()
	if got := p.String(); got != "aaaaa-aa" {
		t.Fatalf("management principal text: got %q want %q", got, "aaaaa-aa")
	}
	if !p.IsManagement() {
		t.Fatalf("IsManagement returned false")
	}
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x04},
		{0xab, 0xcd, 0xef, 0x01, 0x23},
		bytes.Repeat([]byte{0x7f}, MaxLength),
	}
	for _, raw := range cases {
		p, err := FromRaw(raw)
		if err != nil {
			t.Fatalf("FromRaw(%x): %v", raw, err)
		}
		back, err := Decode(p.String())
		if err != nil {
			t.Fatalf("Decode(%q): %v", p.String(), err)
		}
		if !bytes.Equal(back.Raw(), raw) {
			t.Fatalf("round trip mismatch for %x: got %x", raw, back.Raw())
		}
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	p, err := FromRaw([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("FromRaw: %v", err)
	}
	text := p.String()
	// Flip one character inside the checksum region.
	corrupted := "b" + text[1:]
	if corrupted == text {
		corrupted = "c" + text[1:]
	}
	if _, err := Decode(corrupted); err == nil {
		t.Fatalf("Decode accepted corrupted text %q", corrupted)
	}
}

func TestFromRawRejectsTooLong(t *testing.T) {
	if _, err := FromRaw(bytes.Repeat([]byte{1}, MaxLength+1)); err != ErrTooLong {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestSelfAuthenticating(t *testing.T) {
	pub := []byte("some public key material")
	p := SelfAuthenticating(pub)
	raw := p.Raw()
	if len(raw) != 29 {
		t.Fatalf("self-authenticating principal length: got %d want 29", len(raw))
	}
	if raw[len(raw)-1] != 0x02 {
		t.Fatalf("expected self-authenticating tag byte, got %#x", raw[len(raw)-1])
	}
	if p != SelfAuthenticating(pub) {
		t.Fatalf("derivation not deterministic")
	}
	if p == SelfAuthenticating([]byte("different key")) {
		t.Fatalf("distinct keys produced identical principals")
	}
}

func TestAnonymous(t *testing.T) {
	p := Anonymous()
	if !p.IsAnonymous() {
		t.Fatalf("IsAnonymous returned false")
	}
	back, err := Decode(p.String())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.IsAnonymous() {
		t.Fatalf("round-tripped anonymous principal lost identity")
	}
}

func TestTextualFormIsGrouped(t *testing.T) {
	p := SelfAuthenticating([]byte("grouping"))
	for i, group := range strings.Split(p.String(), "-") {
		if len(group) > 5 || len(group) == 0 {
			t.Fatalf("group %d has length %d: %q", i, len(group), p.String())
		}
	}
}
