package codec

import (
	"bytes"
	"testing"
)

type samplePayload struct {
	CanisterID []byte `cbor:"canister_id"`
	Chunk      []byte `cbor:"chunk"`
	Mode       string `cbor:"mode,omitempty"`
}

func TestRoundTrip(t *testing.T) {
	in := samplePayload{
		CanisterID: []byte{1, 2, 3},
		Chunk:      []byte("chunk bytes"),
		Mode:       "install",
	}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out samplePayload
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(out.CanisterID, in.CanisterID) || !bytes.Equal(out.Chunk, in.Chunk) || out.Mode != in.Mode {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	v := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 16; i++ {
		again, err := Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not deterministic: %x vs %x", first, again)
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	b, err := Marshal(map[string]any{
		"canister_id": []byte{9},
		"extra":       "future field",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out samplePayload
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(out.CanisterID, []byte{9}) {
		t.Fatalf("known field lost: %+v", out)
	}
}
