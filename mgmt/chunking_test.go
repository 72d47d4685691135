package mgmt

import (
	"bytes"
	"testing"

	"xdao.co/candep/digest"
)

func TestPlanOneShotAtOrUnderThreshold(t *testing.T) {
	module := make([]byte, 1000)
	plan, err := Plan(module, 100, 1000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Kind != PlanOneShot {
		t.Fatalf("expected one-shot plan, got %v", plan.Kind)
	}
	if !bytes.Equal(plan.Module, module) || plan.Chunks != nil {
		t.Fatalf("one-shot plan malformed: %+v", plan)
	}
}

func TestPlanEmptyModuleIsOneShot(t *testing.T) {
	plan, err := Plan(nil, DefaultMaxChunkSize, 1000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Kind != PlanOneShot || len(plan.Module) != 0 {
		t.Fatalf("expected empty one-shot plan, got %+v", plan)
	}
}

func TestPlanChunkedAboveThreshold(t *testing.T) {
	module := make([]byte, 3_000_000)
	plan, err := Plan(module, 1_000_000, 2_000_000)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Kind != PlanChunked {
		t.Fatalf("expected chunked plan")
	}
	if len(plan.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(plan.Chunks))
	}
	for i, c := range plan.Chunks {
		if len(c) != 1_000_000 {
			t.Fatalf("chunk %d has length %d, want 1000000", i, len(c))
		}
	}
}

func TestSplitChunksRemainder(t *testing.T) {
	module := make([]byte, 2_500_001)
	chunks, err := SplitChunks(module, 1_000_000)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	want := []int{1_000_000, 1_000_000, 500_001}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, n := range want {
		if len(chunks[i]) != n {
			t.Fatalf("chunk %d has length %d, want %d", i, len(chunks[i]), n)
		}
	}
}

func TestSplitChunksRoundTrip(t *testing.T) {
	module := make([]byte, 1<<16+977)
	for i := range module {
		module[i] = byte(i * 31)
	}
	for _, size := range []int{1, 7, 1024, 1 << 16, 1<<16 + 977, 1 << 20} {
		chunks, err := SplitChunks(module, size)
		if err != nil {
			t.Fatalf("SplitChunks(size=%d): %v", size, err)
		}
		var rebuilt []byte
		for _, c := range chunks {
			if len(c) == 0 {
				t.Fatalf("size=%d produced an empty chunk", size)
			}
			if len(c) > size {
				t.Fatalf("size=%d produced oversized chunk of %d", size, len(c))
			}
			rebuilt = append(rebuilt, c...)
		}
		if !bytes.Equal(rebuilt, module) {
			t.Fatalf("size=%d: concatenation does not reconstruct module", size)
		}
	}
}

func TestSplitChunksEmptyModule(t *testing.T) {
	chunks, err := SplitChunks(nil, 1024)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0]) != 0 {
		t.Fatalf("expected a single empty chunk, got %d chunks", len(chunks))
	}
}

func TestSplitChunksRejectsBadSize(t *testing.T) {
	if _, err := SplitChunks([]byte("x"), 0); err == nil {
		t.Fatalf("SplitChunks accepted zero max size")
	}
	if _, err := Plan([]byte("x"), -1, 0); err == nil {
		t.Fatalf("Plan accepted negative max size")
	}
}

func TestIdenticalChunksShareDigest(t *testing.T) {
	window := bytes.Repeat([]byte{0xcd}, 64)
	module := append(append([]byte(nil), window...), window...)
	chunks, err := SplitChunks(module, 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if digest.Sum(chunks[0]) != digest.Sum(chunks[1]) {
		t.Fatalf("identical chunk bytes produced distinct digests")
	}
}
