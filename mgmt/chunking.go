package mgmt

import "fmt"

const (
	// DefaultMaxChunkSize is the largest chunk the chunk store accepts.
	DefaultMaxChunkSize = 1 << 20

	// DefaultOneShotThreshold is the module size above which installs
	// switch to the chunked path: the transport's 2 MiB message
	// ceiling minus a margin for envelope and argument overhead.
	DefaultOneShotThreshold = 2<<20 - 64<<10
)

// PlanKind tags the two install strategies.
type PlanKind uint8

const (
	// PlanOneShot sends the complete module bytes in a single call.
	PlanOneShot PlanKind = iota + 1
	// PlanChunked uploads chunks to the host's chunk store and issues
	// a terminal call carrying only the digest manifest.
	PlanChunked
)

// InstallPlan is the outcome of the chunking strategy. Exactly one of
// Module (PlanOneShot) or Chunks (PlanChunked) is populated; the two
// branches have disjoint payload shapes.
type InstallPlan struct {
	Kind   PlanKind
	Module []byte
	Chunks [][]byte
}

// Plan decides between one-shot and chunked transfer for module.
// Modules no larger than threshold go one-shot; larger modules are
// split into maxChunkSize windows.
func Plan(module []byte, maxChunkSize, threshold int) (InstallPlan, error) {
	if maxChunkSize <= 0 {
		return InstallPlan{}, fmt.Errorf("mgmt: invalid max chunk size %d", maxChunkSize)
	}
	if threshold < 0 {
		return InstallPlan{}, fmt.Errorf("mgmt: invalid one-shot threshold %d", threshold)
	}
	if len(module) <= threshold {
		return InstallPlan{Kind: PlanOneShot, Module: module}, nil
	}
	chunks, err := SplitChunks(module, maxChunkSize)
	if err != nil {
		return InstallPlan{}, err
	}
	return InstallPlan{Kind: PlanChunked, Chunks: chunks}, nil
}

// SplitChunks walks module left to right in fixed windows of
// maxChunkSize; the final chunk takes the remainder. The returned
// slices alias module (chunks are borrowed, not copied), and their
// order is the manifest order. An empty module yields a single empty
// chunk.
func SplitChunks(module []byte, maxChunkSize int) ([][]byte, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("mgmt: invalid max chunk size %d", maxChunkSize)
	}
	if len(module) == 0 {
		return [][]byte{{}}, nil
	}
	chunks := make([][]byte, 0, (len(module)+maxChunkSize-1)/maxChunkSize)
	for off := 0; off < len(module); off += maxChunkSize {
		end := off + maxChunkSize
		if end > len(module) {
			end = len(module)
		}
		chunks = append(chunks, module[off:end])
	}
	return chunks, nil
}
