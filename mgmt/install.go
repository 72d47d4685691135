package mgmt

import (
	"context"

	"golang.org/x/sync/errgroup"

	"xdao.co/candep/codec"
	"xdao.co/candep/digest"
	"xdao.co/candep/principal"
)

// InstallCode starts a one-shot install: the complete module bytes
// travel in a single call, with no chunk-store interaction.
func (c *Client) InstallCode(canisterID principal.Principal, wasm []byte) *InstallCodeBuilder {
	return &InstallCodeBuilder{client: c, canisterID: canisterID, wasm: wasm, mode: ModeInstall}
}

// InstallCodeBuilder accumulates one-shot install parameters.
type InstallCodeBuilder struct {
	client     *Client
	canisterID principal.Principal
	wasm       []byte
	mode       InstallMode
	arg        []byte
	err        error
}

// WithMode sets the install mode (default ModeInstall).
func (b *InstallCodeBuilder) WithMode(mode InstallMode) *InstallCodeBuilder {
	b.mode = mode
	return b
}

// WithRawArg sets pre-encoded init args passed to the module.
func (b *InstallCodeBuilder) WithRawArg(arg []byte) *InstallCodeBuilder {
	b.arg = arg
	return b
}

// WithArg encodes v as the module init args.
func (b *InstallCodeBuilder) WithArg(v any) *InstallCodeBuilder {
	if b.err != nil {
		return b
	}
	arg, err := codec.Marshal(v)
	if err != nil {
		b.err = wrapError(KindValidation, MethodInstallCode, "init arg encoding failed", err)
		return b
	}
	b.arg = arg
	return b
}

// Call issues the install.
func (b *InstallCodeBuilder) Call(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if err := requireTarget(MethodInstallCode, b.canisterID); err != nil {
		return err
	}
	return b.client.callUnit(ctx, b.canisterID, MethodInstallCode, InstallCodeArgs{
		CanisterID: b.canisterID.Raw(),
		Mode:       b.mode,
		WasmModule: b.wasm,
		Arg:        b.arg,
	})
}

// InstallChunkedCode starts an explicit chunked install of the given
// ordered chunks. The chunk order is the manifest order: concatenating
// the chunks in this order must reconstruct the module.
func (c *Client) InstallChunkedCode(canisterID principal.Principal, chunks [][]byte) *InstallChunkedCodeBuilder {
	return &InstallChunkedCodeBuilder{
		client:      c,
		canisterID:  canisterID,
		chunks:      chunks,
		mode:        ModeInstall,
		concurrency: c.UploadConcurrency,
	}
}

// InstallChunkedCodeBuilder drives the chunked install protocol:
// dedup-aware uploads followed by a terminal call carrying the digest
// manifest and the module digest.
type InstallChunkedCodeBuilder struct {
	client      *Client
	canisterID  principal.Principal
	chunks      [][]byte
	mode        InstallMode
	arg         []byte
	known       ChunkSet
	concurrency int
	err         error
}

// WithMode sets the install mode (default ModeInstall).
func (b *InstallChunkedCodeBuilder) WithMode(mode InstallMode) *InstallChunkedCodeBuilder {
	b.mode = mode
	return b
}

// WithRawArg sets pre-encoded init args passed to the module.
func (b *InstallChunkedCodeBuilder) WithRawArg(arg []byte) *InstallChunkedCodeBuilder {
	b.arg = arg
	return b
}

// WithArg encodes v as the module init args.
func (b *InstallChunkedCodeBuilder) WithArg(v any) *InstallChunkedCodeBuilder {
	if b.err != nil {
		return b
	}
	arg, err := codec.Marshal(v)
	if err != nil {
		b.err = wrapError(KindValidation, MethodInstallChunkedCode, "init arg encoding failed", err)
		return b
	}
	b.arg = arg
	return b
}

// WithStoredChunks supplies a pre-fetched chunk-store snapshot,
// skipping the stored_chunks listing call.
func (b *InstallChunkedCodeBuilder) WithStoredChunks(known ChunkSet) *InstallChunkedCodeBuilder {
	b.known = known
	return b
}

// WithConcurrency bounds parallel chunk uploads for this run.
func (b *InstallChunkedCodeBuilder) WithConcurrency(n int) *InstallChunkedCodeBuilder {
	b.concurrency = n
	return b
}

// Call runs the orchestration: compute the manifest, upload chunks the
// host does not already have (bounded parallelism; uploads are
// idempotent and commute), then issue the terminal install call. The
// terminal call is a barrier: any upload failure aborts the run before
// it, and no partial manifest is ever submitted.
func (b *InstallChunkedCodeBuilder) Call(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if err := requireTarget(MethodInstallChunkedCode, b.canisterID); err != nil {
		return err
	}
	max := b.client.MaxChunkSize
	if max <= 0 {
		max = DefaultMaxChunkSize
	}
	for _, chunk := range b.chunks {
		if len(chunk) > max {
			return wrapError(KindValidation, MethodInstallChunkedCode, "chunk too large", ErrChunkTooLarge)
		}
	}

	// Manifest order is fixed here, before any upload is issued, and is
	// never reordered by upload completion order.
	manifest := make([]digest.Digest, len(b.chunks))
	for i, chunk := range b.chunks {
		manifest[i] = digest.Sum(chunk)
	}

	known := b.known
	if known == nil {
		set, err := b.client.StoredChunks(ctx, b.canisterID)
		if err != nil {
			return err
		}
		known = set
	}

	// Upload work is deduplicated: a digest appearing several times in
	// the manifest is uploaded at most once, and digests the host
	// already stores are skipped entirely.
	missing := make(map[digest.Digest][]byte, len(b.chunks))
	for i, d := range manifest {
		if known.Has(d) {
			continue
		}
		if _, queued := missing[d]; queued {
			continue
		}
		missing[d] = b.chunks[i]
	}

	if len(missing) > 0 {
		limit := b.concurrency
		if limit <= 0 {
			limit = DefaultUploadConcurrency
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for d, chunk := range missing {
			d, chunk := d, chunk
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return wrapError(KindTransport, MethodUploadChunk, "cancelled", err)
				}
				got, err := b.client.UploadChunk(gctx, b.canisterID, chunk)
				if err != nil {
					return err
				}
				if got != d {
					return wrapError(KindValidation, MethodUploadChunk, "upload returned unexpected digest", ErrDigestMismatch)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// Barrier: no terminal call on partial upload success.
			return err
		}
	}

	hashes := make([][]byte, len(manifest))
	for i, d := range manifest {
		hashes[i] = d.Bytes()
	}
	moduleDigest := digest.SumSegments(b.chunks...)

	return b.client.callUnit(ctx, b.canisterID, MethodInstallChunkedCode, InstallChunkedCodeArgs{
		TargetCanister: b.canisterID.Raw(),
		Mode:           b.mode,
		ChunkHashes:    hashes,
		WasmModuleHash: moduleDigest.Bytes(),
		Arg:            b.arg,
	})
}

// Install starts an automatic install of wasm, selecting one-shot or
// chunked transfer by module size.
//
// When the chunked path is taken, the canister's chunk store is
// cleared after a successful install (never on failure) to keep stale
// chunks from accumulating. Callers managing chunk storage manually
// must not mix it with Install; see WithNoCleanup.
func (c *Client) Install(canisterID principal.Principal, wasm []byte) *InstallBuilder {
	return &InstallBuilder{
		client:       c,
		canisterID:   canisterID,
		wasm:         wasm,
		mode:         ModeInstall,
		maxChunkSize: c.MaxChunkSize,
		threshold:    DefaultOneShotThreshold,
		concurrency:  c.UploadConcurrency,
	}
}

// InstallBuilder accumulates parameters for the automatic install
// path.
type InstallBuilder struct {
	client       *Client
	canisterID   principal.Principal
	wasm         []byte
	mode         InstallMode
	arg          []byte
	maxChunkSize int
	threshold    int
	concurrency  int
	noCleanup    bool
	err          error
}

// WithMode sets the install mode (default ModeInstall).
func (b *InstallBuilder) WithMode(mode InstallMode) *InstallBuilder {
	b.mode = mode
	return b
}

// WithRawArg sets pre-encoded init args passed to the module.
func (b *InstallBuilder) WithRawArg(arg []byte) *InstallBuilder {
	b.arg = arg
	return b
}

// WithArg encodes v as the module init args.
func (b *InstallBuilder) WithArg(v any) *InstallBuilder {
	if b.err != nil {
		return b
	}
	arg, err := codec.Marshal(v)
	if err != nil {
		b.err = wrapError(KindValidation, MethodInstallCode, "init arg encoding failed", err)
		return b
	}
	b.arg = arg
	return b
}

// WithOneShotThreshold overrides the module size above which the
// chunked path is taken.
func (b *InstallBuilder) WithOneShotThreshold(n int) *InstallBuilder {
	b.threshold = n
	return b
}

// WithMaxChunkSize overrides the chunk window size for this run.
func (b *InstallBuilder) WithMaxChunkSize(n int) *InstallBuilder {
	b.maxChunkSize = n
	return b
}

// WithConcurrency bounds parallel chunk uploads for this run.
func (b *InstallBuilder) WithConcurrency(n int) *InstallBuilder {
	b.concurrency = n
	return b
}

// WithNoCleanup disables clearing the chunk store after a successful
// chunked install.
func (b *InstallBuilder) WithNoCleanup() *InstallBuilder {
	b.noCleanup = true
	return b
}

// Call runs the chunking strategy and the selected install path.
func (b *InstallBuilder) Call(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if err := requireTarget(MethodInstallCode, b.canisterID); err != nil {
		return err
	}
	maxChunkSize := b.maxChunkSize
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	plan, err := Plan(b.wasm, maxChunkSize, b.threshold)
	if err != nil {
		return wrapError(KindValidation, MethodInstallCode, "planning failed", err)
	}

	switch plan.Kind {
	case PlanOneShot:
		return b.client.InstallCode(b.canisterID, plan.Module).
			WithMode(b.mode).
			WithRawArg(b.arg).
			Call(ctx)
	case PlanChunked:
		err := b.client.InstallChunkedCode(b.canisterID, plan.Chunks).
			WithMode(b.mode).
			WithRawArg(b.arg).
			WithConcurrency(b.concurrency).
			Call(ctx)
		if err != nil {
			return err
		}
		if b.noCleanup {
			return nil
		}
		return b.client.ClearChunkStore(ctx, b.canisterID)
	default:
		return newError(KindValidation, MethodInstallCode, "unknown install plan")
	}
}
