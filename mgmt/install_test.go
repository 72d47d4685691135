package mgmt_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/digest"
	"xdao.co/candep/host"
	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/memory"
	"xdao.co/candep/identity"
	"xdao.co/candep/mgmt"
	"xdao.co/candep/principal"
)

// recordingTransport wraps a transport, counts calls per method, and
// can inject failures or corrupt upload replies.
type recordingTransport struct {
	inner agent.Transport

	mu                sync.Mutex
	calls             map[string]int
	fail              map[string]error
	corruptUploadHash bool
}

func newRecordingTransport(inner agent.Transport) *recordingTransport {
	return &recordingTransport{
		inner: inner,
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

func (r *recordingTransport) Submit(ctx context.Context, req *agent.CallRequest) ([]byte, error) {
	r.mu.Lock()
	r.calls[req.Method]++
	injected := r.fail[req.Method]
	corrupt := r.corruptUploadHash
	r.mu.Unlock()

	if injected != nil {
		return nil, injected
	}
	out, err := r.inner.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if corrupt && req.Method == mgmt.MethodUploadChunk {
		var res mgmt.UploadChunkResult
		if err := codec.Unmarshal(out, &res); err != nil {
			return nil, err
		}
		res.Hash[0] ^= 0xff
		return codec.Marshal(res)
	}
	return out, nil
}

func (r *recordingTransport) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func newOrchestratorFixture(t *testing.T) (*mgmt.Client, *recordingTransport, principal.Principal) {
	t.Helper()
	h := host.New(func(principal.Principal) hoststore.Store { return memory.New() })
	id, err := identity.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	rec := newRecordingTransport(agent.New(&host.InProc{Host: h}, id))
	client := mgmt.NewClient(rec)

	canisterID, err := client.CreateCanister().Call(context.Background())
	if err != nil {
		t.Fatalf("CreateCanister: %v", err)
	}
	return client, rec, canisterID
}

func patternedModule(n int) []byte {
	module := make([]byte, n)
	for i := range module {
		module[i] = byte(i*7 + i>>8)
	}
	return module
}

func moduleHash(t *testing.T, client *mgmt.Client, id principal.Principal) []byte {
	t.Helper()
	st, err := client.CanisterStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("CanisterStatus: %v", err)
	}
	return st.ModuleHash
}

func TestInstallAutoOneShotNeverTouchesChunkStore(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	wasm := patternedModule(500)

	err := client.Install(id, wasm).
		WithOneShotThreshold(1000).
		Call(context.Background())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if n := rec.count(mgmt.MethodUploadChunk); n != 0 {
		t.Fatalf("one-shot install issued %d uploads", n)
	}
	if n := rec.count(mgmt.MethodStoredChunks); n != 0 {
		t.Fatalf("one-shot install listed stored chunks %d times", n)
	}
	if n := rec.count(mgmt.MethodInstallCode); n != 1 {
		t.Fatalf("install_code called %d times", n)
	}
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(wasm).Bytes()) {
		t.Fatalf("installed module hash mismatch")
	}
}

func TestInstallAutoEmptyModuleIsOneShot(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)

	err := client.Install(id, nil).
		WithOneShotThreshold(1000).
		Call(context.Background())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if n := rec.count(mgmt.MethodUploadChunk); n != 0 {
		t.Fatalf("empty module issued %d uploads", n)
	}
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(nil).Bytes()) {
		t.Fatalf("empty module hash mismatch")
	}
}

func TestInstallAutoChunkedPathAndCleanup(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	wasm := patternedModule(300)

	err := client.Install(id, wasm).
		WithOneShotThreshold(100).
		WithMaxChunkSize(64).
		Call(context.Background())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	// 300 bytes in 64-byte windows: 5 chunks, all distinct.
	if n := rec.count(mgmt.MethodUploadChunk); n != 5 {
		t.Fatalf("expected 5 uploads, got %d", n)
	}
	if n := rec.count(mgmt.MethodInstallChunkedCode); n != 1 {
		t.Fatalf("install_chunked_code called %d times", n)
	}
	if n := rec.count(mgmt.MethodClearChunkStore); n != 1 {
		t.Fatalf("expected chunk store clear after success, got %d", n)
	}
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(wasm).Bytes()) {
		t.Fatalf("installed module hash mismatch")
	}

	set, err := client.StoredChunks(context.Background(), id)
	if err != nil {
		t.Fatalf("StoredChunks: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("chunk store not cleared after auto install")
	}
}

func TestInstallAutoNoCleanup(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	wasm := patternedModule(200)

	err := client.Install(id, wasm).
		WithOneShotThreshold(100).
		WithMaxChunkSize(64).
		WithNoCleanup().
		Call(context.Background())
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if n := rec.count(mgmt.MethodClearChunkStore); n != 0 {
		t.Fatalf("clear_chunk_store called %d times despite WithNoCleanup", n)
	}
	set, err := client.StoredChunks(context.Background(), id)
	if err != nil {
		t.Fatalf("StoredChunks: %v", err)
	}
	if len(set) == 0 {
		t.Fatalf("expected chunks to remain in store")
	}
}

func TestInstallChunkedSkipsChunksHostAlreadyHas(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	ctx := context.Background()

	chunks, err := mgmt.SplitChunks(patternedModule(200), 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	// Pre-upload the second chunk.
	if _, err := client.UploadChunk(ctx, id, chunks[1]); err != nil {
		t.Fatalf("UploadChunk: %v", err)
	}
	before := rec.count(mgmt.MethodUploadChunk)

	err = client.InstallChunkedCode(id, chunks).Call(ctx)
	if err != nil {
		t.Fatalf("InstallChunkedCode: %v", err)
	}
	uploads := rec.count(mgmt.MethodUploadChunk) - before
	if uploads != len(chunks)-1 {
		t.Fatalf("expected %d uploads after dedup, got %d", len(chunks)-1, uploads)
	}
	// The skipped chunk still appears in the manifest at its position:
	// the host could only reassemble the exact module if it did.
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(patternedModule(200)).Bytes()) {
		t.Fatalf("reassembled module mismatch")
	}
}

func TestInstallChunkedDuplicateChunksUploadedOnce(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)

	window := bytes.Repeat([]byte{0xee}, 64)
	module := append(append(append([]byte(nil), window...), window...), []byte("tail")...)
	chunks, err := mgmt.SplitChunks(module, 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	err = client.InstallChunkedCode(id, chunks).Call(context.Background())
	if err != nil {
		t.Fatalf("InstallChunkedCode: %v", err)
	}
	// Two identical windows share a digest: 2 uploads, not 3.
	if n := rec.count(mgmt.MethodUploadChunk); n != 2 {
		t.Fatalf("expected 2 uploads for duplicate chunks, got %d", n)
	}
	// Manifest must still list the digest twice: host reassembly of the
	// full module proves the duplicate positions were preserved.
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(module).Bytes()) {
		t.Fatalf("reassembled module mismatch")
	}
}

func TestInstallChunkedDigestMismatchAbortsBeforeInstall(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	rec.corruptUploadHash = true

	chunks, err := mgmt.SplitChunks(patternedModule(200), 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	err = client.InstallChunkedCode(id, chunks).Call(context.Background())
	if err == nil {
		t.Fatalf("expected digest mismatch error")
	}
	if !errors.Is(err, mgmt.ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
	if !mgmt.IsKind(err, mgmt.KindValidation) {
		t.Fatalf("digest mismatch should be a validation error, got %v", err)
	}
	if n := rec.count(mgmt.MethodInstallChunkedCode); n != 0 {
		t.Fatalf("terminal install issued despite digest mismatch")
	}
}

func TestInstallChunkedUploadFailureIsBarrier(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	rec.fail[mgmt.MethodUploadChunk] = errors.New("connection reset")

	chunks, err := mgmt.SplitChunks(patternedModule(200), 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	err = client.InstallChunkedCode(id, chunks).Call(context.Background())
	if err == nil {
		t.Fatalf("expected upload failure")
	}
	if !mgmt.IsKind(err, mgmt.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if n := rec.count(mgmt.MethodInstallChunkedCode); n != 0 {
		t.Fatalf("terminal install issued despite upload failure")
	}
}

func TestInstallAutoNoClearOnFailure(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	rec.fail[mgmt.MethodInstallChunkedCode] = errors.New("host rejected")

	err := client.Install(id, patternedModule(200)).
		WithOneShotThreshold(100).
		WithMaxChunkSize(64).
		Call(context.Background())
	if err == nil {
		t.Fatalf("expected install failure")
	}
	if n := rec.count(mgmt.MethodClearChunkStore); n != 0 {
		t.Fatalf("chunk store cleared despite failed install")
	}
}

func TestInstallChunkedWithPrefetchedSnapshotSkipsListing(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	ctx := context.Background()

	chunks, err := mgmt.SplitChunks(patternedModule(200), 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	set, err := client.StoredChunks(ctx, id)
	if err != nil {
		t.Fatalf("StoredChunks: %v", err)
	}
	before := rec.count(mgmt.MethodStoredChunks)

	err = client.InstallChunkedCode(id, chunks).
		WithStoredChunks(set).
		Call(ctx)
	if err != nil {
		t.Fatalf("InstallChunkedCode: %v", err)
	}
	if n := rec.count(mgmt.MethodStoredChunks) - before; n != 0 {
		t.Fatalf("listing called %d times despite pre-fetched snapshot", n)
	}
}

func TestInstallChunkedRejectsOversizedChunk(t *testing.T) {
	client, _, id := newOrchestratorFixture(t)
	client.MaxChunkSize = 16

	err := client.InstallChunkedCode(id, [][]byte{make([]byte, 17)}).Call(context.Background())
	if !errors.Is(err, mgmt.ErrChunkTooLarge) {
		t.Fatalf("expected ErrChunkTooLarge, got %v", err)
	}
}

func TestInstallChunkedCancellation(t *testing.T) {
	client, rec, id := newOrchestratorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks, err := mgmt.SplitChunks(patternedModule(200), 64)
	if err != nil {
		t.Fatalf("SplitChunks: %v", err)
	}
	err = client.InstallChunkedCode(id, chunks).Call(ctx)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if n := rec.count(mgmt.MethodInstallChunkedCode); n != 0 {
		t.Fatalf("terminal install issued despite cancellation")
	}
}

func TestInstallRequiresTarget(t *testing.T) {
	client, _, _ := newOrchestratorFixture(t)
	err := client.Install(principal.Management(), []byte("wasm")).Call(context.Background())
	if !errors.Is(err, mgmt.ErrEmptyTarget) {
		t.Fatalf("expected ErrEmptyTarget, got %v", err)
	}
}

func TestInstallAutoUpgradePassesInitArgs(t *testing.T) {
	client, _, id := newOrchestratorFixture(t)
	ctx := context.Background()

	if err := client.Install(id, patternedModule(50)).WithOneShotThreshold(100).Call(ctx); err != nil {
		t.Fatalf("initial install: %v", err)
	}
	upgraded := patternedModule(300)
	err := client.Install(id, upgraded).
		WithMode(mgmt.ModeUpgrade).
		WithOneShotThreshold(100).
		WithMaxChunkSize(64).
		WithArg(map[string]string{"from": "v1"}).
		Call(ctx)
	if err != nil {
		t.Fatalf("upgrade install: %v", err)
	}
	if !bytes.Equal(moduleHash(t, client, id), digest.Sum(upgraded).Bytes()) {
		t.Fatalf("upgraded module hash mismatch")
	}
}
