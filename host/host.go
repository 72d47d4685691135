// Package host is a reference implementation of the management method
// surface, backed by a hoststore.Store per canister. The daemon serves
// it over gRPC and the client tests run against it in process.
package host

import (
	"context"
	"crypto/rand"
	"sync"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/digest"
	"xdao.co/candep/hoststore"
	"xdao.co/candep/mgmt"
	"xdao.co/candep/principal"
)

// StoreFactory opens the chunk store for one canister. Factories must
// return isolated stores per canister.
type StoreFactory func(canisterID principal.Principal) hoststore.Store

// Host maintains the canister table and dispatches management calls.
type Host struct {
	mu        sync.Mutex
	canisters map[principal.Principal]*canister
	newStore  StoreFactory

	// MaxChunkSize is the largest chunk upload_chunk accepts.
	MaxChunkSize int
}

type canister struct {
	controllers [][]byte
	status      mgmt.CanisterStatus
	module      []byte
	moduleHash  []byte
	cycles      uint64
	settings    mgmt.DefiniteCanisterSettings
	chunks      hoststore.Store
}

// New constructs a host whose canisters store chunks in stores built
// by newStore.
func New(newStore StoreFactory) *Host {
	return &Host{
		canisters:    make(map[principal.Principal]*canister),
		newStore:     newStore,
		MaxChunkSize: mgmt.DefaultMaxChunkSize,
	}
}

func protocolErr(method, msg string) error {
	return &mgmt.Error{Kind: mgmt.KindProtocol, Method: method, Message: msg}
}

// Call executes one management call on behalf of sender and returns
// the encoded result.
func (h *Host) Call(ctx context.Context, sender principal.Principal, req *agent.CallRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &mgmt.Error{Kind: mgmt.KindTransport, Method: req.Method, Message: "cancelled", Cause: err}
	}
	if !req.CanisterID.IsManagement() {
		return nil, protocolErr(req.Method, "calls must target the management identity")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch req.Method {
	case mgmt.MethodCreateCanister, mgmt.MethodProvisionalCreateCanisterWithCycles:
		return h.createCanister(sender, req)
	case mgmt.MethodCanisterStatus:
		return h.canisterStatus(req)
	case mgmt.MethodStartCanister:
		return h.setStatus(req, mgmt.StatusRunning)
	case mgmt.MethodStopCanister:
		return h.setStatus(req, mgmt.StatusStopped)
	case mgmt.MethodDeleteCanister:
		return h.deleteCanister(req)
	case mgmt.MethodDepositCycles:
		// This transport carries no cycles; the deposit is accepted and
		// has no effect on the balance.
		_, err := h.lookupByArg(req)
		return nil, err
	case mgmt.MethodProvisionalTopUpCanister:
		return h.topUp(req)
	case mgmt.MethodRawRand:
		out := make([]byte, 32)
		if _, err := rand.Read(out); err != nil {
			return nil, protocolErr(req.Method, "entropy unavailable")
		}
		return codec.Marshal(out)
	case mgmt.MethodUninstallCode:
		return h.uninstallCode(req)
	case mgmt.MethodUpdateSettings:
		return h.updateSettings(req)
	case mgmt.MethodInstallCode:
		return h.installCode(req)
	case mgmt.MethodUploadChunk:
		return h.uploadChunk(req)
	case mgmt.MethodStoredChunks:
		return h.storedChunks(req)
	case mgmt.MethodClearChunkStore:
		return h.clearChunkStore(req)
	case mgmt.MethodInstallChunkedCode:
		return h.installChunkedCode(req)
	default:
		return nil, protocolErr(req.Method, "unknown method")
	}
}

func (h *Host) createCanister(sender principal.Principal, req *agent.CallRequest) ([]byte, error) {
	var args mgmt.CreateCanisterArgs
	if len(req.Arg) > 0 {
		if err := codec.Unmarshal(req.Arg, &args); err != nil {
			return nil, protocolErr(req.Method, "malformed argument")
		}
	}

	raw := make([]byte, 10)
	if _, err := rand.Read(raw[:9]); err != nil {
		return nil, protocolErr(req.Method, "entropy unavailable")
	}
	raw[9] = 0x01
	id, err := principal.FromRaw(raw)
	if err != nil {
		return nil, protocolErr(req.Method, "id generation failed")
	}

	if h.newStore == nil {
		return nil, protocolErr(req.Method, "host accepts no new canisters")
	}
	c := &canister{
		status: mgmt.StatusRunning,
		chunks: h.newStore(id),
	}
	c.controllers = [][]byte{sender.Raw()}
	if args.Settings != nil && args.Settings.Controllers != nil {
		c.controllers = args.Settings.Controllers
	}
	if args.Amount != nil {
		c.cycles = *args.Amount
	}
	c.settings = mgmt.DefiniteCanisterSettings{Controllers: c.controllers}
	h.canisters[id] = c

	return codec.Marshal(mgmt.CreateCanisterResult{CanisterID: id.Raw()})
}

func (h *Host) lookupByArg(req *agent.CallRequest) (*canister, error) {
	var arg mgmt.CanisterIDArg
	if err := codec.Unmarshal(req.Arg, &arg); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	return h.lookupRaw(req.Method, arg.CanisterID)
}

func (h *Host) lookupRaw(method string, rawID []byte) (*canister, error) {
	id, err := principal.FromRaw(rawID)
	if err != nil {
		return nil, protocolErr(method, "malformed canister id")
	}
	c, ok := h.canisters[id]
	if !ok {
		return nil, protocolErr(method, "no such canister "+id.String())
	}
	return c, nil
}

func (h *Host) canisterStatus(req *agent.CallRequest) ([]byte, error) {
	c, err := h.lookupByArg(req)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(mgmt.StatusResult{
		Status:     c.status,
		Settings:   c.settings,
		ModuleHash: c.moduleHash,
		MemorySize: uint64(len(c.module)),
		Cycles:     c.cycles,
	})
}

func (h *Host) setStatus(req *agent.CallRequest, status mgmt.CanisterStatus) ([]byte, error) {
	c, err := h.lookupByArg(req)
	if err != nil {
		return nil, err
	}
	c.status = status
	return nil, nil
}

func (h *Host) deleteCanister(req *agent.CallRequest) ([]byte, error) {
	var arg mgmt.CanisterIDArg
	if err := codec.Unmarshal(req.Arg, &arg); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	id, err := principal.FromRaw(arg.CanisterID)
	if err != nil {
		return nil, protocolErr(req.Method, "malformed canister id")
	}
	c, ok := h.canisters[id]
	if !ok {
		return nil, protocolErr(req.Method, "no such canister "+id.String())
	}
	if c.status != mgmt.StatusStopped {
		return nil, protocolErr(req.Method, "canister must be stopped before deletion")
	}
	delete(h.canisters, id)
	return nil, nil
}

func (h *Host) topUp(req *agent.CallRequest) ([]byte, error) {
	var args mgmt.TopUpArgs
	if err := codec.Unmarshal(req.Arg, &args); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	c, err := h.lookupRaw(req.Method, args.CanisterID)
	if err != nil {
		return nil, err
	}
	c.cycles += args.Amount
	return nil, nil
}

func (h *Host) uninstallCode(req *agent.CallRequest) ([]byte, error) {
	c, err := h.lookupByArg(req)
	if err != nil {
		return nil, err
	}
	c.module = nil
	c.moduleHash = nil
	return nil, nil
}

func (h *Host) updateSettings(req *agent.CallRequest) ([]byte, error) {
	var args mgmt.UpdateSettingsArgs
	if err := codec.Unmarshal(req.Arg, &args); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	c, err := h.lookupRaw(req.Method, args.CanisterID)
	if err != nil {
		return nil, err
	}
	if args.Settings.Controllers != nil {
		c.controllers = args.Settings.Controllers
		c.settings.Controllers = args.Settings.Controllers
	}
	if args.Settings.ComputeAllocation != nil {
		c.settings.ComputeAllocation = *args.Settings.ComputeAllocation
	}
	if args.Settings.MemoryAllocation != nil {
		c.settings.MemoryAllocation = *args.Settings.MemoryAllocation
	}
	if args.Settings.FreezingThreshold != nil {
		c.settings.FreezingThreshold = *args.Settings.FreezingThreshold
	}
	return nil, nil
}

func (h *Host) applyModule(method string, c *canister, mode mgmt.InstallMode, module []byte) error {
	switch mode {
	case mgmt.ModeInstall:
		if c.moduleHash != nil {
			return protocolErr(method, "canister already has code installed; use reinstall or upgrade")
		}
	case mgmt.ModeReinstall:
		// Replaces code unconditionally.
	case mgmt.ModeUpgrade:
		if c.moduleHash == nil {
			return protocolErr(method, "cannot upgrade an empty canister")
		}
	default:
		return protocolErr(method, "disallowed install mode "+string(mode))
	}
	d := digest.Sum(module)
	c.module = module
	c.moduleHash = d.Bytes()
	return nil
}

func (h *Host) installCode(req *agent.CallRequest) ([]byte, error) {
	var args mgmt.InstallCodeArgs
	if err := codec.Unmarshal(req.Arg, &args); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	c, err := h.lookupRaw(req.Method, args.CanisterID)
	if err != nil {
		return nil, err
	}
	if err := h.applyModule(req.Method, c, args.Mode, args.WasmModule); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *Host) uploadChunk(req *agent.CallRequest) ([]byte, error) {
	var args mgmt.UploadChunkArgs
	if err := codec.Unmarshal(req.Arg, &args); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	c, err := h.lookupRaw(req.Method, args.CanisterID)
	if err != nil {
		return nil, err
	}
	if h.MaxChunkSize > 0 && len(args.Chunk) > h.MaxChunkSize {
		return nil, protocolErr(req.Method, "chunk exceeds maximum size")
	}
	d, err := c.chunks.Put(args.Chunk)
	if err != nil {
		return nil, protocolErr(req.Method, "chunk store write failed")
	}
	return codec.Marshal(mgmt.UploadChunkResult{Hash: d.Bytes()})
}

func (h *Host) storedChunks(req *agent.CallRequest) ([]byte, error) {
	c, err := h.lookupByArg(req)
	if err != nil {
		return nil, err
	}
	digests, err := c.chunks.List()
	if err != nil {
		return nil, protocolErr(req.Method, "chunk store listing failed")
	}
	hashes := make([][]byte, len(digests))
	for i, d := range digests {
		hashes[i] = d.Bytes()
	}
	return codec.Marshal(mgmt.StoredChunksResult{Hashes: hashes})
}

func (h *Host) clearChunkStore(req *agent.CallRequest) ([]byte, error) {
	c, err := h.lookupByArg(req)
	if err != nil {
		return nil, err
	}
	if err := c.chunks.Clear(); err != nil {
		return nil, protocolErr(req.Method, "chunk store clear failed")
	}
	return nil, nil
}

func (h *Host) installChunkedCode(req *agent.CallRequest) ([]byte, error) {
	var args mgmt.InstallChunkedCodeArgs
	if err := codec.Unmarshal(req.Arg, &args); err != nil {
		return nil, protocolErr(req.Method, "malformed argument")
	}
	c, err := h.lookupRaw(req.Method, args.TargetCanister)
	if err != nil {
		return nil, err
	}

	segments := make([][]byte, len(args.ChunkHashes))
	for i, raw := range args.ChunkHashes {
		d, err := digest.FromBytes(raw)
		if err != nil {
			return nil, protocolErr(req.Method, "malformed chunk digest in manifest")
		}
		chunk, err := c.chunks.Get(d)
		if err != nil {
			if hoststore.IsNotFound(err) {
				return nil, protocolErr(req.Method, "unknown chunk reference "+d.String())
			}
			return nil, protocolErr(req.Method, "chunk store read failed")
		}
		segments[i] = chunk
	}

	want, err := digest.FromBytes(args.WasmModuleHash)
	if err != nil {
		return nil, protocolErr(req.Method, "malformed module digest")
	}
	if digest.SumSegments(segments...) != want {
		return nil, protocolErr(req.Method, "reassembled module does not match wasm_module_hash")
	}

	var module []byte
	for _, s := range segments {
		module = append(module, s...)
	}
	if err := h.applyModule(req.Method, c, args.Mode, module); err != nil {
		return nil, err
	}
	return nil, nil
}
