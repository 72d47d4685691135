package mgmt

// InstallMode selects how the host applies new code to a canister.
// It is passed through to the host, not interpreted locally.
type InstallMode string

const (
	// ModeInstall requires the canister to have no code installed.
	ModeInstall InstallMode = "install"
	// ModeReinstall replaces code and wipes canister state.
	ModeReinstall InstallMode = "reinstall"
	// ModeUpgrade replaces code, preserving stable canister state.
	ModeUpgrade InstallMode = "upgrade"
)

// CanisterStatus is the run state of a canister.
type CanisterStatus string

const (
	StatusRunning  CanisterStatus = "running"
	StatusStopping CanisterStatus = "stopping"
	StatusStopped  CanisterStatus = "stopped"
)

// DefiniteCanisterSettings are the concrete settings of a canister as
// reported by the host.
type DefiniteCanisterSettings struct {
	Controllers       [][]byte `cbor:"controllers"`
	ComputeAllocation uint64   `cbor:"compute_allocation"`
	MemoryAllocation  uint64   `cbor:"memory_allocation"`
	FreezingThreshold uint64   `cbor:"freezing_threshold"`
}

// CanisterSettings carries optional settings updates; nil fields are
// left unchanged by the host.
type CanisterSettings struct {
	Controllers       [][]byte `cbor:"controllers,omitempty"`
	ComputeAllocation *uint64  `cbor:"compute_allocation,omitempty"`
	MemoryAllocation  *uint64  `cbor:"memory_allocation,omitempty"`
	FreezingThreshold *uint64  `cbor:"freezing_threshold,omitempty"`
}

// StatusResult is the complete status of a canister: run state,
// settings, the digest of the installed module (nil when empty),
// memory footprint, and cycle balance.
type StatusResult struct {
	Status     CanisterStatus           `cbor:"status"`
	Settings   DefiniteCanisterSettings `cbor:"settings"`
	ModuleHash []byte                   `cbor:"module_hash,omitempty"`
	MemorySize uint64                   `cbor:"memory_size"`
	Cycles     uint64                   `cbor:"cycles"`
}

// Wire argument and result payloads. These are shared with host-side
// implementations, so they are exported.

// CanisterIDArg is the payload for single-canister operations (status,
// start, stop, delete, uninstall, deposits).
type CanisterIDArg struct {
	CanisterID []byte `cbor:"canister_id"`
}

// CreateCanisterArgs requests a new canister, optionally with settings
// and an initial cycle balance.
type CreateCanisterArgs struct {
	Settings *CanisterSettings `cbor:"settings,omitempty"`
	Amount   *uint64           `cbor:"amount,omitempty"`
}

// CreateCanisterResult carries the new canister's identity.
type CreateCanisterResult struct {
	CanisterID []byte `cbor:"canister_id"`
}

// TopUpArgs deposits amount cycles into a canister.
type TopUpArgs struct {
	CanisterID []byte `cbor:"canister_id"`
	Amount     uint64 `cbor:"amount"`
}

// UpdateSettingsArgs applies settings changes to a canister.
type UpdateSettingsArgs struct {
	CanisterID []byte           `cbor:"canister_id"`
	Settings   CanisterSettings `cbor:"settings"`
}

// InstallCodeArgs is the one-shot install payload: the complete module
// bytes travel in the call.
type InstallCodeArgs struct {
	CanisterID []byte      `cbor:"canister_id"`
	Mode       InstallMode `cbor:"mode"`
	WasmModule []byte      `cbor:"wasm_module"`
	Arg        []byte      `cbor:"arg,omitempty"`
}

// UploadChunkArgs sends one chunk to a canister's chunk store.
type UploadChunkArgs struct {
	CanisterID []byte `cbor:"canister_id"`
	Chunk      []byte `cbor:"chunk"`
}

// UploadChunkResult is the host-computed digest of the uploaded chunk.
type UploadChunkResult struct {
	Hash []byte `cbor:"hash"`
}

// StoredChunksResult lists the digests currently in a canister's chunk
// store. No ordering guarantee.
type StoredChunksResult struct {
	Hashes [][]byte `cbor:"hashes"`
}

// InstallChunkedCodeArgs is the terminal chunked-install payload: it
// carries only digests, not module bytes. ChunkHashes order determines
// reassembly.
type InstallChunkedCodeArgs struct {
	TargetCanister []byte      `cbor:"target_canister"`
	Mode           InstallMode `cbor:"mode"`
	ChunkHashes    [][]byte    `cbor:"chunk_hashes_list"`
	WasmModuleHash []byte      `cbor:"wasm_module_hash"`
	Arg            []byte      `cbor:"arg,omitempty"`
}
