package mgmt

// Method names of the management surface. Wire names are snake_case.
const (
	MethodCreateCanister                      = "create_canister"
	MethodProvisionalCreateCanisterWithCycles = "provisional_create_canister_with_cycles"
	MethodProvisionalTopUpCanister            = "provisional_top_up_canister"
	MethodCanisterStatus                      = "canister_status"
	MethodStartCanister                       = "start_canister"
	MethodStopCanister                        = "stop_canister"
	MethodDeleteCanister                      = "delete_canister"
	MethodDepositCycles                       = "deposit_cycles"
	MethodRawRand                             = "raw_rand"
	MethodUninstallCode                       = "uninstall_code"
	MethodUpdateSettings                      = "update_settings"
	MethodInstallCode                         = "install_code"
	MethodUploadChunk                         = "upload_chunk"
	MethodStoredChunks                        = "stored_chunks"
	MethodClearChunkStore                     = "clear_chunk_store"
	MethodInstallChunkedCode                  = "install_chunked_code"
)
