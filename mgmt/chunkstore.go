package mgmt

import (
	"context"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/digest"
	"xdao.co/candep/principal"
)

// ChunkSet is a snapshot of the digests a canister's chunk store holds.
type ChunkSet map[digest.Digest]struct{}

// Has reports whether d is in the snapshot.
func (s ChunkSet) Has(d digest.Digest) bool {
	_, ok := s[d]
	return ok
}

// UploadChunk sends one chunk to a canister's chunk store and returns
// its digest. The host-reported digest is checked against the locally
// computed one; a mismatch is a validation error (protocol violation,
// not retryable). Uploading an already-stored chunk is a no-op on the
// host.
func (c *Client) UploadChunk(ctx context.Context, canisterID principal.Principal, chunk []byte) (digest.Digest, error) {
	if err := requireTarget(MethodUploadChunk, canisterID); err != nil {
		return digest.Digest{}, err
	}
	max := c.MaxChunkSize
	if max <= 0 {
		max = DefaultMaxChunkSize
	}
	if len(chunk) > max {
		return digest.Digest{}, wrapError(KindValidation, MethodUploadChunk, "chunk too large", ErrChunkTooLarge)
	}

	local := digest.Sum(chunk)
	req, err := agent.Call(principal.Management(), MethodUploadChunk).
		WithArg(UploadChunkArgs{CanisterID: canisterID.Raw(), Chunk: chunk}).
		WithEffectiveCanisterID(canisterID).
		Build()
	if err != nil {
		return digest.Digest{}, wrapError(KindValidation, MethodUploadChunk, "bad call parameters", err)
	}
	out, err := c.call(ctx, req)
	if err != nil {
		return digest.Digest{}, err
	}

	var res UploadChunkResult
	if err := codec.Unmarshal(out, &res); err != nil {
		return digest.Digest{}, wrapError(KindProtocol, MethodUploadChunk, "malformed result", err)
	}
	remote, err := digest.FromBytes(res.Hash)
	if err != nil {
		return digest.Digest{}, wrapError(KindProtocol, MethodUploadChunk, "malformed host digest", err)
	}
	if remote != local {
		return digest.Digest{}, wrapError(KindValidation, MethodUploadChunk, "host digest "+remote.String()+" != local "+local.String(), ErrDigestMismatch)
	}
	return local, nil
}

// StoredChunks returns the digests currently stored for a canister.
func (c *Client) StoredChunks(ctx context.Context, canisterID principal.Principal) (ChunkSet, error) {
	if err := requireTarget(MethodStoredChunks, canisterID); err != nil {
		return nil, err
	}
	req, err := agent.Call(principal.Management(), MethodStoredChunks).
		WithArg(CanisterIDArg{CanisterID: canisterID.Raw()}).
		WithEffectiveCanisterID(canisterID).
		Build()
	if err != nil {
		return nil, wrapError(KindValidation, MethodStoredChunks, "bad call parameters", err)
	}
	out, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}

	var res StoredChunksResult
	if err := codec.Unmarshal(out, &res); err != nil {
		return nil, wrapError(KindProtocol, MethodStoredChunks, "malformed result", err)
	}
	set := make(ChunkSet, len(res.Hashes))
	for _, h := range res.Hashes {
		d, err := digest.FromBytes(h)
		if err != nil {
			return nil, wrapError(KindProtocol, MethodStoredChunks, "malformed host digest", err)
		}
		set[d] = struct{}{}
	}
	return set, nil
}

// ClearChunkStore empties a canister's chunk store. Destructive: any
// digest referenced by a not-yet-issued install call becomes invalid,
// so callers running concurrent installs against one canister must
// serialize clears externally.
func (c *Client) ClearChunkStore(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodClearChunkStore, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodClearChunkStore, CanisterIDArg{CanisterID: canisterID.Raw()})
}
