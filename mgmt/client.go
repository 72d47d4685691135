// Package mgmt is the client for the management surface of a canister
// host: canister lifecycle, the per-canister chunk store, and the
// code-installation orchestrator that picks between one-shot and
// chunked transfer.
package mgmt

import (
	"context"
	"errors"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/principal"
)

// Client issues management calls through a transport. All methods
// route by the canister they operate on (the management identity is
// the payload target).
type Client struct {
	transport agent.Transport

	// MaxChunkSize bounds individual chunk uploads.
	MaxChunkSize int
	// UploadConcurrency bounds parallel chunk uploads in one chunked
	// install run.
	UploadConcurrency int
}

// DefaultUploadConcurrency is the upload parallelism used when a
// builder does not override it.
const DefaultUploadConcurrency = 4

// NewClient binds a transport.
func NewClient(t agent.Transport) *Client {
	return &Client{
		transport:         t,
		MaxChunkSize:      DefaultMaxChunkSize,
		UploadConcurrency: DefaultUploadConcurrency,
	}
}

// call submits a finalized request and classifies transport failures.
func (c *Client) call(ctx context.Context, req *agent.CallRequest) ([]byte, error) {
	if c == nil || c.transport == nil {
		return nil, newError(KindValidation, req.Method, "no transport configured")
	}
	out, err := c.transport.Submit(ctx, req)
	if err != nil {
		var me *Error
		if errors.As(err, &me) {
			return nil, err
		}
		return nil, wrapError(KindTransport, req.Method, "call failed", err)
	}
	return out, nil
}

func (c *Client) callUnit(ctx context.Context, target principal.Principal, method string, arg any) error {
	req, err := agent.Call(principal.Management(), method).
		WithArg(arg).
		WithEffectiveCanisterID(target).
		Build()
	if err != nil {
		return wrapError(KindValidation, method, "bad call parameters", err)
	}
	_, err = c.call(ctx, req)
	return err
}

func requireTarget(method string, target principal.Principal) error {
	if target.IsManagement() {
		return wrapError(KindValidation, method, "target canister is required", ErrEmptyTarget)
	}
	return nil
}

// CanisterStatus returns the status of a canister.
func (c *Client) CanisterStatus(ctx context.Context, canisterID principal.Principal) (*StatusResult, error) {
	if err := requireTarget(MethodCanisterStatus, canisterID); err != nil {
		return nil, err
	}
	req, err := agent.Call(principal.Management(), MethodCanisterStatus).
		WithArg(CanisterIDArg{CanisterID: canisterID.Raw()}).
		WithEffectiveCanisterID(canisterID).
		Build()
	if err != nil {
		return nil, wrapError(KindValidation, MethodCanisterStatus, "bad call parameters", err)
	}
	out, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	var res StatusResult
	if err := codec.Unmarshal(out, &res); err != nil {
		return nil, wrapError(KindProtocol, MethodCanisterStatus, "malformed status result", err)
	}
	return &res, nil
}

// StartCanister starts a canister.
func (c *Client) StartCanister(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodStartCanister, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodStartCanister, CanisterIDArg{CanisterID: canisterID.Raw()})
}

// StopCanister stops a canister.
func (c *Client) StopCanister(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodStopCanister, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodStopCanister, CanisterIDArg{CanisterID: canisterID.Raw()})
}

// DeleteCanister deletes a stopped canister.
func (c *Client) DeleteCanister(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodDeleteCanister, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodDeleteCanister, CanisterIDArg{CanisterID: canisterID.Raw()})
}

// DepositCycles deposits the cycles attached to this call into a
// canister.
func (c *Client) DepositCycles(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodDepositCycles, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodDepositCycles, CanisterIDArg{CanisterID: canisterID.Raw()})
}

// UninstallCode removes a canister's code and state, leaving it empty.
func (c *Client) UninstallCode(ctx context.Context, canisterID principal.Principal) error {
	if err := requireTarget(MethodUninstallCode, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodUninstallCode, CanisterIDArg{CanisterID: canisterID.Raw()})
}

// ProvisionalTopUpCanister adds amount cycles to a canister's balance.
func (c *Client) ProvisionalTopUpCanister(ctx context.Context, canisterID principal.Principal, amount uint64) error {
	if err := requireTarget(MethodProvisionalTopUpCanister, canisterID); err != nil {
		return err
	}
	return c.callUnit(ctx, canisterID, MethodProvisionalTopUpCanister, TopUpArgs{
		CanisterID: canisterID.Raw(),
		Amount:     amount,
	})
}

// RawRand returns 32 fresh pseudo-random bytes from the host.
func (c *Client) RawRand(ctx context.Context) ([]byte, error) {
	req, err := agent.Call(principal.Management(), MethodRawRand).Build()
	if err != nil {
		return nil, wrapError(KindValidation, MethodRawRand, "bad call parameters", err)
	}
	out, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	var b []byte
	if err := codec.Unmarshal(out, &b); err != nil {
		return nil, wrapError(KindProtocol, MethodRawRand, "malformed result", err)
	}
	return b, nil
}

// CreateCanister starts a builder for creating a canister.
func (c *Client) CreateCanister() *CreateCanisterBuilder {
	return &CreateCanisterBuilder{client: c}
}

// CreateCanisterBuilder accumulates creation parameters.
type CreateCanisterBuilder struct {
	client   *Client
	settings CanisterSettings
	amount   *uint64
}

// WithControllers sets the controller set of the new canister.
func (b *CreateCanisterBuilder) WithControllers(controllers ...principal.Principal) *CreateCanisterBuilder {
	raw := make([][]byte, len(controllers))
	for i, p := range controllers {
		raw[i] = p.Raw()
	}
	b.settings.Controllers = raw
	return b
}

// WithCycles sets the initial cycle balance.
func (b *CreateCanisterBuilder) WithCycles(amount uint64) *CreateCanisterBuilder {
	b.amount = &amount
	return b
}

// Call creates the canister and returns its identity.
func (b *CreateCanisterBuilder) Call(ctx context.Context) (principal.Principal, error) {
	args := CreateCanisterArgs{Amount: b.amount}
	if b.settings.Controllers != nil || b.settings.ComputeAllocation != nil ||
		b.settings.MemoryAllocation != nil || b.settings.FreezingThreshold != nil {
		args.Settings = &b.settings
	}
	req, err := agent.Call(principal.Management(), MethodProvisionalCreateCanisterWithCycles).
		WithArg(args).
		Build()
	if err != nil {
		return principal.Principal{}, wrapError(KindValidation, MethodProvisionalCreateCanisterWithCycles, "bad call parameters", err)
	}
	out, err := b.client.call(ctx, req)
	if err != nil {
		return principal.Principal{}, err
	}
	var res CreateCanisterResult
	if err := codec.Unmarshal(out, &res); err != nil {
		return principal.Principal{}, wrapError(KindProtocol, MethodProvisionalCreateCanisterWithCycles, "malformed result", err)
	}
	return principal.FromRaw(res.CanisterID)
}

// UpdateSettings starts a builder for updating a canister's settings.
func (c *Client) UpdateSettings(canisterID principal.Principal) *UpdateSettingsBuilder {
	return &UpdateSettingsBuilder{client: c, canisterID: canisterID}
}

// UpdateSettingsBuilder accumulates settings changes.
type UpdateSettingsBuilder struct {
	client     *Client
	canisterID principal.Principal
	settings   CanisterSettings
}

// WithControllers replaces the controller set.
func (b *UpdateSettingsBuilder) WithControllers(controllers ...principal.Principal) *UpdateSettingsBuilder {
	raw := make([][]byte, len(controllers))
	for i, p := range controllers {
		raw[i] = p.Raw()
	}
	b.settings.Controllers = raw
	return b
}

// WithComputeAllocation sets the guaranteed compute allocation
// percentage.
func (b *UpdateSettingsBuilder) WithComputeAllocation(pct uint64) *UpdateSettingsBuilder {
	b.settings.ComputeAllocation = &pct
	return b
}

// WithMemoryAllocation sets the memory allocation in bytes.
func (b *UpdateSettingsBuilder) WithMemoryAllocation(bytes uint64) *UpdateSettingsBuilder {
	b.settings.MemoryAllocation = &bytes
	return b
}

// WithFreezingThreshold sets the freezing threshold in seconds.
func (b *UpdateSettingsBuilder) WithFreezingThreshold(seconds uint64) *UpdateSettingsBuilder {
	b.settings.FreezingThreshold = &seconds
	return b
}

// Call applies the accumulated settings.
func (b *UpdateSettingsBuilder) Call(ctx context.Context) error {
	if err := requireTarget(MethodUpdateSettings, b.canisterID); err != nil {
		return err
	}
	return b.client.callUnit(ctx, b.canisterID, MethodUpdateSettings, UpdateSettingsArgs{
		CanisterID: b.canisterID.Raw(),
		Settings:   b.settings,
	})
}
