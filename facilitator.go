package x402fac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/x402fac/facilitator/compliance"
	"github.com/x402fac/facilitator/envelope"
	"github.com/x402fac/facilitator/errkind"
	fevm "github.com/x402fac/facilitator/mechanisms/evm"
	mevmexact "github.com/x402fac/facilitator/mechanisms/evm/exact"
	msolana "github.com/x402fac/facilitator/mechanisms/solana"
	msolanaexact "github.com/x402fac/facilitator/mechanisms/solana/exact"
	"github.com/x402fac/facilitator/registry"
	sevm "github.com/x402fac/facilitator/signers/evm"
	ssolana "github.com/x402fac/facilitator/signers/solana"
)

// scheme is the only scheme this facilitator implements.
const scheme = "exact"

// Facilitator composes the Chain Registry, Blacklist Store, Authorization
// Validators, and Chain Providers into the verify/settle/supported/
// blacklist pipeline. It carries no per-request state, only the read-only
// Registry/Blacklist and the per-network Chain Providers, so a single
// instance is safe for any number of concurrent requests (spec.md §5).
// Grounded on the registration/dispatch/hook architecture of
// facilitator.go in the teacher repo, with the V1/V2 protocol duality and
// CAIP-2 network matching dropped: this facilitator has one wire version
// and plain network tags.
type Facilitator struct {
	registry  *registry.Registry
	blacklist *compliance.Store

	mu  sync.RWMutex
	evm map[string]*sevm.Provider
	sol map[string]*ssolana.Provider

	maxServerTimeout time.Duration

	hookMu          sync.RWMutex
	beforeVerify    []BeforeVerifyHook
	afterVerify     []AfterVerifyHook
	onVerifyFailure []OnVerifyFailureHook
	beforeSettle    []BeforeSettleHook
	afterSettle     []AfterSettleHook
	onSettleFailure []OnSettleFailureHook
}

// New constructs a Facilitator around a registry and blacklist store.
// maxServerTimeout clamps any caller-supplied maxTimeoutSeconds.
func New(reg *registry.Registry, blacklist *compliance.Store, maxServerTimeout time.Duration) *Facilitator {
	return &Facilitator{
		registry:         reg,
		blacklist:        blacklist,
		evm:              map[string]*sevm.Provider{},
		sol:              map[string]*ssolana.Provider{},
		maxServerTimeout: maxServerTimeout,
	}
}

// RegisterEVMProvider wires a Chain Provider for an EVM network.
func (f *Facilitator) RegisterEVMProvider(network string, p *sevm.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evm[network] = p
}

// RegisterSolanaProvider wires a Chain Provider for a Solana network.
func (f *Facilitator) RegisterSolanaProvider(network string, p *ssolana.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sol[network] = p
}

func (f *Facilitator) evmProvider(network string) (*sevm.Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.evm[network]
	return p, ok
}

func (f *Facilitator) solProvider(network string) (*ssolana.Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.sol[network]
	return p, ok
}

// Hook registration. Each appends under its own mutex, matching the
// teacher's thread-safe hook registration pattern.

func (f *Facilitator) OnBeforeVerify(h BeforeVerifyHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.beforeVerify = append(f.beforeVerify, h)
}

func (f *Facilitator) OnAfterVerify(h AfterVerifyHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.afterVerify = append(f.afterVerify, h)
}

func (f *Facilitator) OnVerifyFailure(h OnVerifyFailureHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.onVerifyFailure = append(f.onVerifyFailure, h)
}

func (f *Facilitator) OnBeforeSettle(h BeforeSettleHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.beforeSettle = append(f.beforeSettle, h)
}

// OnAfterSettle registers a hook invoked once a settlement has committed
// on-chain. It runs after the transfer is already final (and after
// doSettle's own post-hoc blacklist screen), so it can only observe or
// log the outcome, never undo it.
func (f *Facilitator) OnAfterSettle(h AfterSettleHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.afterSettle = append(f.afterSettle, h)
}

func (f *Facilitator) OnSettleFailure(h OnSettleFailureHook) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.onSettleFailure = append(f.onSettleFailure, h)
}

// DecodeEnvelope validates and decodes a raw PaymentEnvelope, rejecting
// malformed input as InvalidRequest. The payload is kept as raw JSON here;
// its wide integers are checked (JSON numbers rejected) when Verify or
// Settle decodes it.
func DecodeEnvelope(raw []byte) (PaymentEnvelope, error) {
	if err := envelope.ValidateEnvelope(raw); err != nil {
		return PaymentEnvelope{}, &VerifyError{Kind: errkind.InvalidRequest, Err: err}
	}
	var env PaymentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PaymentEnvelope{}, &VerifyError{Kind: errkind.InvalidRequest, Err: err}
	}
	return env, nil
}

// DecodeRequirements validates and decodes raw PaymentRequirements.
func DecodeRequirements(raw []byte) (PaymentRequirements, error) {
	if err := envelope.ValidateRequirements(raw); err != nil {
		return PaymentRequirements{}, &VerifyError{Kind: errkind.InvalidRequest, Err: err}
	}
	var req PaymentRequirements
	if err := json.Unmarshal(raw, &req); err != nil {
		return PaymentRequirements{}, &VerifyError{Kind: errkind.InvalidRequest, Err: err}
	}
	return req, nil
}

// Supported derives the cross-product {network x scheme x eligible-token}
// from the Chain Registry.
func (f *Facilitator) Supported() SupportedResponse {
	kinds := f.registry.Supported(scheme)
	out := make([]SupportedKind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, SupportedKind{
			Scheme:  k.Scheme,
			Network: Network(k.Network),
			Asset:   k.Asset,
			Extra:   map[string]interface{}{"name": k.Name, "version": k.Version},
		})
	}
	return SupportedResponse{Kinds: out}
}

// Blacklist reports the current blacklist snapshot.
func (f *Facilitator) Blacklist() BlacklistResponse {
	snap := f.blacklist.Snapshot()
	return BlacklistResponse{
		TotalBlocked:    snap.TotalBlocked,
		EVMCount:        snap.EVMCount,
		SolanaCount:     snap.SolanaCount,
		LoadedAtStartup: snap.LoadedAtStartup,
		Entries:         snap.Entries,
	}
}

// counterparties is the pair of addresses screened by the blacklist: the
// claimed payer (sender) and the requested recipient.
type counterparties struct {
	family string
	sender string
	payTo  string
}

// screenBlacklist runs the two-sided blacklist check concurrently via
// errgroup, per the DOMAIN STACK's fan-out design. A hit on either side
// short-circuits with BlockedAddress{role,reason}.
func (f *Facilitator) screenBlacklist(network Network, cp counterparties) error {
	var g errgroup.Group
	var senderReason, recipientReason string
	var senderBlocked, recipientBlocked bool

	g.Go(func() error {
		senderReason, senderBlocked = f.blacklist.Check(cp.family, cp.sender)
		return nil
	})
	g.Go(func() error {
		recipientReason, recipientBlocked = f.blacklist.Check(cp.family, cp.payTo)
		return nil
	})
	_ = g.Wait()

	if senderBlocked {
		return &VerifyError{
			Kind: errkind.BlockedAddress, Payer: cp.sender, Network: network,
			Err: fmt.Errorf("%s", errkind.BlockedAddressReason(errkind.RoleSender, senderReason)),
		}
	}
	if recipientBlocked {
		return &VerifyError{
			Kind: errkind.BlockedAddress, Payer: cp.sender, Network: network,
			Err: fmt.Errorf("%s", errkind.BlockedAddressReason(errkind.RoleRecipient, recipientReason)),
		}
	}
	return nil
}

// Verify runs the blacklist screen on both counterparties, then the
// per-chain Authorization Validator. It never broadcasts.
func (f *Facilitator) Verify(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*VerifyResponse, error) {
	hookCtx := VerifyContext{Ctx: ctx, Envelope: env, Requirements: req, State: StateDecoded}

	f.hookMu.RLock()
	beforeHooks := append([]BeforeVerifyHook{}, f.beforeVerify...)
	f.hookMu.RUnlock()
	for _, h := range beforeHooks {
		result, err := h(hookCtx)
		if err != nil {
			return nil, err
		}
		if result != nil && result.Abort {
			return &VerifyResponse{IsValid: false, InvalidReason: result.Reason}, nil
		}
	}

	resp, _, err := f.runVerify(ctx, env, req)
	if err != nil {
		return f.handleVerifyFailure(hookCtx, err)
	}

	hookCtx.State = StateVerified
	f.hookMu.RLock()
	afterHooks := append([]AfterVerifyHook{}, f.afterVerify...)
	f.hookMu.RUnlock()
	for _, h := range afterHooks {
		if err := h(VerifyResultContext{VerifyContext: hookCtx, Result: resp}); err != nil {
			slog.Warn("facilitator: afterVerify hook failed", "error", err)
		}
	}
	return resp, nil
}

func (f *Facilitator) handleVerifyFailure(hookCtx VerifyContext, verifyErr error) (*VerifyResponse, error) {
	kind, payer := classify(verifyErr)
	if kind == errkind.BlockedAddress {
		hookCtx.State = StateBlacklisted
	}

	f.hookMu.RLock()
	failureHooks := append([]OnVerifyFailureHook{}, f.onVerifyFailure...)
	f.hookMu.RUnlock()
	for _, h := range failureHooks {
		result, err := h(VerifyFailureContext{VerifyContext: hookCtx, Error: verifyErr})
		if err != nil {
			return nil, err
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	if kind == errkind.InvalidRequest || kind == errkind.UnsupportedScheme {
		return nil, verifyErr
	}
	return &VerifyResponse{IsValid: false, Payer: payer, InvalidReason: failureReason(kind, verifyErr)}, nil
}

func failureReason(kind errkind.Kind, err error) string {
	if kind == errkind.BlockedAddress {
		if ve, ok := err.(*VerifyError); ok && ve.Err != nil {
			return ve.Err.Error()
		}
	}
	return string(kind)
}

func classify(err error) (errkind.Kind, string) {
	switch e := err.(type) {
	case *VerifyError:
		return e.Kind, e.Payer
	case *SettleError:
		return e.Kind, e.Payer
	case *mevmexact.Error:
		return e.Kind, e.Payer
	case *msolanaexact.Error:
		return e.Kind, e.Payer
	default:
		return errkind.InternalSignerFailure, ""
	}
}

// classifySettleError maps a broadcast/confirmation error from the Chain
// Provider to the error taxonomy by the underlying cause, not by which
// pipeline stage produced it: a deterministic on-chain revert must classify
// as ContractCall (never retried), while a genuine RPC/timeout failure must
// classify as Transport (retried), per spec.md §7's retry table.
func classifySettleError(family registry.Family, err error) errkind.Kind {
	switch family {
	case registry.FamilyEVM:
		return fevm.ClassifyRevert(err.Error())
	case registry.FamilySolana:
		return msolana.ClassifySimulationError(err.Error())
	default:
		return errkind.InternalSignerFailure
	}
}

// evmOutcome carries a validated EVM payload through to the settle path,
// so Settle can encode and broadcast it without a second validation pass.
type evmOutcome struct {
	payload mevmexact.Payload
	asset   string
}

// runVerify dispatches to the per-family validator after the blacklist
// screen (spec.md §4.6) and returns both the wire-level VerifyResponse and
// an opaque settlement handle the Settle path can broadcast directly: an
// evmOutcome for EVM, or a *msolanaexact.Result (already co-signed and
// simulated) for Solana.
func (f *Facilitator) runVerify(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*VerifyResponse, interface{}, error) {
	if env.Scheme != scheme || req.Scheme != scheme {
		return nil, nil, &VerifyError{Kind: errkind.UnsupportedScheme, Network: env.Network, Err: fmt.Errorf("scheme %q not supported", env.Scheme)}
	}
	if env.Network != req.Network {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: fmt.Errorf("envelope network does not match requirements network")}
	}

	net, ok := f.registry.Network(string(env.Network))
	if !ok {
		return nil, nil, &VerifyError{Kind: errkind.UnsupportedAsset, Network: env.Network, Err: fmt.Errorf("network %q not configured", env.Network)}
	}

	switch net.Family {
	case registry.FamilyEVM:
		return f.verifyEVM(ctx, env, req)
	case registry.FamilySolana:
		return f.verifySolana(ctx, env, req)
	default:
		return nil, nil, &VerifyError{Kind: errkind.UnsupportedAsset, Network: env.Network, Err: fmt.Errorf("family %q not supported", net.Family)}
	}
}

func (f *Facilitator) verifyEVM(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*VerifyResponse, interface{}, error) {
	var payload mevmexact.Payload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: err}
	}

	if err := f.screenBlacklist(env.Network, counterparties{family: "evm", sender: payload.Authorization.From, payTo: req.PayTo}); err != nil {
		return nil, nil, err
	}

	provider, ok := f.evmProvider(string(env.Network))
	if !ok {
		return nil, nil, &VerifyError{Kind: errkind.UnsupportedAsset, Network: env.Network, Err: fmt.Errorf("no chain provider configured for %q", env.Network)}
	}

	reqTyped := mevmexact.Requirements{
		Network:           string(env.Network),
		Asset:             req.Asset,
		MaxAmountRequired: req.MaxAmountRequired,
		PayTo:             req.PayTo,
		MaxTimeoutSeconds: req.MaxTimeoutSeconds,
	}

	result, err := mevmexact.Verify(ctx, provider, f.registry, payload, reqTyped, time.Now())
	if err != nil {
		return nil, nil, translateMechanismError(env.Network, err)
	}
	return &VerifyResponse{IsValid: true, Payer: result.Payer}, evmOutcome{payload: payload, asset: req.Asset}, nil
}

func (f *Facilitator) verifySolana(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*VerifyResponse, interface{}, error) {
	var payload msolana.Payload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: err}
	}

	tx, err := msolana.DecodeTransaction(payload.Transaction)
	if err != nil {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: err}
	}
	transfer, err := msolana.InspectTransfer(tx)
	if err != nil {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: err}
	}

	if err := f.screenBlacklist(env.Network, counterparties{family: "solana", sender: transfer.Owner, payTo: req.PayTo}); err != nil {
		return nil, nil, err
	}

	provider, ok := f.solProvider(string(env.Network))
	if !ok {
		return nil, nil, &VerifyError{Kind: errkind.UnsupportedAsset, Network: env.Network, Err: fmt.Errorf("no chain provider configured for %q", env.Network)}
	}

	maxAmount, err := msolanaexact.ParseAmount(req.MaxAmountRequired.String())
	if err != nil {
		return nil, nil, &VerifyError{Kind: errkind.InvalidRequest, Network: env.Network, Err: err}
	}

	reqTyped := msolanaexact.Requirements{
		Network:           string(env.Network),
		Asset:             req.Asset,
		MaxAmountRequired: maxAmount,
		PayTo:             req.PayTo,
	}

	result, err := msolanaexact.Verify(ctx, provider, reqTyped, payload)
	if err != nil {
		return nil, nil, translateMechanismError(env.Network, err)
	}
	// result.Tx is already co-signed as fee payer and has passed
	// simulateTransaction: Settle can broadcast it as-is.
	return &VerifyResponse{IsValid: true, Payer: result.Payer}, result, nil
}

func translateMechanismError(network Network, err error) error {
	switch e := err.(type) {
	case *mevmexact.Error:
		return &VerifyError{Kind: e.Kind, Payer: e.Payer, Network: network, Err: fmt.Errorf("%s", e.Detail)}
	case *msolanaexact.Error:
		return &VerifyError{Kind: e.Kind, Payer: e.Payer, Network: network, Err: fmt.Errorf("%s", e.Detail)}
	default:
		return &VerifyError{Kind: errkind.InternalSignerFailure, Network: network, Err: err}
	}
}

// Settle runs verify internally, then broadcasts via the Chain Provider
// using the validated authorization directly (no second validation pass),
// then runs a post-hoc blacklist screen that can only audit-log, never
// undo, the now-committed transaction (spec.md §4.6).
func (f *Facilitator) Settle(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*SettleResponse, error) {
	hookCtx := SettleContext{Ctx: ctx, Envelope: env, Requirements: req, State: StateDecoded}

	f.hookMu.RLock()
	beforeHooks := append([]BeforeSettleHook{}, f.beforeSettle...)
	f.hookMu.RUnlock()
	for _, h := range beforeHooks {
		result, err := h(hookCtx)
		if err != nil {
			return nil, err
		}
		if result != nil && result.Abort {
			return &SettleResponse{Success: false, Network: env.Network, ErrorReason: result.Reason}, nil
		}
	}

	resp, err := f.doSettle(ctx, env, req)
	if err != nil {
		return f.handleSettleFailure(hookCtx, err)
	}

	hookCtx.State = StateSettled
	f.hookMu.RLock()
	afterHooks := append([]AfterSettleHook{}, f.afterSettle...)
	f.hookMu.RUnlock()
	for _, h := range afterHooks {
		if err := h(SettleResultContext{SettleContext: hookCtx, Result: resp}); err != nil {
			slog.Warn("facilitator: afterSettle hook failed", "error", err)
		}
	}
	return resp, nil
}

func (f *Facilitator) handleSettleFailure(hookCtx SettleContext, settleErr error) (*SettleResponse, error) {
	kind, payer := classify(settleErr)
	var txHash string
	if se, ok := settleErr.(*SettleError); ok {
		txHash = se.Transaction
	}
	if kind == errkind.BlockedAddress {
		hookCtx.State = StateBlacklisted
	} else {
		hookCtx.State = StateSettleFailed
	}

	f.hookMu.RLock()
	failureHooks := append([]OnSettleFailureHook{}, f.onSettleFailure...)
	f.hookMu.RUnlock()
	for _, h := range failureHooks {
		result, err := h(SettleFailureContext{SettleContext: hookCtx, Error: settleErr})
		if err != nil {
			return nil, err
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	if kind == errkind.InvalidRequest || kind == errkind.UnsupportedScheme {
		return nil, settleErr
	}
	return &SettleResponse{
		Success: false, Network: hookCtx.Envelope.Network, Payer: payer,
		Transaction: txHash, ErrorReason: failureReason(kind, settleErr),
	}, nil
}

// doSettle re-uses runVerify's result (the DECODED->VALIDATED->VERIFIED
// transition) and drives the VERIFIED->BROADCASTING->MINED->SETTLED|
// SETTLE_FAILED transitions from spec.md §4.6.
func (f *Facilitator) doSettle(ctx context.Context, env PaymentEnvelope, req PaymentRequirements) (*SettleResponse, error) {
	verifyResp, handle, err := f.runVerify(ctx, env, req)
	if err != nil {
		if ve, ok := err.(*VerifyError); ok {
			return nil, &SettleError{Kind: ve.Kind, Payer: ve.Payer, Network: env.Network, Err: ve.Err}
		}
		return nil, &SettleError{Kind: errkind.InternalSignerFailure, Network: env.Network, Err: err}
	}

	net, _ := f.registry.Network(string(env.Network))

	slog.Debug("facilitator: broadcasting settlement", "network", env.Network, "state", StateBroadcasting)
	var txHash string
	switch out := handle.(type) {
	case evmOutcome:
		txHash, err = f.settleEVM(ctx, env, req, out)
	case *msolanaexact.Result:
		txHash, err = f.settleSolana(ctx, env, req, out)
	default:
		err = fmt.Errorf("facilitator: no broadcast handle for network %q", env.Network)
	}
	if err != nil {
		kind := classifySettleError(net.Family, err)
		return nil, &SettleError{Kind: kind, Payer: verifyResp.Payer, Network: env.Network, Transaction: txHash, Err: err}
	}
	slog.Debug("facilitator: settlement mined", "network", env.Network, "transaction", txHash, "state", StateMined)

	resp := &SettleResponse{Success: true, Transaction: txHash, Network: env.Network, Payer: verifyResp.Payer}

	// Post-hoc blacklist screen: catches races against a blacklist reload
	// that landed between verify and broadcast, but never reverses an
	// already-settled transaction -- it can only audit-log the hit.
	if reason, blocked := f.blacklist.Check(string(net.Family), verifyResp.Payer); blocked {
		slog.Warn("facilitator: post-hoc blacklist hit on settled transaction", "payer", verifyResp.Payer, "reason", reason, "transaction", txHash)
	}
	if reason, blocked := f.blacklist.Check(string(net.Family), req.PayTo); blocked {
		slog.Warn("facilitator: post-hoc blacklist hit on settled transaction recipient", "payTo", req.PayTo, "reason", reason, "transaction", txHash)
	}

	return resp, nil
}

func (f *Facilitator) settleEVM(ctx context.Context, env PaymentEnvelope, req PaymentRequirements, out evmOutcome) (string, error) {
	provider, ok := f.evmProvider(string(env.Network))
	if !ok {
		return "", fmt.Errorf("no chain provider configured for %q", env.Network)
	}
	deployment, ok := f.registry.DeploymentFor(string(env.Network), out.asset)
	if !ok {
		return "", fmt.Errorf("asset %q not registered on %q", out.asset, env.Network)
	}

	calldata, err := mevmexact.EncodeTransferWithAuthorization(out.payload)
	if err != nil {
		return "", err
	}

	txHash, err := provider.SignAndBroadcast(ctx, deployment.Address, calldata)
	if err != nil {
		return "", err
	}

	timeout := f.settleTimeout(req.MaxTimeoutSeconds)
	receipt, err := provider.WaitForReceipt(ctx, txHash, timeout)
	if err != nil {
		return txHash, err
	}
	if receipt.Status == 0 {
		return txHash, fmt.Errorf("transaction reverted on-chain")
	}

	token := common.HexToAddress(deployment.Address)
	from := common.HexToAddress(out.payload.Authorization.From)
	to := common.HexToAddress(out.payload.Authorization.To)
	if !sevm.VerifyTransferLog(receipt.Logs, token, from, to, &out.payload.Authorization.Value.Int) {
		return txHash, fmt.Errorf("transaction mined but no matching Transfer log found")
	}
	return txHash, nil
}

func (f *Facilitator) settleSolana(ctx context.Context, env PaymentEnvelope, req PaymentRequirements, out *msolanaexact.Result) (string, error) {
	provider, ok := f.solProvider(string(env.Network))
	if !ok {
		return "", fmt.Errorf("no chain provider configured for %q", env.Network)
	}

	sig, err := provider.Broadcast(ctx, out.Tx)
	if err != nil {
		return "", err
	}

	timeout := f.settleTimeout(req.MaxTimeoutSeconds)
	confirmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := provider.Confirm(confirmCtx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (f *Facilitator) settleTimeout(requestedSeconds int) time.Duration {
	timeout := time.Duration(requestedSeconds) * time.Second
	if timeout <= 0 || timeout > f.maxServerTimeout {
		return f.maxServerTimeout
	}
	return timeout
}
