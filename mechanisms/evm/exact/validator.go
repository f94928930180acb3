// Package exact implements the EVM Authorization Validator for the
// "exact" scheme: EIP-3009 transferWithAuthorization. Grounded directly on
// mechanisms/evm/exact/facilitator/scheme.go in the teacher repo, adapted
// to this facilitator's plain network tags (the teacher's CAIP-2 network
// matching is dropped, since spec.md's Network enum is plain tags), to
// registry-authoritative EIP-712 domain resolution (the teacher lets
// requirements.Extra override the registry's name/version; this validator
// never does, per the spec's domain-authority design note and scenario S4),
// and to the universal EOA/EIP-1271/ERC-6492 signature path in authcheck.
package exact

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/x402fac/facilitator/codec"
	"github.com/x402fac/facilitator/errkind"
	fevm "github.com/x402fac/facilitator/mechanisms/evm"
	"github.com/x402fac/facilitator/mechanisms/evm/authcheck"
	"github.com/x402fac/facilitator/registry"
	"github.com/x402fac/facilitator/wireint"
)

const Scheme = "exact"

// ChainReader is the subset of the EVM Chain Provider this validator and
// authcheck need: balance/bytecode reads, a generic call, and a simulated
// dry-run call.
type ChainReader interface {
	GetBalance(ctx context.Context, owner, token string) (*big.Int, error)
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	SimulateCall(ctx context.Context, to string, data []byte) error
	GetCode(ctx context.Context, address string) ([]byte, error)
}

// Payload is the wire shape of PaymentEnvelope.payload for the EVM exact
// scheme: a signature plus the EIP-3009 authorization it covers.
type Payload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Authorization is the wire shape of the EVM Authorization entity: wide
// integers are decimal strings (wireint.Int), per the normative wire format.
type Authorization struct {
	From        string      `json:"from"`
	To          string      `json:"to"`
	Value       wireint.Int `json:"value"`
	ValidAfter  wireint.Int `json:"validAfter"`
	ValidBefore wireint.Int `json:"validBefore"`
	Nonce       string      `json:"nonce"`
}

// Requirements is the wire shape of PaymentRequirements relevant to this
// scheme.
type Requirements struct {
	Network           string
	Asset             string
	MaxAmountRequired wireint.Int
	PayTo             string
	MaxTimeoutSeconds int
}

// Result mirrors VerificationOutcome for a successful validation.
type Result struct {
	Payer string
}

// authorizationStateSelector is the 4-byte selector for
// authorizationState(address,bytes32), the EIP-3009 nonce-consumption
// check every compliant token exposes.
var authorizationStateSelector = crypto.Keccak256([]byte("authorizationState(address,bytes32)"))[:4]

// transferWithAuthorizationSelector is the selector for the VRS-overload of
// transferWithAuthorization, used for the dry-run simulation.
var transferWithAuthorizationSelector = crypto.Keccak256(
	[]byte("transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,uint8,bytes32,bytes32)"),
)[:4]

// Verify runs the EIP-3009 validation procedure from spec.md §4.4.1 against
// a live Chain Provider. now is the time basis for the validity window
// check (wall-clock, or chain-head time if the caller supplies it).
func Verify(ctx context.Context, reader ChainReader, reg *registry.Registry, payload Payload, req Requirements, now time.Time) (*Result, error) {
	// 1. Static envelope checks.
	if !common.IsHexAddress(payload.Authorization.To) || !common.IsHexAddress(req.PayTo) {
		return nil, verr(errkind.InvalidRequest, "", "malformed address")
	}
	toAddr, _ := codec.ParseEVM(payload.Authorization.To)
	payToAddr, _ := codec.ParseEVM(req.PayTo)
	if !toAddr.Equal(payToAddr) {
		return nil, verr(errkind.RecipientMismatch, "", "authorization.to does not match requirements.payTo")
	}
	if payload.Authorization.Value.Sign() <= 0 {
		return nil, verr(errkind.InvalidRequest, "", "value must be greater than zero")
	}
	if payload.Authorization.Value.Cmp(req.MaxAmountRequired) > 0 {
		return nil, verr(errkind.AmountMismatch, "", "value exceeds maxAmountRequired")
	}

	// 2. Time window.
	nowInt := wireint.FromInt64(now.Unix())
	if payload.Authorization.ValidAfter.Cmp(nowInt) > 0 {
		return nil, verr(errkind.InvalidTimingNotYet, payload.Authorization.From, "authorization not yet valid")
	}
	if payload.Authorization.ValidBefore.Cmp(nowInt) <= 0 {
		return nil, verr(errkind.InvalidTimingExpired, payload.Authorization.From, "authorization expired")
	}

	// 3. Domain lookup -- registry is authoritative, never req.Extra.
	deployment, ok := reg.DeploymentFor(req.Network, req.Asset)
	if !ok || !deployment.Eligible() {
		return nil, verr(errkind.UnsupportedAsset, payload.Authorization.From, "asset has no registered EIP-712 domain")
	}
	network, ok := reg.Network(req.Network)
	if !ok {
		return nil, verr(errkind.UnsupportedAsset, payload.Authorization.From, "network not in registry")
	}

	nonce, err := codec.DecodeNonce(payload.Authorization.Nonce)
	if err != nil {
		return nil, verr(errkind.InvalidRequest, payload.Authorization.From, err.Error())
	}

	// 4. Message hashing.
	auth := fevm.Authorization{
		From:        payload.Authorization.From,
		To:          payload.Authorization.To,
		Value:       &payload.Authorization.Value.Int,
		ValidAfter:  &payload.Authorization.ValidAfter.Int,
		ValidBefore: &payload.Authorization.ValidBefore.Int,
		Nonce:       nonce,
	}
	domain := fevm.Domain{
		Name:              deployment.Name,
		Version:           deployment.Version,
		ChainID:           network.ChainID,
		VerifyingContract: deployment.Address,
	}
	hash, err := fevm.HashAuthorization(auth, domain)
	if err != nil {
		return nil, verr(errkind.InternalSignerFailure, payload.Authorization.From, err.Error())
	}

	// 5. Signature recovery (EOA, EIP-1271, or ERC-6492).
	sigBytes, err := decodeSignature(payload.Signature)
	if err != nil {
		return nil, verr(errkind.InvalidSignature, payload.Authorization.From, err.Error())
	}
	valid, _, err := authcheck.Verify(ctx, reader, payload.Authorization.From, hash, sigBytes, true)
	if err != nil {
		if err == authcheck.ErrUndeployedSmartWallet {
			return nil, verr(errkind.InvalidSignature, payload.Authorization.From, err.Error())
		}
		return nil, verr(errkind.InvalidSignature, payload.Authorization.From, err.Error())
	}
	if !valid {
		return nil, verr(errkind.InvalidSignature, payload.Authorization.From, "recovered signer does not match authorization.from")
	}

	// 6. Balance & allowance simulation.
	balance, err := reader.GetBalance(ctx, payload.Authorization.From, deployment.Address)
	if err != nil {
		return nil, transportOrInternal(err, payload.Authorization.From)
	}
	if balance.Cmp(&payload.Authorization.Value.Int) < 0 {
		return nil, verr(errkind.InsufficientFunds, payload.Authorization.From, "balance below authorized value")
	}

	nonceUsed, err := checkNonceUsed(ctx, reader, deployment.Address, payload.Authorization.From, nonce)
	if err != nil {
		return nil, transportOrInternal(err, payload.Authorization.From)
	}
	if nonceUsed {
		return nil, verr(errkind.NonceAlreadyUsed, payload.Authorization.From, "authorization is used")
	}

	if err := simulateTransfer(ctx, reader, deployment.Address, auth, sigBytes); err != nil {
		kind := fevm.ClassifyRevert(err.Error())
		return nil, verr(kind, payload.Authorization.From, err.Error())
	}

	return &Result{Payer: payload.Authorization.From}, nil
}

func checkNonceUsed(ctx context.Context, reader ChainReader, token, from string, nonce [32]byte) (bool, error) {
	addressTy, _ := abi.NewType("address", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	args := abi.Arguments{{Type: addressTy}, {Type: bytes32Ty}}
	packed, err := args.Pack(common.HexToAddress(from), nonce)
	if err != nil {
		return false, err
	}
	calldata := append(append([]byte{}, authorizationStateSelector...), packed...)
	result, err := reader.CallContract(ctx, token, calldata)
	if err != nil {
		return false, err
	}
	if len(result) < 32 {
		return false, fmt.Errorf("authorizationState: short response")
	}
	return result[31] != 0, nil
}

// simulateTransfer dry-runs transferWithAuthorization so that deterministic
// reverts (used nonce, expired, bad signature as seen by the contract
// itself) surface as classified errors before any broadcast is attempted.
func simulateTransfer(ctx context.Context, reader ChainReader, token string, auth fevm.Authorization, sig []byte) error {
	calldata, err := encodeTransferWithAuthorizationVRS(auth, sig)
	if err != nil {
		// Smart-wallet / ERC-6492 signatures cannot be replayed through the
		// VRS overload; the simulation is skipped and balance/nonce checks
		// above are relied on instead.
		return nil
	}
	return reader.SimulateCall(ctx, token, calldata)
}

func encodeTransferWithAuthorizationVRS(auth fevm.Authorization, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("exact: signature is not a 65-byte compact signature")
	}
	v := sig[64]
	var r, s [32]byte
	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])

	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	uint8Ty, _ := abi.NewType("uint8", "", nil)
	args := abi.Arguments{
		{Type: addressTy}, {Type: addressTy}, {Type: uint256Ty},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: bytes32Ty},
		{Type: uint8Ty}, {Type: bytes32Ty}, {Type: bytes32Ty},
	}
	packed, err := args.Pack(
		common.HexToAddress(auth.From), common.HexToAddress(auth.To), auth.Value,
		auth.ValidAfter, auth.ValidBefore, auth.Nonce,
		v, r, s,
	)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, transferWithAuthorizationSelector...), packed...), nil
}

// transferWithAuthorizationBytesSelector is the selector for the
// bytes-signature overload of transferWithAuthorization, the only encoding
// that can carry an EIP-1271/ERC-6492 wrapped signature on-chain.
var transferWithAuthorizationBytesSelector = crypto.Keccak256(
	[]byte("transferWithAuthorization(address,address,uint256,uint256,uint256,bytes32,bytes)"),
)[:4]

func encodeTransferWithAuthorizationBytes(auth fevm.Authorization, sig []byte) ([]byte, error) {
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{
		{Type: addressTy}, {Type: addressTy}, {Type: uint256Ty},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: bytes32Ty},
		{Type: bytesTy},
	}
	packed, err := args.Pack(
		common.HexToAddress(auth.From), common.HexToAddress(auth.To), auth.Value,
		auth.ValidAfter, auth.ValidBefore, auth.Nonce,
		sig,
	)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, transferWithAuthorizationBytesSelector...), packed...), nil
}

// EncodeTransferWithAuthorization builds the broadcast calldata for a
// validated payload, choosing the VRS overload for EOA-compact signatures
// and the bytes overload for EIP-1271/ERC-6492 wrapped ones. Callers must
// only invoke this after Verify has succeeded for the same payload.
func EncodeTransferWithAuthorization(payload Payload) ([]byte, error) {
	nonce, err := codec.DecodeNonce(payload.Authorization.Nonce)
	if err != nil {
		return nil, err
	}
	auth := fevm.Authorization{
		From:        payload.Authorization.From,
		To:          payload.Authorization.To,
		Value:       &payload.Authorization.Value.Int,
		ValidAfter:  &payload.Authorization.ValidAfter.Int,
		ValidBefore: &payload.Authorization.ValidBefore.Int,
		Nonce:       nonce,
	}
	sigBytes, err := decodeSignature(payload.Signature)
	if err != nil {
		return nil, err
	}
	if calldata, err := encodeTransferWithAuthorizationVRS(auth, sigBytes); err == nil {
		return calldata, nil
	}
	return encodeTransferWithAuthorizationBytes(auth, sigBytes)
}

func decodeSignature(s string) ([]byte, error) {
	sig, err := codec.DecodeSignatureHex(s)
	if err == nil {
		return sig.Bytes(), nil
	}
	// Not a 65-byte compact signature: pass through raw (ERC-6492/EIP-1271
	// wrapped signatures are longer and carry their own structure). A
	// 65-byte signature that failed decoding (high s, bad v) stays rejected.
	b := common.FromHex(s)
	if len(b) == 0 || len(b) == 65 {
		return nil, err
	}
	return b, nil
}

// Error is the structured validation failure this package returns: the
// classified ErrorKind, the payer if known, and a human-readable detail.
// The facilitator core translates this into a *VerifyError/*SettleError at
// the orchestration boundary.
type Error struct {
	Kind   errkind.Kind
	Payer  string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func verr(kind errkind.Kind, payer, detail string) error {
	return &Error{Kind: kind, Payer: payer, Detail: detail}
}

func transportOrInternal(err error, payer string) error {
	kind := fevm.ClassifyRevert(err.Error())
	return verr(kind, payer, err.Error())
}
