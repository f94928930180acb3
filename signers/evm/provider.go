// Package evm is the EVM Chain Provider: one instance per configured EVM
// network, wrapping an RPC client and a signing key. It holds signer key
// material, serializes broadcasts per-signer behind a nonce mutex, and
// applies the EIP-1559 gas policy and retry/receipt-polling rules from
// spec.md §4.5. Grounded on the FacilitatorEvmSigner surface referenced by
// mechanisms/evm/exact/facilitator/scheme.go in the example pack (GetBalance,
// ReadContract, WriteContract, SendTransaction, WaitForTransactionReceipt,
// GetChainID, GetCode), implemented here directly against go-ethereum's
// ethclient rather than an abstract signer, since this package owns the
// RPC connection.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/x402fac/facilitator/errkind"
	fevm "github.com/x402fac/facilitator/mechanisms/evm"
)

// GasPolicy configures the EIP-1559 fee computation: a multiplier applied
// to the latest base fee, plus a floor tip, both capped.
type GasPolicy struct {
	BaseFeeMultiplier float64
	TipFloor          *big.Int
	TipCap            *big.Int
	FeeCap            *big.Int
}

func DefaultGasPolicy() GasPolicy {
	return GasPolicy{
		BaseFeeMultiplier: 1.2,
		TipFloor:          big.NewInt(1_000_000_000),   // 1 gwei
		TipCap:            big.NewInt(5_000_000_000),   // 5 gwei
		FeeCap:            big.NewInt(100_000_000_000), // 100 gwei
	}
}

// RetryPolicy bounds the Chain Provider's retry behavior for transport-class
// failures, per spec §4.5/§7: only idempotent reads and simulations are
// retried, with exponential backoff, up to Attempts tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}
}

// Provider is one EVM network's chain provider: an ethclient connection, a
// private key, and the nonce/gas/retry machinery required to broadcast
// EIP-3009 settlements safely under concurrent load.
type Provider struct {
	network string
	chainID *big.Int
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address

	gas   GasPolicy
	retry RetryPolicy

	limiter *rate.Limiter

	nonceMu sync.Mutex // serializes broadcasts per-signer, per spec §4.5
	nonceSF singleflight.Group
}

// NewProvider wraps an already-constructed client and derives the signer's
// address from key. The chain id is taken from the caller rather than
// fetched from the node, so providers can be constructed before any
// network call is safe to make (tests, dry configs).
func NewProvider(network string, chainID int64, client *ethclient.Client, key *ecdsa.PrivateKey, gas GasPolicy, retry RetryPolicy) *Provider {
	return &Provider{
		network: network,
		chainID: big.NewInt(chainID),
		client:  client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		gas:     gas,
		retry:   retry,
		limiter: rate.NewLimiter(rate.Limit(20), 20), // per-network RPC budget
	}
}

// Address returns the facilitator's signing address on this network.
func (p *Provider) Address() common.Address { return p.address }

// withRetry retries fn on transport-class errors, up to the configured
// attempt count, with exponential backoff. ContractCall-classified errors
// (deterministic reverts) are never retried.
func (p *Provider) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := p.retry.Backoff
	for attempt := 1; attempt <= p.retry.Attempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if fevm.ClassifyRevert(lastErr.Error()) != errkind.Transport {
			return lastErr
		}
		slog.Warn("evm provider: transport error, retrying", "network", p.network, "op", op, "attempt", attempt, "error", lastErr)
		if attempt == p.retry.Attempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}

// GetBalance reads the ERC-20 balanceOf(owner) on token.
func (p *Provider) GetBalance(ctx context.Context, owner, token string) (*big.Int, error) {
	var out *big.Int
	err := p.withRetry(ctx, "balanceOf", func() error {
		data, err := balanceOfCalldata(owner)
		if err != nil {
			return err
		}
		result, err := p.client.CallContract(ctx, ethereum.CallMsg{To: addrPtr(token), Data: data}, nil)
		if err != nil {
			return err
		}
		out = new(big.Int).SetBytes(result)
		return nil
	})
	return out, err
}

// GetCode returns the deployed bytecode at address, empty for EOAs.
func (p *Provider) GetCode(ctx context.Context, address string) ([]byte, error) {
	var out []byte
	err := p.withRetry(ctx, "getCode", func() error {
		code, err := p.client.CodeAt(ctx, common.HexToAddress(address), nil)
		if err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// CallContract performs a generic eth_call; used by authcheck for
// isValidSignature and by the validator for authorizationState reads.
func (p *Provider) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	var out []byte
	err := p.withRetry(ctx, "call", func() error {
		result, err := p.client.CallContract(ctx, ethereum.CallMsg{To: addrPtr(to), Data: data}, nil)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	return out, err
}

// SimulateCall is a dry-run of a state-changing call from the facilitator's
// own signing address, used to detect reverts (insufficient funds, used
// nonce, timing) before broadcasting.
func (p *Provider) SimulateCall(ctx context.Context, to string, data []byte) error {
	return p.withRetry(ctx, "simulate", func() error {
		_, err := p.client.CallContract(ctx, ethereum.CallMsg{
			From: p.address,
			To:   addrPtr(to),
			Data: data,
		}, nil)
		return err
	})
}

// pendingNonce fetches the signer's pending-tag nonce, collapsing
// concurrent callers into a single RPC round trip via singleflight. This
// runs inside the nonce mutex's critical section, so the collapsed call
// always observes the same on-chain state concurrent callers would.
func (p *Provider) pendingNonce(ctx context.Context) (uint64, error) {
	v, err, _ := p.nonceSF.Do("pending-nonce", func() (interface{}, error) {
		return p.client.PendingNonceAt(ctx, p.address)
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// SignAndBroadcast serializes nonce assignment per-signer (the only
// sequential bottleneck per §4.5/§9), builds an EIP-1559 transaction to
// `to` carrying `data`, signs it, and submits it. A send rejected as
// "replacement transaction underpriced" is re-signed once with doubled
// tip and fee cap and sent again; any other send failure is returned
// without retry.
func (p *Provider) SignAndBroadcast(ctx context.Context, to string, data []byte) (string, error) {
	p.nonceMu.Lock()
	defer p.nonceMu.Unlock()

	nonce, err := p.pendingNonce(ctx)
	if err != nil {
		return "", fmt.Errorf("evm provider: fetching pending nonce: %w", err)
	}

	tip, feeCap, err := p.suggestFees(ctx)
	if err != nil {
		return "", fmt.Errorf("evm provider: computing gas fees: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   p.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       200_000,
		To:        addrPtr(to),
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return "", fmt.Errorf("%s: signing transaction: %v", errkind.InternalSignerFailure, err)
	}

	sendErr := p.client.SendTransaction(ctx, signed)
	if sendErr != nil && strings.Contains(strings.ToLower(sendErr.Error()), "replacement transaction underpriced") {
		slog.Warn("evm provider: underpriced replacement, bumping tip and retrying send once", "network", p.network)
		tip = new(big.Int).Mul(tip, big.NewInt(2))
		feeCap = new(big.Int).Mul(feeCap, big.NewInt(2))
		bumped := types.NewTx(&types.DynamicFeeTx{
			ChainID: p.chainID, Nonce: nonce, GasTipCap: tip, GasFeeCap: feeCap, Gas: 200_000, To: addrPtr(to), Data: data,
		})
		signed, err = types.SignTx(bumped, types.LatestSignerForChainID(p.chainID), p.key)
		if err != nil {
			return "", fmt.Errorf("%s: re-signing bumped transaction: %v", errkind.InternalSignerFailure, err)
		}
		sendErr = p.client.SendTransaction(ctx, signed)
	}
	if sendErr != nil {
		return "", sendErr
	}
	return signed.Hash().Hex(), nil
}

// suggestFees implements the EIP-1559 gas policy: baseFee * multiplier,
// plus a floor tip, both capped by configuration.
func (p *Provider) suggestFees(ctx context.Context) (tip, feeCap *big.Int, err error) {
	head, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	suggestedTip, err := p.client.SuggestGasTipCap(ctx)
	if err != nil || suggestedTip == nil {
		suggestedTip = p.gas.TipFloor
	}
	tip = suggestedTip
	if tip.Cmp(p.gas.TipFloor) < 0 {
		tip = p.gas.TipFloor
	}
	if tip.Cmp(p.gas.TipCap) > 0 {
		tip = p.gas.TipCap
	}

	adjustedBase := new(big.Int).Mul(baseFee, big.NewInt(int64(p.gas.BaseFeeMultiplier*100)))
	adjustedBase.Div(adjustedBase, big.NewInt(100))
	feeCap = new(big.Int).Add(adjustedBase, tip)
	if feeCap.Cmp(p.gas.FeeCap) > 0 {
		feeCap = p.gas.FeeCap
	}
	return tip, feeCap, nil
}

// Receipt is the outcome of polling for a broadcast transaction's receipt.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	Logs        []types.Log
}

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)"), the
// indexed event signature every standard ERC-20 (including EIP-3009 tokens)
// emits on a successful transfer.
var erc20TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// VerifyTransferLog reports whether logs contains an ERC-20 Transfer event
// from token matching (from,to,value) exactly. Transaction status alone
// does not prove the expected transfer occurred -- a successful transaction
// can still fail to move the expected funds if the contract swallows the
// transfer or routes it elsewhere, so settlement must also check the log.
func VerifyTransferLog(logs []types.Log, token, from, to common.Address, value *big.Int) bool {
	for _, l := range logs {
		if l.Address != token || len(l.Topics) != 3 || l.Topics[0] != erc20TransferTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != from {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) != to {
			continue
		}
		if new(big.Int).SetBytes(l.Data).Cmp(value) != 0 {
			continue
		}
		return true
	}
	return false
}

// WaitForReceipt polls every second, up to timeout, and returns the first
// receipt found with its status and logs; it does not judge success. The
// caller (settleEVM) checks the status and verifies a matching Transfer
// log before treating a mined transaction as settled.
func (p *Provider) WaitForReceipt(ctx context.Context, txHash string, timeout time.Duration) (*Receipt, error) {
	deadline := time.Now().Add(timeout)
	hash := common.HexToHash(txHash)
	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return &Receipt{Status: receipt.Status, BlockNumber: receipt.BlockNumber.Uint64(), Logs: logsOf(receipt)}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: no receipt for %s after %s", errkind.Transport, txHash, timeout)
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func logsOf(r *types.Receipt) []types.Log {
	out := make([]types.Log, len(r.Logs))
	for i, l := range r.Logs {
		out[i] = *l
	}
	return out
}

func addrPtr(s string) *common.Address {
	a := common.HexToAddress(s)
	return &a
}

func balanceOfCalldata(owner string) ([]byte, error) {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{{Type: addressTy}}
	packed, err := args.Pack(common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	selector := crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	return append(selector, packed...), nil
}
