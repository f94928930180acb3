// Package solana is the Solana Chain Provider: holds one or more fee-payer
// keypairs, co-signs buyer-built transactions, and drives RPC
// simulate/send/confirm. Grounded on the FacilitatorSvmSigner interface
// referenced by mechanisms/svm/exact/facilitator/scheme.go in the example
// pack (GetAddresses, SignTransaction, SimulateTransaction, SendTransaction,
// ConfirmTransaction), implemented here directly against solana-go's
// rpc.Client rather than an abstract signer, since this package owns the
// RPC connection the way signers/evm.Provider does for EVM.
package solana

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/x402fac/facilitator/errkind"
)

// MaxConfirmAttempts and ConfirmRetryDelay bound receipt polling, matching
// the teacher's confirmation loop constants.
const (
	MaxConfirmAttempts = 30
	ConfirmRetryDelay  = time.Second
)

// Provider is one Solana network's chain provider: an RPC client and a
// pool of fee-payer keys. Multiple keys let the facilitator load-balance
// and rotate fee payers, matching FacilitatorSvmSigner.GetAddresses.
type Provider struct {
	network string
	client  *rpc.Client
	keys    map[string]solanago.PrivateKey // base58 pubkey -> private key
}

// NewProvider builds a Solana chain provider from a set of fee-payer keys.
func NewProvider(network string, client *rpc.Client, keys []solanago.PrivateKey) *Provider {
	m := make(map[string]solanago.PrivateKey, len(keys))
	for _, k := range keys {
		m[k.PublicKey().String()] = k
	}
	return &Provider{network: network, client: client, keys: m}
}

// FeePayers returns every address this provider can sign as fee payer.
func (p *Provider) FeePayers() []string {
	out := make([]string, 0, len(p.keys))
	for addr := range p.keys {
		out = append(out, addr)
	}
	return out
}

// ChooseFeePayer randomly selects one of this provider's fee payers, the
// way the teacher's GetExtra spreads load across signers for the
// supported operation's extra.feePayer field.
func (p *Provider) ChooseFeePayer() string {
	payers := p.FeePayers()
	if len(payers) == 0 {
		return ""
	}
	return payers[rand.Intn(len(payers))]
}

// SignAsFeePayer adds the named fee payer's signature to tx in place.
func (p *Provider) SignAsFeePayer(ctx context.Context, tx *solanago.Transaction, feePayer string) error {
	key, ok := p.keys[feePayer]
	if !ok {
		return fmt.Errorf("%s: no signer for fee payer %s", errkind.InternalSignerFailure, feePayer)
	}
	_, err := tx.Sign(func(pk solanago.PublicKey) *solanago.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: signing as fee payer: %v", errkind.InternalSignerFailure, err)
	}
	return nil
}

// Simulate dry-runs tx via simulateTransaction, proving it would succeed
// (including the buyer's own signature and balance) before any broadcast.
func (p *Provider) Simulate(ctx context.Context, tx *solanago.Transaction) error {
	result, err := p.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  true,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return classifyTransport(err)
	}
	if result.Value.Err != nil {
		return fmt.Errorf("simulation failed: %v: %s", result.Value.Err, joinLogs(result.Value.Logs))
	}
	return nil
}

// Broadcast submits a fully-signed transaction.
func (p *Provider) Broadcast(ctx context.Context, tx *solanago.Transaction) (string, error) {
	sig, err := p.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", classifyTransport(err)
	}
	return sig.String(), nil
}

// Confirm polls for transaction confirmation, matching the teacher's
// fixed-attempt, fixed-delay confirmation loop.
func (p *Provider) Confirm(ctx context.Context, signature string) error {
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("solana provider: invalid signature %q: %w", signature, err)
	}
	for attempt := 1; attempt <= MaxConfirmAttempts; attempt++ {
		statuses, err := p.client.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) == 1 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed on-chain: %v", st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		slog.Debug("solana provider: awaiting confirmation", "network", p.network, "signature", signature, "attempt", attempt)
		select {
		case <-time.After(ConfirmRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: transaction %s not confirmed after %d attempts", errkind.Transport, signature, MaxConfirmAttempts)
}

func classifyTransport(err error) error {
	return fmt.Errorf("%s: %v", errkind.Transport, err)
}

func joinLogs(logs []string) string {
	out := ""
	for i, l := range logs {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}
