// Package exact implements the Solana Authorization Validator: decoding a
// buyer-signed SPL-token transfer transaction, checking it against
// PaymentRequirements, co-signing it as fee payer, and simulating it.
// Grounded on mechanisms/svm/exact/facilitator/scheme.go in the teacher
// repo (the security check that the transfer authority must never be one
// of the facilitator's own signer addresses, the ATA-derivation check, and
// the simulate-before-verify-returns-true discipline are all carried
// forward verbatim in spirit).
package exact

import (
	"context"
	"fmt"
	"strconv"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/x402fac/facilitator/errkind"
	msolana "github.com/x402fac/facilitator/mechanisms/solana"
)

// Signer is the subset of the Solana Chain Provider this validator needs:
// co-signing as fee payer and dry-run simulation.
type Signer interface {
	FeePayers() []string
	SignAsFeePayer(ctx context.Context, tx *solanago.Transaction, feePayer string) error
	Simulate(ctx context.Context, tx *solanago.Transaction) error
}

// Requirements is the wire shape of PaymentRequirements relevant to this
// scheme.
type Requirements struct {
	Network           string
	Asset             string
	MaxAmountRequired uint64
	PayTo             string
}

// Result mirrors VerificationOutcome for a successful validation.
type Result struct {
	Payer string
	Tx    *solanago.Transaction
}

// Error is the structured validation failure this package returns.
type Error struct {
	Kind   errkind.Kind
	Payer  string
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

func verr(kind errkind.Kind, payer, detail string) error {
	return &Error{Kind: kind, Payer: payer, Detail: detail}
}

// Verify runs the Solana validation procedure from spec.md §4.4.2: decode,
// check instruction shape and economics, confirm the facilitator isn't
// signing away its own funds, co-sign as fee payer, and simulate.
func Verify(ctx context.Context, signer Signer, req Requirements, payload msolana.Payload) (*Result, error) {
	tx, err := msolana.DecodeTransaction(payload.Transaction)
	if err != nil {
		return nil, verr(errkind.InvalidRequest, "", err.Error())
	}

	transfer, err := msolana.InspectTransfer(tx)
	if err != nil {
		return nil, verr(errkind.InvalidRequest, "", err.Error())
	}

	if transfer.Mint != req.Asset {
		return nil, verr(errkind.UnsupportedAsset, transfer.Owner, "transfer mint does not match requirements.asset")
	}
	if transfer.Amount > req.MaxAmountRequired {
		return nil, verr(errkind.AmountMismatch, transfer.Owner, "transfer amount exceeds maxAmountRequired")
	}

	// The transfer authority must never be one of our own fee-payer
	// addresses: otherwise a malicious payload could make the facilitator
	// sign away its own funds instead of the buyer's.
	for _, fp := range signer.FeePayers() {
		if fp == transfer.Owner {
			return nil, verr(errkind.InvalidRequest, transfer.Owner, "transfer authority must not be a facilitator-controlled address")
		}
	}

	expectedATA, err := msolana.ExpectedATA(req.PayTo, req.Asset)
	if err != nil {
		return nil, verr(errkind.InvalidRequest, transfer.Owner, err.Error())
	}
	if transfer.Destination != expectedATA {
		return nil, verr(errkind.RecipientMismatch, transfer.Owner, "destination token account does not match requirements.payTo")
	}

	feePayer := choosePayer(signer.FeePayers(), tx)
	if feePayer == "" {
		return nil, verr(errkind.InternalSignerFailure, transfer.Owner, "no configured fee payer")
	}
	if err := signer.SignAsFeePayer(ctx, tx, feePayer); err != nil {
		return nil, verr(errkind.InternalSignerFailure, transfer.Owner, err.Error())
	}

	if err := signer.Simulate(ctx, tx); err != nil {
		kind := msolana.ClassifySimulationError(err.Error())
		return nil, verr(kind, transfer.Owner, err.Error())
	}

	return &Result{Payer: transfer.Owner, Tx: tx}, nil
}

// choosePayer returns the fee payer the transaction already names as its
// first account key if the facilitator controls it, otherwise the first
// configured fee payer. The buyer-built transaction generally already
// fixes account key #0 to a specific facilitator address chosen via the
// supported operation's extra.feePayer.
func choosePayer(feePayers []string, tx *solanago.Transaction) string {
	if len(feePayers) == 0 {
		return ""
	}
	if len(tx.Message.AccountKeys) > 0 {
		first := tx.Message.AccountKeys[0].String()
		for _, fp := range feePayers {
			if fp == first {
				return fp
			}
		}
	}
	return feePayers[0]
}

// ParseAmount converts a decimal string amount into the smallest-unit
// integer this validator compares against, following the wire format's
// convention of carrying wide integers as decimal strings.
func ParseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
