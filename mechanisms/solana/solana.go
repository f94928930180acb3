// Package solana implements the Solana half of the Authorization Validator:
// decoding a signed SPL-token transfer transaction, verifying its
// instruction shape, and classifying simulation failures. Grounded on
// mechanisms/svm/{types.go,utils.go,constants.go} across the example pack
// (the teacher's own top-level mechanisms/svm package was not retrieved,
// so this is sourced from the sibling coinbase/x402 Go SDK fork that
// carries the same function names the teacher's
// mechanisms/svm/exact/facilitator/scheme.go imports).
package solana

import (
	"encoding/base64"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/x402fac/facilitator/errkind"
)

const Scheme = "exact"

// MaxComputeUnitPriceMicrolamports caps the priority fee a buyer-submitted
// transaction may request, matching the teacher's facilitator-side
// validation limit.
const MaxComputeUnitPriceMicrolamports = 5_000_000

// DefaultComputeUnitLimit is the fixed compute-unit budget this facilitator
// assumes for a standard SPL transfer. InspectTransfer does not compare a
// transaction's SetComputeUnitLimit value against it.
const DefaultComputeUnitLimit uint32 = 8000

// Payload is the wire shape of PaymentEnvelope.payload for the Solana
// exact scheme: a single base64-encoded, partially-signed transaction.
type Payload struct {
	Transaction string `json:"transaction"`
}

// DecodeTransaction decodes a base64-encoded wire transaction.
func DecodeTransaction(b64 string) (*solanago.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("solana: invalid base64 transaction: %w", err)
	}
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("solana: invalid transaction encoding: %w", err)
	}
	return tx, nil
}

// TransferDetails is what the validator extracts from the transaction's
// single TransferChecked instruction.
type TransferDetails struct {
	Owner       string // source token account authority (the payer)
	Destination string // destination associated token account
	Mint        string
	Amount      uint64
}

// InspectTransfer walks the decoded transaction's instructions, requiring
// exactly a compute-limit, compute-price, and TransferChecked instruction
// triple (the shape a facilitator-cosigned x402 Solana payment always has),
// and returns the transfer's economic details. Any other instruction shape
// is rejected outright: this facilitator does not execute arbitrary
// instruction lists on the buyer's behalf.
func InspectTransfer(tx *solanago.Transaction) (TransferDetails, error) {
	if tx == nil || len(tx.Message.Instructions) != 3 {
		return TransferDetails{}, fmt.Errorf("solana: expected exactly 3 instructions (compute limit, compute price, transfer), got %d", instructionCount(tx))
	}

	if err := verifyComputeLimit(tx, 0); err != nil {
		return TransferDetails{}, err
	}
	if err := verifyComputePrice(tx, 1); err != nil {
		return TransferDetails{}, err
	}
	return verifyTransfer(tx, 2)
}

func instructionCount(tx *solanago.Transaction) int {
	if tx == nil {
		return 0
	}
	return len(tx.Message.Instructions)
}

func verifyComputeLimit(tx *solanago.Transaction, index int) error {
	inst := tx.Message.Instructions[index]
	programID := tx.Message.AccountKeys[inst.ProgramIDIndex]
	if programID != solanago.ComputeBudget {
		return fmt.Errorf("solana: instruction %d must target the compute budget program", index)
	}
	if len(inst.Data) == 0 || inst.Data[0] != 2 {
		return fmt.Errorf("solana: instruction %d must be SetComputeUnitLimit", index)
	}
	if _, err := computebudget.DecodeInstruction(inst.Data); err != nil {
		return fmt.Errorf("solana: decoding compute unit limit instruction: %w", err)
	}
	return nil
}

func verifyComputePrice(tx *solanago.Transaction, index int) error {
	inst := tx.Message.Instructions[index]
	programID := tx.Message.AccountKeys[inst.ProgramIDIndex]
	if programID != solanago.ComputeBudget {
		return fmt.Errorf("solana: instruction %d must target the compute budget program", index)
	}
	if len(inst.Data) == 0 || inst.Data[0] != 3 {
		return fmt.Errorf("solana: instruction %d must be SetComputeUnitPrice", index)
	}
	decoded, err := computebudget.DecodeInstruction(inst.Data)
	if err != nil {
		return fmt.Errorf("solana: decoding compute unit price instruction: %w", err)
	}
	priceInst, ok := decoded.Impl.(*computebudget.SetComputeUnitPrice)
	if !ok {
		return fmt.Errorf("solana: instruction %d did not decode to SetComputeUnitPrice", index)
	}
	if priceInst.MicroLamports > MaxComputeUnitPriceMicrolamports {
		return fmt.Errorf("solana: requested priority fee %d microlamports exceeds cap", priceInst.MicroLamports)
	}
	return nil
}

func verifyTransfer(tx *solanago.Transaction, index int) (TransferDetails, error) {
	inst := tx.Message.Instructions[index]
	programID := tx.Message.AccountKeys[inst.ProgramIDIndex]
	if programID != solanago.TokenProgramID && programID != solanago.Token2022ProgramID {
		return TransferDetails{}, fmt.Errorf("solana: instruction %d must target the SPL token program", index)
	}
	accounts, err := inst.ResolveInstructionAccounts(&tx.Message)
	if err != nil {
		return TransferDetails{}, fmt.Errorf("solana: resolving transfer instruction accounts: %w", err)
	}
	decoded, err := token.DecodeInstruction(accounts, inst.Data)
	if err != nil {
		return TransferDetails{}, fmt.Errorf("solana: decoding transfer instruction: %w", err)
	}
	transfer, ok := decoded.Impl.(*token.TransferChecked)
	if !ok {
		return TransferDetails{}, fmt.Errorf("solana: instruction %d must be TransferChecked", index)
	}
	if len(accounts) < 4 {
		return TransferDetails{}, fmt.Errorf("solana: transfer instruction has too few accounts")
	}
	if transfer.Amount == nil {
		return TransferDetails{}, fmt.Errorf("solana: transfer instruction missing amount")
	}

	return TransferDetails{
		Owner:       accounts[3].PublicKey.String(), // transfer authority
		Destination: accounts[2].PublicKey.String(), // destination ATA
		Mint:        accounts[1].PublicKey.String(),
		Amount:      *transfer.Amount,
	}, nil
}

// ExpectedATA computes the associated token account that requirements.payTo
// should be receiving funds at, for comparison against the instruction's
// actual destination account.
func ExpectedATA(owner, mint string) (string, error) {
	ownerPk, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		return "", fmt.Errorf("solana: invalid payTo address: %w", err)
	}
	mintPk, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return "", fmt.Errorf("solana: invalid mint address: %w", err)
	}
	ata, _, err := solanago.FindAssociatedTokenAddress(ownerPk, mintPk)
	if err != nil {
		return "", fmt.Errorf("solana: deriving associated token account: %w", err)
	}
	return ata.String(), nil
}

// ClassifySimulationError maps a Solana RPC simulation error string to the
// shared ErrorKind taxonomy, the SVM counterpart of
// mechanisms/evm.ClassifyRevert.
func ClassifySimulationError(raw string) errkind.Kind {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "insufficient funds"), strings.Contains(lower, "insufficient lamports"):
		return errkind.InsufficientFunds
	case strings.Contains(lower, "signature verification failed"):
		return errkind.InvalidSignature
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"), strings.Contains(lower, "context deadline exceeded"), strings.Contains(lower, "transport:"):
		return errkind.Transport
	default:
		return errkind.ContractCall
	}
}
