package exact

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402fac/facilitator/errkind"
	msolana "github.com/x402fac/facilitator/mechanisms/solana"
)

type fakeSigner struct {
	feePayers   []string
	signErr     error
	simulateErr error
	signedAs    string
}

func (f *fakeSigner) FeePayers() []string { return f.feePayers }

func (f *fakeSigner) SignAsFeePayer(ctx context.Context, tx *solanago.Transaction, feePayer string) error {
	f.signedAs = feePayer
	return f.signErr
}

func (f *fakeSigner) Simulate(ctx context.Context, tx *solanago.Transaction) error {
	return f.simulateErr
}

type txParams struct {
	amount           uint64
	owner            solanago.PublicKey
	mint             solanago.PublicKey
	destOverride     *solanago.PublicKey
	computeUnitPrice uint64
}

func buildPayload(t *testing.T, p txParams) (msolana.Payload, string, string) {
	t.Helper()
	source, _, err := solanago.FindAssociatedTokenAddress(p.owner, p.mint)
	require.NoError(t, err)

	dest := p.destOverride
	if dest == nil {
		payTo := solanago.NewWallet().PublicKey()
		ata, _, err := solanago.FindAssociatedTokenAddress(payTo, p.mint)
		require.NoError(t, err)
		dest = &ata
	}

	instructions := []solanago.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(8000).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(p.computeUnitPrice).Build(),
		token.NewTransferCheckedInstruction(
			p.amount, 6, source, p.mint, *dest, p.owner, []solanago.PublicKey{},
		).Build(),
	}
	tx, err := solanago.NewTransaction(instructions, solanago.Hash{}, solanago.TransactionPayer(p.owner))
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	b64 := base64.StdEncoding.EncodeToString(raw)

	return msolana.Payload{Transaction: b64}, p.owner.String(), p.mint.String()
}

func TestVerify_HappyPath(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, ownerStr, mintStr := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{feePayers: []string{solanago.NewWallet().PublicKey().String()}}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	result, err := Verify(context.Background(), signer, req, payload)
	require.NoError(t, err)
	assert.Equal(t, ownerStr, result.Payer)
	assert.NotEmpty(t, signer.signedAs)
}

func TestVerify_AssetMismatch(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, _, _ := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{feePayers: []string{solanago.NewWallet().PublicKey().String()}}
	req := Requirements{Network: "solana", Asset: solanago.NewWallet().PublicKey().String(), MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.UnsupportedAsset, err.(*Error).Kind)
}

func TestVerify_AmountExceedsMax(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, _, mintStr := buildPayload(t, txParams{amount: 2_000_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{feePayers: []string{solanago.NewWallet().PublicKey().String()}}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.AmountMismatch, err.(*Error).Kind)
}

func TestVerify_RejectsSelfSigningAsFeePayer(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey() // this will also be a fee payer
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, _, mintStr := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{feePayers: []string{owner.String()}}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.InvalidRequest, err.(*Error).Kind)
}

func TestVerify_RecipientMismatch(t *testing.T) {
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	wrongDest, _, err := solanago.FindAssociatedTokenAddress(solanago.NewWallet().PublicKey(), mint)
	require.NoError(t, err)

	payload, _, mintStr := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &wrongDest})

	payTo := solanago.NewWallet().PublicKey() // different from the wallet wrongDest was derived for
	signer := &fakeSigner{feePayers: []string{solanago.NewWallet().PublicKey().String()}}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.RecipientMismatch, err.(*Error).Kind)
}

func TestVerify_SimulationFailureIsClassified(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, _, mintStr := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{
		feePayers:   []string{solanago.NewWallet().PublicKey().String()},
		simulateErr: errors.New("insufficient funds for rent"),
	}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.InsufficientFunds, err.(*Error).Kind)
}

func TestVerify_NoConfiguredFeePayer(t *testing.T) {
	payTo := solanago.NewWallet().PublicKey()
	mint := solanago.NewWallet().PublicKey()
	owner := solanago.NewWallet().PublicKey()
	dest, _, err := solanago.FindAssociatedTokenAddress(payTo, mint)
	require.NoError(t, err)

	payload, _, mintStr := buildPayload(t, txParams{amount: 500_000, owner: owner, mint: mint, destOverride: &dest})

	signer := &fakeSigner{}
	req := Requirements{Network: "solana", Asset: mintStr, MaxAmountRequired: 1_000_000, PayTo: payTo.String()}

	_, err = Verify(context.Background(), signer, req, payload)
	require.Error(t, err)
	assert.Equal(t, errkind.InternalSignerFailure, err.(*Error).Kind)
}

func TestParseAmount_ValidAndInvalid(t *testing.T) {
	v, err := ParseAmount("1000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000), v)

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)
}
