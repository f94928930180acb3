package solana

import (
	"context"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeePayers_ListsAllConfiguredKeys(t *testing.T) {
	k1, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	k2, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	p := NewProvider("solana", nil, []solanago.PrivateKey{k1, k2})
	payers := p.FeePayers()
	assert.Len(t, payers, 2)
	assert.Contains(t, payers, k1.PublicKey().String())
	assert.Contains(t, payers, k2.PublicKey().String())
}

func TestChooseFeePayer_ReturnsAConfiguredPayer(t *testing.T) {
	k1, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	p := NewProvider("solana", nil, []solanago.PrivateKey{k1})
	assert.Equal(t, k1.PublicKey().String(), p.ChooseFeePayer())
}

func TestChooseFeePayer_EmptyPoolReturnsEmptyString(t *testing.T) {
	p := NewProvider("solana", nil, nil)
	assert.Equal(t, "", p.ChooseFeePayer())
}

func TestSignAsFeePayer_AddsSignatureForKnownKey(t *testing.T) {
	feePayer, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	p := NewProvider("solana", nil, []solanago.PrivateKey{feePayer})

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{computebudget.NewSetComputeUnitLimitInstruction(8000).Build()},
		solanago.Hash{},
		solanago.TransactionPayer(feePayer.PublicKey()),
	)
	require.NoError(t, err)

	err = p.SignAsFeePayer(context.Background(), tx, feePayer.PublicKey().String())
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Signatures)
}

func TestSignAsFeePayer_UnknownFeePayerErrors(t *testing.T) {
	p := NewProvider("solana", nil, nil)
	unknown, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{computebudget.NewSetComputeUnitLimitInstruction(8000).Build()},
		solanago.Hash{},
		solanago.TransactionPayer(unknown.PublicKey()),
	)
	require.NoError(t, err)

	err = p.SignAsFeePayer(context.Background(), tx, unknown.PublicKey().String())
	assert.Error(t, err)
}

func TestJoinLogs_JoinsWithSemicolons(t *testing.T) {
	assert.Equal(t, "", joinLogs(nil))
	assert.Equal(t, "a", joinLogs([]string{"a"}))
	assert.Equal(t, "a; b; c", joinLogs([]string{"a", "b", "c"}))
}

func TestClassifyTransport_WrapsWithTransportKind(t *testing.T) {
	err := classifyTransport(assertError{"connection refused"})
	assert.Contains(t, err.Error(), "Transport")
	assert.Contains(t, err.Error(), "connection refused")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
