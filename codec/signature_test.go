package codec

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLowSHex() string {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32) // well below n/2
	return "0x" + r + s + "1c"    // v=28
}

func TestDecodeSignatureHex_RoundTrip(t *testing.T) {
	sig, err := DecodeSignatureHex(validLowSHex())
	require.NoError(t, err)
	assert.Equal(t, byte(28), sig.V)
	assert.Equal(t, 65, len(sig.Bytes()))
}

func TestDecodeSignatureBytes_NormalizesVFrom01To2728(t *testing.T) {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32)
	b, err := hex.DecodeString(r + s + "00")
	require.NoError(t, err)
	sig, err := DecodeSignatureBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(27), sig.V)
}

func TestDecodeSignatureBytes_RejectsWrongLength(t *testing.T) {
	_, err := DecodeSignatureBytes(make([]byte, 64))
	assert.Error(t, err)
}

func TestDecodeSignatureBytes_RejectsInvalidV(t *testing.T) {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32)
	b, err := hex.DecodeString(r + s + "05")
	require.NoError(t, err)
	_, err = DecodeSignatureBytes(b)
	assert.Error(t, err)
}

func TestDecodeSignatureBytes_RejectsHighSMalleableSignature(t *testing.T) {
	// s = n - 1, comfortably above n/2.
	highS := new(big.Int).Sub(crypto.S256().Params().N, big.NewInt(1))
	sBytes := make([]byte, 32)
	highS.FillBytes(sBytes)

	r := strings.Repeat("11", 32)
	b, err := hex.DecodeString(r + hex.EncodeToString(sBytes) + "1c")
	require.NoError(t, err)

	_, err = DecodeSignatureBytes(b)
	assert.Error(t, err, "high-s signature must be rejected as malleable")
}

func TestRecoveryBytes_SubtractsEthereumOffset(t *testing.T) {
	sig, err := DecodeSignatureHex(validLowSHex())
	require.NoError(t, err)
	rec := sig.RecoveryBytes()
	assert.Equal(t, byte(1), rec[64]) // 28 - 27
}

func TestDecodeSignatureRSV_AcceptsSeparateComponents(t *testing.T) {
	r := "0x" + strings.Repeat("11", 32)
	s := "0x" + strings.Repeat("22", 32)
	sig, err := DecodeSignatureRSV(r, s, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(27), sig.V)
}

func TestDecodeSignatureRSV_RejectsBadComponentLength(t *testing.T) {
	_, err := DecodeSignatureRSV("0x1234", "0x"+strings.Repeat("22", 32), 0)
	assert.Error(t, err)
}
