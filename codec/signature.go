package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// secp256k1Halfn is n/2 for the secp256k1 curve order, the malleability
// threshold: a signature whose s exceeds this is rejected rather than
// normalized, per the spec's invariant that only low-s signatures verify.
var secp256k1Halfn = new(big.Int).Rsh(crypto.S256().Params().N, 1)

// Signature is a decoded, normalized 65-byte compact EVM signature
// (r || s || v) with v in {27, 28}.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// Bytes returns the 65-byte compact r||s||v encoding.
func (sig Signature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[0:32], sig.R[:])
	copy(out[32:64], sig.S[:])
	out[64] = sig.V
	return out
}

// RecoveryBytes returns r||s||(v-27), the form go-ethereum's SigToPub
// expects (recovery id 0/1 rather than the Ethereum-style 27/28 byte).
func (sig Signature) RecoveryBytes() []byte {
	out := sig.Bytes()
	if out[64] >= 27 {
		out[64] -= 27
	}
	return out
}

// DecodeSignatureHex decodes a 65-byte compact hex signature (with or
// without 0x prefix) and rejects malleable (high-s) signatures. v is
// accepted in either 0/1 or 27/28 form and normalized to 27/28.
func DecodeSignatureHex(s string) (Signature, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("codec: signature is not valid hex: %w", err)
	}
	return DecodeSignatureBytes(b)
}

// DecodeSignatureBytes decodes a 65-byte compact signature from raw bytes.
func DecodeSignatureBytes(b []byte) (Signature, error) {
	if len(b) != 65 {
		return Signature{}, fmt.Errorf("codec: signature must be 65 bytes, got %d", len(b))
	}
	var sig Signature
	copy(sig.R[:], b[0:32])
	copy(sig.S[:], b[32:64])
	v := b[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, fmt.Errorf("codec: signature v must be 0/1 or 27/28, got %d", b[64])
	}
	sig.V = v

	if err := rejectMalleable(sig.S); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// DecodeSignatureRSV decodes the {r,s,v} object form (PYUSD-style) where r
// and s are individually hex-encoded 32-byte values and v is a small int.
func DecodeSignatureRSV(r, s string, v int) (Signature, error) {
	rb, err := hex.DecodeString(strings.TrimPrefix(r, "0x"))
	if err != nil || len(rb) != 32 {
		return Signature{}, fmt.Errorf("codec: invalid r component")
	}
	sb, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(sb) != 32 {
		return Signature{}, fmt.Errorf("codec: invalid s component")
	}
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return Signature{}, fmt.Errorf("codec: signature v must be 0/1 or 27/28, got %d", v)
	}
	var sig Signature
	copy(sig.R[:], rb)
	copy(sig.S[:], sb)
	sig.V = byte(v)

	if err := rejectMalleable(sig.S); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

func rejectMalleable(s [32]byte) error {
	sInt := new(big.Int).SetBytes(s[:])
	if sInt.Cmp(secp256k1Halfn) > 0 {
		return fmt.Errorf("codec: signature s is above n/2, malleable")
	}
	return nil
}
