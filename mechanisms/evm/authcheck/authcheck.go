// Package authcheck implements universal EVM signature verification: EOA
// ECDSA recovery, EIP-1271 smart-contract-wallet validation, and ERC-6492
// counterfactual (undeployed smart wallet) signatures. spec.md §4.4.1 step 5
// describes only "recover the signer" as if the payer is always an EOA;
// this package supplements that with the path a production facilitator
// needs, grounded directly on mechanisms/evm/{verify_eoa,verify_1271,
// erc6492,verify_universal}.go in the coinbase/x402 Go SDK lineage.
package authcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrUndeployedSmartWallet is returned when a counterfactual signature
// arrives without allowUndeployed permission.
var ErrUndeployedSmartWallet = errors.New("authcheck: undeployed smart wallet not allowed")

// eip1271MagicValue is the 4-byte return value isValidSignature(bytes32,
// bytes) must produce on success.
var eip1271MagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// erc6492MagicBytes is the 32-byte suffix marking an ERC-6492 wrapped
// signature: the fixed detection constant 0x6492 repeated 16 times.
var erc6492MagicBytes = common.Hex2Bytes("6492649264926492649264926492649264926492649264926492649264926492")

// ContractReader is the minimal on-chain read surface this package needs
// from a chain provider: bytecode presence (to detect deployment) and a
// generic call (to invoke isValidSignature on a deployed wallet).
type ContractReader interface {
	GetCode(ctx context.Context, address string) ([]byte, error)
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
}

// SignatureData is the parsed result of an (possibly ERC-6492-wrapped)
// signature.
type SignatureData struct {
	Factory         common.Address
	FactoryCalldata []byte
	InnerSignature  []byte
}

// IsWrapped reports whether sig carries the ERC-6492 magic suffix.
func IsWrapped(sig []byte) bool {
	return len(sig) >= 32 && bytes.Equal(sig[len(sig)-32:], erc6492MagicBytes)
}

// Parse unwraps an ERC-6492 signature into its factory deployment data and
// inner signature. Signatures without the magic suffix pass through
// unchanged as InnerSignature.
func Parse(sig []byte) (SignatureData, error) {
	if !IsWrapped(sig) {
		return SignatureData{InnerSignature: sig}, nil
	}
	payload := sig[:len(sig)-32]

	addressTy, _ := abi.NewType("address", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{{Type: addressTy}, {Type: bytesTy}, {Type: bytesTy}}

	unpacked, err := args.Unpack(payload)
	if err != nil {
		return SignatureData{}, fmt.Errorf("authcheck: invalid ERC-6492 payload: %w", err)
	}
	if len(unpacked) != 3 {
		return SignatureData{}, fmt.Errorf("authcheck: ERC-6492 payload has %d fields, want 3", len(unpacked))
	}
	factory, ok := unpacked[0].(common.Address)
	if !ok {
		return SignatureData{}, fmt.Errorf("authcheck: ERC-6492 factory is not an address")
	}
	factoryCalldata, ok := unpacked[1].([]byte)
	if !ok {
		return SignatureData{}, fmt.Errorf("authcheck: ERC-6492 factoryCalldata is not bytes")
	}
	inner, ok := unpacked[2].([]byte)
	if !ok {
		return SignatureData{}, fmt.Errorf("authcheck: ERC-6492 inner signature is not bytes")
	}
	return SignatureData{Factory: factory, FactoryCalldata: factoryCalldata, InnerSignature: inner}, nil
}

// VerifyEOA recovers the signer of a 65-byte compact ECDSA signature over
// hash and compares it against expected.
func VerifyEOA(hash [32]byte, sig []byte, expected common.Address) (bool, error) {
	if len(sig) != 65 {
		return false, fmt.Errorf("authcheck: EOA signature must be 65 bytes, got %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return false, fmt.Errorf("authcheck: signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub) == expected, nil
}

// VerifyEIP1271 calls isValidSignature(bytes32,bytes) on a deployed
// contract wallet and checks for the EIP-1271 magic return value.
func VerifyEIP1271(ctx context.Context, reader ContractReader, wallet string, hash [32]byte, sig []byte) (bool, error) {
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{{Type: bytes32Ty}, {Type: bytesTy}}
	packed, err := args.Pack(hash, sig)
	if err != nil {
		return false, fmt.Errorf("authcheck: packing isValidSignature call: %w", err)
	}
	selector := crypto.Keccak256([]byte("isValidSignature(bytes32,bytes)"))[:4]
	calldata := append(selector, packed...)

	result, err := reader.CallContract(ctx, wallet, calldata)
	if err != nil {
		return false, fmt.Errorf("authcheck: isValidSignature call failed: %w", err)
	}
	if len(result) < 4 {
		return false, nil
	}
	return bytes.Equal(result[:4], eip1271MagicValue[:]), nil
}

// Verify is the universal entry point: it tries the fast EOA path first,
// then falls back to on-chain deployment checks and EIP-1271 / ERC-6492
// handling, matching mechanisms/evm/verify_universal.go's decision tree.
//
//   - a 65-byte inner signature with a zero factory is first tried as an EOA
//     signature; if it recovers to the signer it is accepted directly
//     (skips the GetCode round trip)
//   - otherwise the wallet's bytecode is inspected: if deployed, EIP-1271
//     is used; if undeployed with ERC-6492 deployment data, the signature
//     is accepted only when allowUndeployed is set (actual deployment is
//     deferred to settlement); if undeployed with no deployment data, it
//     falls back to EOA verification
func Verify(ctx context.Context, reader ContractReader, signer string, hash [32]byte, sig []byte, allowUndeployed bool) (bool, SignatureData, error) {
	data, err := Parse(sig)
	if err != nil {
		return false, SignatureData{}, err
	}

	zeroFactory := common.Address{}
	if len(data.InnerSignature) == 65 && data.Factory == zeroFactory {
		if ok, err := VerifyEOA(hash, data.InnerSignature, common.HexToAddress(signer)); err == nil && ok {
			return true, data, nil
		}
	}

	code, err := reader.GetCode(ctx, signer)
	if err != nil {
		return false, SignatureData{}, fmt.Errorf("authcheck: reading signer bytecode: %w", err)
	}

	if len(code) == 0 {
		hasDeploymentInfo := data.Factory != zeroFactory && len(data.FactoryCalldata) > 0
		if hasDeploymentInfo {
			if !allowUndeployed {
				return false, SignatureData{}, ErrUndeployedSmartWallet
			}
			return true, data, nil
		}
		ok, err := VerifyEOA(hash, data.InnerSignature, common.HexToAddress(signer))
		return ok, data, err
	}

	ok, err := VerifyEIP1271(ctx, reader, signer, hash, data.InnerSignature)
	return ok, data, err
}
