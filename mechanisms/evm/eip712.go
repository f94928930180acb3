// Package evm implements the EVM half of the Authorization Validator:
// EIP-712 domain hashing for EIP-3009 transferWithAuthorization messages,
// and the revert/transport classification table the Chain Provider must
// apply. Grounded on mechanisms/evm/eip712.go in the coinbase/x402 Go SDK
// lineage retrieved in the example pack.
package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain for a transferWithAuthorization message:
// the token's registered name/version, the chain id, and the token
// contract address itself as the verifying contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// Authorization mirrors the wire Authorization (EVM) entity: a signed
// EIP-3009 transfer authorization. Value/ValidAfter/ValidBefore are carried
// as decimal strings at the wire boundary (wireint.Int) and converted to
// *big.Int only here, at the point they're hashed.
type Authorization struct {
	From        string
	To          string
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// transferWithAuthorizationTypes is the literal EIP-712 type definition for
// the message this facilitator validates. It is the only message type this
// facilitator hashes: no other EIP-3009 variant is in scope.
var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// HashAuthorization computes the EIP-712 digest of a TransferWithAuthorization
// message under the given domain: keccak256(0x19 0x01 || domainSeparator ||
// hashStruct(message)). The domain separator used here MUST equal the
// target token's on-chain DOMAIN_SEPARATOR(); the Domain is built from the
// Chain Registry's authoritative {name, version}, never from caller-supplied
// request extras (see the registry's domain-authority design note).
func HashAuthorization(auth Authorization, domain Domain) ([32]byte, error) {
	typedData := apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(domain.ChainID),
			VerifyingContract: common.HexToAddress(domain.VerifyingContract).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        common.HexToAddress(auth.From).Hex(),
			"to":          common.HexToAddress(auth.To).Hex(),
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce[:],
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return [32]byte{}, fmt.Errorf("evm: hashing domain separator: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return [32]byte{}, fmt.Errorf("evm: hashing authorization message: %w", err)
	}

	digest := crypto.Keccak256(
		[]byte{0x19, 0x01},
		domainSeparator,
		messageHash,
	)
	var out [32]byte
	copy(out[:], digest)
	return out, nil
}
