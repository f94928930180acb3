// Package x402fac is the Facilitator Core: it orchestrates the
// verify/settle/supported/blacklist pipeline by composing the registry,
// codec, compliance, mechanism, and chain-provider packages. Grounded on
// facilitator.go in the teacher repo, simplified to a single wire version
// (spec.md defines only x402Version 1, not the teacher's V1/V2 duality)
// and to plain network tags (spec.md's Network enum, not CAIP-2).
package x402fac

import (
	"encoding/json"

	"github.com/x402fac/facilitator/wireint"
)

// Network is a plain network tag, e.g. "base", "base-sepolia", "avalanche",
// "solana" -- spec.md's Data Model, not the teacher's CAIP-2 namespacing.
type Network string

// X402Version is the only wire version this facilitator understands.
const X402Version = 1

// PaymentEnvelope is the chain-agnostic envelope carried in the
// paymentPayload field of verify/settle requests.
type PaymentEnvelope struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     Network         `json:"network"`
	Payload     json.RawMessage `json:"payload"`
}

// PaymentRequirements describes what a seller is asking for. Extra is
// advisory only: it is never used to override the registry's EIP-712
// domain (see the registry's domain-authority design note).
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           Network                `json:"network"`
	MaxAmountRequired wireint.Int            `json:"maxAmountRequired"`
	PayTo             string                 `json:"payTo"`
	Asset             string                 `json:"asset"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// VerifyResponse is the wire response of the verify operation.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	Payer         string `json:"payer,omitempty"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the wire response of the settle operation.
type SettleResponse struct {
	Success     bool    `json:"success"`
	Transaction string  `json:"transaction,omitempty"`
	Network     Network `json:"network,omitempty"`
	Payer       string  `json:"payer,omitempty"`
	ErrorReason string  `json:"errorReason,omitempty"`
}

// SupportedKind is one entry of the supported operation's response.
type SupportedKind struct {
	Scheme  string                 `json:"scheme"`
	Network Network                `json:"network"`
	Asset   string                 `json:"asset"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse is the wire response of the supported operation.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// BlacklistResponse is the wire response of the blacklist operation.
type BlacklistResponse struct {
	TotalBlocked    int      `json:"totalBlocked"`
	EVMCount        int      `json:"evmCount"`
	SolanaCount     int      `json:"solanaCount"`
	LoadedAtStartup bool     `json:"loadedAtStartup"`
	Entries         []string `json:"entries"`
}

// State is one point in the per-request state machine (spec.md §4.6).
type State string

const (
	StateDecoded      State = "DECODED"
	StateBlacklisted  State = "BLACKLISTED"
	StateValidated    State = "VALIDATED"
	StateVerified     State = "VERIFIED"
	StateBroadcasting State = "BROADCASTING"
	StateMined        State = "MINED"
	StateSettled      State = "SETTLED"
	StateSettleFailed State = "SETTLE_FAILED"
)
