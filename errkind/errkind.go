// Package errkind defines the exhaustive classification of facilitator
// failures referenced throughout verification and settlement.
package errkind

// Kind is a stable, wire-safe error classification. Implementations SHOULD
// surface these verbatim in invalidReason / errorReason fields rather than
// free-form messages, so callers can branch on them.
type Kind string

const (
	InvalidRequest        Kind = "InvalidRequest"
	UnsupportedScheme     Kind = "UnsupportedScheme"
	UnsupportedAsset      Kind = "UnsupportedAsset"
	InvalidSignature      Kind = "InvalidSignature"
	InvalidTimingNotYet   Kind = "InvalidTiming/NotYetValid"
	InvalidTimingExpired  Kind = "InvalidTiming/Expired"
	NonceAlreadyUsed      Kind = "NonceAlreadyUsed"
	InsufficientFunds     Kind = "InsufficientFunds"
	AmountMismatch        Kind = "AmountMismatch"
	RecipientMismatch     Kind = "RecipientMismatch"
	BlockedAddress        Kind = "BlockedAddress"
	ContractCall          Kind = "ContractCall"
	Transport             Kind = "Transport"
	InternalSignerFailure Kind = "InternalSignerFailure"
)

// Retryable reports whether the chain provider's retry policy applies to
// this class. Only Transport errors are retried; everything else is a
// deterministic outcome that a retry cannot change.
func (k Kind) Retryable() bool {
	return k == Transport
}

// Role identifies which counterparty to a payment tripped a blacklist hit.
type Role string

const (
	RoleSender    Role = "sender"
	RoleRecipient Role = "recipient"
)

// BlockedAddressReason formats the BlockedAddress{role,reason} variant from
// the error taxonomy into the single string the wire format carries in
// invalidReason / errorReason.
func BlockedAddressReason(role Role, reason string) string {
	return string(BlockedAddress) + ": " + string(role) + " (" + reason + ")"
}

// ContractCallReason formats the ContractCall(raw) variant, carrying the
// unclassified revert string through for diagnostics.
func ContractCallReason(raw string) string {
	return string(ContractCall) + ": " + raw
}
