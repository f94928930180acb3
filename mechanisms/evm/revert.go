package evm

import (
	"strings"

	"github.com/x402fac/facilitator/errkind"
)

// ClassifyRevert maps a raw revert/RPC-error string to the facilitator's
// ErrorKind taxonomy, per the revert mapping table every chain provider
// must implement (spec §4.4.3). Unrecognized reverts fall through to
// ContractCall(raw), unretryable; transport-shaped errors are the only
// retryable class.
func ClassifyRevert(raw string) errkind.Kind {
	lower := strings.ToLower(raw)

	switch {
	case strings.Contains(lower, "invalid signature"), strings.Contains(lower, "ecrecover"):
		return errkind.InvalidSignature
	case strings.Contains(lower, "authorization is used"), strings.Contains(lower, "used nonce"):
		return errkind.NonceAlreadyUsed
	case strings.Contains(lower, "authorization is not yet valid"):
		return errkind.InvalidTimingNotYet
	case strings.Contains(lower, "authorization is expired"):
		return errkind.InvalidTimingExpired
	case isTransportError(lower):
		return errkind.Transport
	default:
		return errkind.ContractCall
	}
}

func isTransportError(lower string) bool {
	for _, marker := range []string{"timeout", "connection refused", "connection reset", "no such host", "context deadline exceeded", "eof", "broken pipe", "i/o timeout", "transport:"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
