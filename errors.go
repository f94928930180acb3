package x402fac

import (
	"fmt"

	"github.com/x402fac/facilitator/errkind"
)

// VerifyError represents a payment verification failure. All verification
// failures (classified business outcomes and system errors alike) are
// returned as errors; the facilitator core translates them into a
// VerifyResponse at the API boundary. Grounded on errors.go in the teacher
// repo, with Reason narrowed to the errkind.Kind taxonomy.
type VerifyError struct {
	Kind    errkind.Kind
	Payer   string
	Network Network
	Err     error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verify failed: %s: %s", e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("verify failed: %s", e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

func NewVerifyError(kind errkind.Kind, payer string, network Network, err error) *VerifyError {
	return &VerifyError{Kind: kind, Payer: payer, Network: network, Err: err}
}

// SettleError represents a payment settlement failure. Transaction is set
// once the Chain Provider has accepted the transaction for broadcast, even
// if confirmation or the receipt checks then fail; it is empty when the
// failure came before or during the send itself.
type SettleError struct {
	Kind        errkind.Kind
	Payer       string
	Network     Network
	Transaction string
	Err         error
}

func (e *SettleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("settle failed: %s: %s", e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("settle failed: %s", e.Kind)
}

func (e *SettleError) Unwrap() error { return e.Err }

func NewSettleError(kind errkind.Kind, payer string, network Network, transaction string, err error) *SettleError {
	return &SettleError{Kind: kind, Payer: payer, Network: network, Transaction: transaction, Err: err}
}
