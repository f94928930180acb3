package x402fac

import "context"

// VerifyContext carries the decoded request into verify hooks, along with
// the request's current point in the spec.md §4.6 state machine.
type VerifyContext struct {
	Ctx          context.Context
	Envelope     PaymentEnvelope
	Requirements PaymentRequirements
	State        State
}

// VerifyResultContext carries a successful verify outcome into after-hooks.
type VerifyResultContext struct {
	VerifyContext
	Result *VerifyResponse
}

// VerifyFailureContext carries a verify failure into failure hooks.
type VerifyFailureContext struct {
	VerifyContext
	Error error
}

// SettleContext carries the decoded request into settle hooks, along with
// the request's current point in the spec.md §4.6 state machine.
type SettleContext struct {
	Ctx          context.Context
	Envelope     PaymentEnvelope
	Requirements PaymentRequirements
	State        State
}

// SettleResultContext carries a successful settle outcome into after-hooks.
// After-hooks run once settlement has already committed on-chain, so they
// can only record what happened, never undo the transfer. The post-hoc
// blacklist screen itself runs inside doSettle, before these hooks.
type SettleResultContext struct {
	SettleContext
	Result *SettleResponse
}

// SettleFailureContext carries a settle failure into failure hooks.
type SettleFailureContext struct {
	SettleContext
	Error error
}

// BeforeHookResult lets a before-hook short-circuit the operation.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// VerifyFailureHookResult lets an on-failure hook recover a failed verify
// into a structured (non-error) outcome.
type VerifyFailureHookResult struct {
	Recovered bool
	Result    *VerifyResponse
}

// SettleFailureHookResult lets an on-failure hook recover a failed settle
// into a structured (non-error) outcome.
type SettleFailureHookResult struct {
	Recovered bool
	Result    *SettleResponse
}

type (
	BeforeVerifyHook    func(VerifyContext) (*BeforeHookResult, error)
	AfterVerifyHook     func(VerifyResultContext) error
	OnVerifyFailureHook func(VerifyFailureContext) (*VerifyFailureHookResult, error)
	BeforeSettleHook    func(SettleContext) (*BeforeHookResult, error)
	AfterSettleHook     func(SettleResultContext) error
	OnSettleFailureHook func(SettleFailureContext) (*SettleFailureHookResult, error)
)
