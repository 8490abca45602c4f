package orchestrator

import "fmt"

// State is the lifecycle stage of an operation.
type State uint8

const (
	StateBuilding State = iota
	StateResolving
	StateBinding
	StateSubmitting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateResolving:
		return "resolving"
	case StateBinding:
		return "binding"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// transitions lists the legal successors of every non-terminal state.
// Operations that need no handle resolution go from building straight to
// submitting.
var transitions = map[State][]State{
	StateBuilding:   {StateResolving, StateSubmitting, StateFailed},
	StateResolving:  {StateBinding, StateFailed},
	StateBinding:    {StateSubmitting, StateFailed},
	StateSubmitting: {StateCommitted, StateFailed},
}

// CanTransition reports whether an operation in state s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Kind identifies what an operation does.
type Kind uint8

const (
	KindMint Kind = iota
	KindTransfer
	KindDeposit
	KindWithdraw
	KindInitializeMint
	KindInitializeAccount
	KindInitializeCampaign
)

func (k Kind) String() string {
	switch k {
	case KindMint:
		return "mint"
	case KindTransfer:
		return "transfer"
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindInitializeMint:
		return "initialize-mint"
	case KindInitializeAccount:
		return "initialize-account"
	case KindInitializeCampaign:
		return "initialize-campaign"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// resolves reports whether operations of kind k go through handle
// resolution.
func (k Kind) resolves() bool {
	switch k {
	case KindMint, KindTransfer, KindDeposit, KindWithdraw:
		return true
	}
	return false
}
