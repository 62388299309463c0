package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is the lifecycle position of an escalation sequence.
type State int

const (
	StateBuilt State = iota
	StateSent
	StateEscalating
	StateConfirmed
	StateReverted
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "Built"
	case StateSent:
		return "Sent"
	case StateEscalating:
		return "Escalating"
	case StateConfirmed:
		return "Confirmed"
	case StateReverted:
		return "Reverted"
	case StateExhausted:
		return "Exhausted"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

var stateTransitions = map[State][]State{
	StateBuilt:      {StateSent, StateFailed},
	StateSent:       {StateEscalating, StateExhausted, StateFailed},
	StateEscalating: {StateEscalating, StateConfirmed, StateReverted, StateExhausted, StateFailed},
}

func (s State) CanTransitionTo(t State) bool {
	allowedTransitions, exists := stateTransitions[s]
	if !exists {
		return false
	}

	for _, allowed := range allowedTransitions {
		if t == allowed {
			return true
		}
	}

	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	_, ok := stateTransitions[s]
	return !ok
}

// Attempt is one entry of the append-only attempt log.
type Attempt struct {
	Round   int // 0 is the initial send
	Fees    FeeQuote
	BaseFee *big.Int // nil for the initial send
	TxHash  common.Hash
	// Skipped is set when the round re-checked a still-pending transaction
	// instead of re-sending it.
	Skipped bool
	Outcome string
	At      time.Time
}

// Result is the outcome of one escalation sequence.
type Result struct {
	Name     string
	State    State
	TxHash   common.Hash // latest submitted hash, or the confirmed hash
	Receipt  *Receipt
	Attempts []Attempt
}

// Sends counts the submissions recorded in the attempt log.
func (r *Result) Sends() int {
	n := 0
	for _, a := range r.Attempts {
		if !a.Skipped && a.TxHash != (common.Hash{}) {
			n++
		}
	}
	return n
}
