package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateBuilt, StateSent, true},
		{StateBuilt, StateConfirmed, false},
		{StateSent, StateEscalating, true},
		{StateSent, StateExhausted, true},
		{StateEscalating, StateEscalating, true},
		{StateEscalating, StateConfirmed, true},
		{StateEscalating, StateReverted, true},
		{StateConfirmed, StateEscalating, false},
		{StateExhausted, StateSent, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%v -> %v = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	for _, s := range []State{StateConfirmed, StateReverted, StateExhausted, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
	if StateEscalating.Terminal() {
		t.Errorf("Escalating should not be terminal")
	}
}

func TestPendingTransaction_ApplyFeesCopies(t *testing.T) {
	q := FeeQuote{MaxFeePerGas: big.NewInt(100), MaxPriorityFeePerGas: big.NewInt(10)}
	tx := &PendingTransaction{Nonce: 7}
	tx.ApplyFees(q)

	q.MaxFeePerGas.SetInt64(1)
	if tx.MaxFeePerGas.Int64() != 100 {
		t.Fatalf("fee pair shares storage with the quote")
	}
	if tx.Nonce != 7 {
		t.Errorf("nonce changed")
	}
}

func TestResult_Sends(t *testing.T) {
	r := &Result{Attempts: []Attempt{
		{Round: 0, TxHash: common.HexToHash("0x1")},
		{Round: 1, TxHash: common.HexToHash("0x2")},
		{Round: 2, TxHash: common.HexToHash("0x2"), Skipped: true},
	}}
	if got := r.Sends(); got != 2 {
		t.Errorf("Sends = %d, want 2", got)
	}
}

func TestChainName(t *testing.T) {
	if ChainName(1) != "ethereum" {
		t.Errorf("unexpected name %q", ChainName(1))
	}
	if ChainName(999) != "chain-999" {
		t.Errorf("unexpected fallback %q", ChainName(999))
	}
}
