package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Gwei is 10^9 wei.
const Gwei = 1_000_000_000

// FeeQuote is an EIP-1559 fee pair in wei.
type FeeQuote struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Copy returns a deep copy so callers never share big.Int storage.
func (q FeeQuote) Copy() FeeQuote {
	return FeeQuote{
		MaxFeePerGas:         copyInt(q.MaxFeePerGas),
		MaxPriorityFeePerGas: copyInt(q.MaxPriorityFeePerGas),
	}
}

// PendingTransaction is a dynamic-fee transaction before signing. Everything
// except the fee pair is fixed for the whole escalation sequence.
type PendingTransaction struct {
	From  common.Address
	Nonce uint64
	To    *common.Address // nil for contract creation
	Value *big.Int
	Data  []byte
	Gas   uint64

	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// ApplyFees replaces the fee pair, keeping sender, nonce and payload.
func (tx *PendingTransaction) ApplyFees(q FeeQuote) {
	tx.MaxFeePerGas = copyInt(q.MaxFeePerGas)
	tx.MaxPriorityFeePerGas = copyInt(q.MaxPriorityFeePerGas)
}

// Fees returns the current fee pair.
func (tx *PendingTransaction) Fees() FeeQuote {
	return FeeQuote{
		MaxFeePerGas:         copyInt(tx.MaxFeePerGas),
		MaxPriorityFeePerGas: copyInt(tx.MaxPriorityFeePerGas),
	}
}

// TxLookup is what the node reports for a transaction fetched by hash.
type TxLookup struct {
	Hash common.Hash
	// MaxPriorityFeePerGas is nil for transactions without a tip field.
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	Pending              bool
}

// ReceiptStatus is the decoded execution status of a receipt.
type ReceiptStatus int

const (
	ReceiptStatusUnreadable ReceiptStatus = iota
	ReceiptStatusSuccess
	ReceiptStatusFailure
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptStatusSuccess:
		return "success"
	case ReceiptStatusFailure:
		return "failure"
	default:
		return "unreadable"
	}
}

// Receipt is the subset of a transaction receipt the submitter acts on.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      ReceiptStatus
}

// Header carries the fee-market fields of the latest block.
type Header struct {
	Number  uint64
	BaseFee *big.Int // nil before London
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
