// Package txerr defines the closed set of failure categories surfaced by the
// fee estimator, the backoff retrier callers and the escalation submitter.
package txerr

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies a failure category. The set is closed: callers can switch
// over every value below.
type Kind int

const (
	KindUnknown Kind = iota

	// KindTransientRPCFailure is a read call that still failed after the retrier gave up.
	KindTransientRPCFailure
	// KindSubmissionFailure is a failed initial send or re-submission. Never retried.
	KindSubmissionFailure
	// KindNotFoundAfterAccept is an accepted transaction the node cannot return by hash.
	KindNotFoundAfterAccept
	// KindEscalationExhausted means no receipt was seen within the configured rounds.
	// The transaction may still confirm later.
	KindEscalationExhausted
	// KindReverted is a receipt with a non-success status.
	KindReverted
	// KindMissingChainField is a block without a fee-market field.
	KindMissingChainField
	// KindIndeterminateReceipt is a receipt whose status cannot be read.
	KindIndeterminateReceipt
	// KindSequenceInProgress means another sequence owns the same sender and nonce.
	KindSequenceInProgress
)

func (k Kind) String() string {
	switch k {
	case KindTransientRPCFailure:
		return "TransientRPCFailure"
	case KindSubmissionFailure:
		return "SubmissionFailure"
	case KindNotFoundAfterAccept:
		return "NotFoundAfterAccept"
	case KindEscalationExhausted:
		return "EscalationExhausted"
	case KindReverted:
		return "Reverted"
	case KindMissingChainField:
		return "MissingChainField"
	case KindIndeterminateReceipt:
		return "IndeterminateReceipt"
	case KindSequenceInProgress:
		return "SequenceInProgress"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error carries a Kind plus the diagnostics attached at the point of failure.
type Error struct {
	Kind   Kind
	Name   string      // caller-supplied transaction name, may be empty
	Op     string      // RPC method or step that failed, may be empty
	TxHash common.Hash // zero when no hash is known
	Err    error       // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg += " [" + e.Name + "]"
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.TxHash != (common.Hash{}) {
		msg += " tx " + e.TxHash.Hex()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// WithName returns err with the transaction name attached when err is an *Error
// that has none yet. Other errors are returned untouched.
func WithName(err error, name string) error {
	var e *Error
	if name == "" || !errors.As(err, &e) || e.Name != "" {
		return err
	}
	cp := *e
	cp.Name = name
	return &cp
}

func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransientRPCFailure, Op: op, Err: err}
}

func Submission(name string, err error) *Error {
	return &Error{Kind: KindSubmissionFailure, Name: name, Op: "send", Err: err}
}

func NotFoundAfterAccept(name string, hash common.Hash) *Error {
	return &Error{Kind: KindNotFoundAfterAccept, Name: name, TxHash: hash}
}

func Exhausted(name string, hash common.Hash, rounds int) *Error {
	return &Error{
		Kind:   KindEscalationExhausted,
		Name:   name,
		TxHash: hash,
		Err:    fmt.Errorf("no receipt after %d escalation rounds", rounds),
	}
}

func Reverted(name string, hash common.Hash) *Error {
	return &Error{Kind: KindReverted, Name: name, TxHash: hash, Err: errors.New("receipt status is failure")}
}

func MissingChainField(field string) *Error {
	return &Error{Kind: KindMissingChainField, Op: field, Err: errors.New("field absent from latest block")}
}

func IndeterminateReceipt(name string, hash common.Hash) *Error {
	return &Error{Kind: KindIndeterminateReceipt, Name: name, TxHash: hash, Err: errors.New("receipt has no status field")}
}

func SequenceInProgress(key string, err error) *Error {
	return &Error{Kind: KindSequenceInProgress, Op: key, Err: err}
}
