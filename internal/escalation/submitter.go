// Package escalation submits EIP-1559 transactions and re-submits them with a
// rising fee until a receipt appears or the attempt budget is spent.
//
// A sequence runs strictly sequentially: every round finishes its send and
// wait before the next one starts. Reads go through the backoff retrier, sends
// never do.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/txerr"
	"github.com/vietddude/escalator/internal/fee"
	"github.com/vietddude/escalator/internal/infra/rpc/routing"
	"github.com/vietddude/escalator/internal/metrics"
)

// Client is the chain capability the submitter needs. Absent transactions,
// receipts and headers are reported as nil with a nil error.
type Client interface {
	fee.Source

	// Send signs and broadcasts tx. It is not idempotent.
	Send(ctx context.Context, tx *domain.PendingTransaction) (common.Hash, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*domain.TxLookup, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error)
}

// Locker guards a (sender, nonce) pair so only one sequence escalates it.
// AcquireLock returns a token unique to the acquisition; RefreshLock and
// ReleaseLock act only on the lock taken with that token. RefreshLock reports
// false once the lock has expired or passed to another acquisition.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Config holds the escalation parameters.
type Config struct {
	MaxAttempts        int
	WaitWindow         time.Duration
	BumpPercent        uint64
	DefaultPriorityFee *big.Int

	// SkipResubmitWhilePending re-checks instead of re-sending while the node
	// still reports the last hash as pending and its fee cap covers the
	// current base fee plus its tip. An underpriced pending transaction is
	// bumped as usual. A skipped round still counts.
	SkipResubmitWhilePending bool

	// LockTTL must outlast one round, including the wait window.
	LockTTL time.Duration
	Retry   routing.BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:        3,
		WaitWindow:         60 * time.Second,
		BumpPercent:        10,
		DefaultPriorityFee: big.NewInt(2 * domain.Gwei),
		LockTTL:            5 * time.Minute,
		Retry:              routing.DefaultBackoffConfig,
	}
}

// Submitter runs escalation sequences. It holds no per-sequence state and is
// safe for concurrent use on different transactions.
type Submitter struct {
	client    Client
	estimator *fee.Estimator
	cfg       Config
	locker    Locker
	sleep     routing.SleepFunc
}

type Option func(*Submitter)

// WithLocker enables the per (sender, nonce) guard.
func WithLocker(l Locker) Option {
	return func(s *Submitter) { s.locker = l }
}

// WithSleep replaces the wait-window sleep.
func WithSleep(sleep routing.SleepFunc) Option {
	return func(s *Submitter) { s.sleep = sleep }
}

func New(client Client, cfg Config, opts ...Option) *Submitter {
	if cfg.DefaultPriorityFee == nil {
		cfg.DefaultPriorityFee = big.NewInt(2 * domain.Gwei)
	}
	s := &Submitter{
		client:    client,
		estimator: fee.NewEstimator(client, cfg.Retry),
		cfg:       cfg,
		sleep:     routing.SleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Estimator exposes the fee estimator bound to the submitter's client.
func (s *Submitter) Estimator() *fee.Estimator {
	return s.estimator
}

// Submit prices tx with the node's recommended fees, sends it once and then
// escalates it. The returned Result is never nil and carries the attempt log
// for every outcome. A nil error means Confirmed.
func (s *Submitter) Submit(ctx context.Context, tx *domain.PendingTransaction, name string) (*domain.Result, error) {
	seq := newSequence(s, tx, name)

	release, err := seq.lock(ctx)
	if err != nil {
		return seq.fail(err)
	}
	defer release()

	quote, err := s.estimator.EstimateFees(ctx)
	if err != nil {
		return seq.fail(txerr.WithName(err, name))
	}
	tx.ApplyFees(quote)

	hash, err := s.client.Send(ctx, tx)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("initial", "error").Inc()
		seq.record(domain.Attempt{Fees: quote, Outcome: "send_failed"})
		return seq.fail(txerr.Submission(name, err))
	}
	metrics.SubmissionsTotal.WithLabelValues("initial", "ok").Inc()

	seq.record(domain.Attempt{Fees: quote, TxHash: hash, Outcome: "sent"})
	seq.transition(domain.StateSent)
	seq.res.TxHash = hash
	seq.log.Info("Transaction sent",
		"hash", hash.Hex(),
		"nonce", tx.Nonce,
		"max_fee", quote.MaxFeePerGas,
		"tip", quote.MaxPriorityFeePerGas,
	)

	return seq.escalate(ctx, hash)
}

// Escalate runs the escalation rounds for a transaction that has already been
// accepted by the node under hash. tx must carry the nonce and payload of that
// transaction; only its fee pair is changed.
func (s *Submitter) Escalate(ctx context.Context, tx *domain.PendingTransaction, hash common.Hash, name string) (*domain.Result, error) {
	seq := newSequence(s, tx, name)
	seq.res.State = domain.StateSent
	seq.res.TxHash = hash

	release, err := seq.lock(ctx)
	if err != nil {
		return seq.fail(err)
	}
	defer release()

	return seq.escalate(ctx, hash)
}

// sequence is the state of one escalation run. It is owned by a single
// goroutine for its whole lifetime.
type sequence struct {
	*Submitter
	tx        *domain.PendingTransaction
	name      string
	lockKey   string
	lockToken string
	res     *domain.Result
	log     *slog.Logger
}

func newSequence(s *Submitter, tx *domain.PendingTransaction, name string) *sequence {
	id := uuid.NewString()
	return &sequence{
		Submitter: s,
		tx:        tx,
		name:      name,
		lockKey:   fmt.Sprintf("escalation:%s:%d", tx.From.Hex(), tx.Nonce),
		res:       &domain.Result{Name: name, State: domain.StateBuilt},
		log: slog.Default().With(
			"component", "escalation",
			"sequence", id,
			"name", name,
		),
	}
}

func (q *sequence) escalate(ctx context.Context, hash common.Hash) (*domain.Result, error) {
	lookup, err := q.lookup(ctx, hash)
	if err != nil {
		return q.fail(err)
	}
	if lookup == nil {
		return q.fail(txerr.NotFoundAfterAccept(q.name, hash))
	}

	prev := domain.FeeQuote{
		MaxFeePerGas:         lookup.MaxFeePerGas,
		MaxPriorityFeePerGas: lookup.MaxPriorityFeePerGas,
	}
	if prev.MaxFeePerGas == nil {
		prev.MaxFeePerGas = q.tx.MaxFeePerGas
	}

	for round := 1; round <= q.cfg.MaxAttempts; round++ {
		q.transition(domain.StateEscalating)
		if err := q.refreshLock(ctx); err != nil {
			return q.fail(err)
		}

		attempt := domain.Attempt{Round: round}

		if q.cfg.SkipResubmitWhilePending && round > 1 {
			lookup, err = q.lookup(ctx, hash)
			if err != nil {
				return q.fail(err)
			}
		}

		baseFee, err := q.estimator.BaseFee(ctx)
		if err != nil {
			return q.fail(txerr.WithName(err, q.name))
		}
		attempt.BaseFee = baseFee

		if q.cfg.SkipResubmitWhilePending && coversBaseFee(lookup, baseFee) {
			attempt.Skipped = true
			attempt.TxHash = hash
			attempt.Fees = prev
			q.log.Info("Transaction pending at a competitive fee, skipping re-submission",
				"round", round,
				"hash", hash.Hex(),
				"base_fee", baseFee,
				"max_fee", lookup.MaxFeePerGas,
			)
		} else {
			next := fee.Bump(prev, baseFee, q.cfg.BumpPercent, q.cfg.DefaultPriorityFee)
			q.tx.ApplyFees(next)
			attempt.Fees = next

			h, err := q.client.Send(ctx, q.tx)
			if err != nil {
				metrics.SubmissionsTotal.WithLabelValues("resubmit", "error").Inc()
				attempt.Outcome = "send_failed"
				q.record(attempt)
				return q.fail(txerr.Submission(q.name, err))
			}
			metrics.SubmissionsTotal.WithLabelValues("resubmit", "ok").Inc()

			hash = h
			prev = next
			attempt.TxHash = h
			q.res.TxHash = h
			q.log.Info("Transaction re-submitted",
				"round", round,
				"hash", h.Hex(),
				"base_fee", baseFee,
				"max_fee", next.MaxFeePerGas,
				"tip", next.MaxPriorityFeePerGas,
			)
		}

		if err := q.sleep(ctx, q.cfg.WaitWindow); err != nil {
			q.record(attempt)
			return q.fail(err)
		}

		receipt, err := routing.WithBackoff(ctx, q.retry("eth_getTransactionReceipt"), func(ctx context.Context) (*domain.Receipt, error) {
			return q.client.TransactionReceipt(ctx, hash)
		})
		if err != nil {
			attempt.Outcome = "lookup_failed"
			q.record(attempt)
			return q.fail(q.transient("eth_getTransactionReceipt", hash, err))
		}

		if receipt == nil {
			attempt.Outcome = "absent"
			q.record(attempt)
			q.log.Debug("No receipt yet", "round", round, "hash", hash.Hex())
			continue
		}

		attempt.Outcome = receipt.Status.String()
		q.record(attempt)

		minedHash := receipt.TxHash
		if minedHash == (common.Hash{}) {
			minedHash = hash
		}
		q.res.TxHash = minedHash
		q.res.Receipt = receipt

		switch receipt.Status {
		case domain.ReceiptStatusSuccess:
			q.transition(domain.StateConfirmed)
			q.finish(round)
			q.log.Info("Transaction confirmed", "hash", minedHash.Hex(), "block", receipt.BlockNumber, "rounds", round)
			return q.res, nil
		case domain.ReceiptStatusFailure:
			q.transition(domain.StateReverted)
			q.finish(round)
			q.log.Warn("Transaction reverted", "hash", minedHash.Hex(), "block", receipt.BlockNumber)
			return q.res, txerr.Reverted(q.name, minedHash)
		default:
			return q.fail(txerr.IndeterminateReceipt(q.name, minedHash))
		}
	}

	q.transition(domain.StateExhausted)
	q.finish(q.cfg.MaxAttempts)
	q.log.Warn("Escalation exhausted", "hash", hash.Hex(), "rounds", q.cfg.MaxAttempts)
	return q.res, txerr.Exhausted(q.name, hash, q.cfg.MaxAttempts)
}

func (q *sequence) lookup(ctx context.Context, hash common.Hash) (*domain.TxLookup, error) {
	lookup, err := routing.WithBackoff(ctx, q.retry("eth_getTransactionByHash"), func(ctx context.Context) (*domain.TxLookup, error) {
		return q.client.TransactionByHash(ctx, hash)
	})
	if err != nil {
		return nil, q.transient("eth_getTransactionByHash", hash, err)
	}
	return lookup, nil
}

// coversBaseFee reports whether a pending transaction can still be included
// at baseFee: its fee cap pays baseFee plus its full tip.
func coversBaseFee(l *domain.TxLookup, baseFee *big.Int) bool {
	if l == nil || !l.Pending || l.MaxFeePerGas == nil {
		return false
	}
	need := new(big.Int).Set(baseFee)
	if l.MaxPriorityFeePerGas != nil {
		need.Add(need, l.MaxPriorityFeePerGas)
	}
	return l.MaxFeePerGas.Cmp(need) >= 0
}

func (q *sequence) retry(method string) routing.BackoffConfig {
	return routing.Observed(q.cfg.Retry, "escalation", method)
}

func (q *sequence) transient(method string, hash common.Hash, err error) error {
	e := txerr.Transient(method, err)
	e.Name = q.name
	e.TxHash = hash
	return e
}

func (q *sequence) record(a domain.Attempt) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	q.res.Attempts = append(q.res.Attempts, a)
}

func (q *sequence) transition(to domain.State) {
	if !q.res.State.CanTransitionTo(to) {
		q.log.Error("Invalid state transition", "from", q.res.State, "to", to)
	}
	q.res.State = to
}

func (q *sequence) fail(err error) (*domain.Result, error) {
	if !q.res.State.Terminal() {
		q.res.State = domain.StateFailed
	}
	q.finish(q.rounds())
	q.log.Error("Escalation failed", "state", q.res.State, "error", err)
	return q.res, err
}

func (q *sequence) finish(rounds int) {
	metrics.OutcomesTotal.WithLabelValues(q.res.State.String()).Inc()
	metrics.EscalationRounds.Observe(float64(rounds))
}

func (q *sequence) rounds() int {
	n := 0
	for _, a := range q.res.Attempts {
		if a.Round > n {
			n = a.Round
		}
	}
	return n
}

// lock acquires the (sender, nonce) guard when a Locker is configured.
func (q *sequence) lock(ctx context.Context) (func(), error) {
	if q.locker == nil {
		return func() {}, nil
	}

	token, ok, err := q.locker.AcquireLock(ctx, q.lockKey, q.cfg.LockTTL)
	if err != nil {
		return nil, q.inProgress(err)
	}
	if !ok {
		return nil, q.inProgress(errors.New("lock held by another sequence"))
	}
	q.lockToken = token

	return func() {
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.locker.ReleaseLock(ctx, q.lockKey, q.lockToken); err != nil {
			q.log.Warn("Failed to release sequence lock", "key", q.lockKey, "error", err)
		}
	}, nil
}

// refreshLock extends the guard. Losing it ends the sequence, since another
// sequence may now own the nonce. A failed refresh call is only logged.
func (q *sequence) refreshLock(ctx context.Context) error {
	if q.locker == nil {
		return nil
	}
	held, err := q.locker.RefreshLock(ctx, q.lockKey, q.lockToken, q.cfg.LockTTL)
	if err != nil {
		q.log.Warn("Failed to refresh sequence lock", "key", q.lockKey, "error", err)
		return nil
	}
	if !held {
		return q.inProgress(errors.New("sequence lock expired"))
	}
	return nil
}

func (q *sequence) inProgress(err error) error {
	e := txerr.SequenceInProgress(q.lockKey, err)
	e.Name = q.name
	return e
}
