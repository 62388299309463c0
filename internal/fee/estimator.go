// Package fee computes EIP-1559 fee pairs for the initial send and for every
// escalation round.
package fee

import (
	"context"
	"math/big"

	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/txerr"
	"github.com/vietddude/escalator/internal/infra/rpc/routing"
	"github.com/vietddude/escalator/internal/metrics"
)

// Source is the part of the chain client the estimator reads from.
type Source interface {
	LatestHeader(ctx context.Context) (*domain.Header, error)
	EstimateFeeMarket(ctx context.Context) (*domain.FeeQuote, error)
}

// Estimator reads fee-market data through the backoff retrier.
type Estimator struct {
	source Source
	retry  routing.BackoffConfig
}

func NewEstimator(source Source, retry routing.BackoffConfig) *Estimator {
	return &Estimator{source: source, retry: retry}
}

// EstimateFees returns the node's recommended fee pair.
func (e *Estimator) EstimateFees(ctx context.Context) (domain.FeeQuote, error) {
	const method = "eth_maxPriorityFeePerGas"

	cfg := routing.Observed(e.retry, "fee", method)
	cfg.StopOn = func(err error) bool { return txerr.Is(err, txerr.KindMissingChainField) }

	q, err := routing.WithBackoff(ctx, cfg, e.source.EstimateFeeMarket)
	if err != nil {
		if txerr.KindOf(err) != txerr.KindUnknown {
			return domain.FeeQuote{}, err
		}
		return domain.FeeQuote{}, txerr.Transient(method, err)
	}
	if q == nil || q.MaxPriorityFeePerGas == nil {
		return domain.FeeQuote{}, txerr.MissingChainField("maxPriorityFeePerGas")
	}
	if q.MaxFeePerGas == nil {
		return domain.FeeQuote{}, txerr.MissingChainField("maxFeePerGas")
	}
	return q.Copy(), nil
}

// BaseFee returns the base fee of the latest block. A block without one is a
// MissingChainField error, never a transient failure.
func (e *Estimator) BaseFee(ctx context.Context) (*big.Int, error) {
	const method = "eth_getBlockByNumber"

	head, err := routing.WithBackoff(ctx, routing.Observed(e.retry, "fee", method), e.source.LatestHeader)
	if err != nil {
		return nil, txerr.Transient(method, err)
	}
	if head == nil {
		return nil, txerr.MissingChainField("latestBlock")
	}
	if head.BaseFee == nil {
		return nil, txerr.MissingChainField("baseFeePerGas")
	}

	baseFee, _ := new(big.Float).SetInt(head.BaseFee).Float64()
	metrics.LatestBaseFee.Set(baseFee)

	return new(big.Int).Set(head.BaseFee), nil
}

// Bump derives the next fee pair from the previous one:
//
//	tip' = floor((prevTip or defaultTip) * (100 + bumpPercent) / 100)
//	max' = 2*baseFee + tip'
//
// max' is raised to the previous max when the base fee fell, so a replacement
// never carries a lower fee cap than the transaction it replaces.
func Bump(prev domain.FeeQuote, baseFee *big.Int, bumpPercent uint64, defaultTip *big.Int) domain.FeeQuote {
	tip := prev.MaxPriorityFeePerGas
	if tip == nil {
		tip = defaultTip
	}
	if tip == nil {
		tip = new(big.Int)
	}

	newTip := new(big.Int).Mul(tip, new(big.Int).SetUint64(100+bumpPercent))
	newTip.Div(newTip, big.NewInt(100))

	newMax := new(big.Int).Mul(baseFee, big.NewInt(2))
	newMax.Add(newMax, newTip)

	if prev.MaxFeePerGas != nil && newMax.Cmp(prev.MaxFeePerGas) < 0 {
		newMax.Set(prev.MaxFeePerGas)
	}

	return domain.FeeQuote{MaxFeePerGas: newMax, MaxPriorityFeePerGas: newTip}
}
