package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/txerr"
	"github.com/vietddude/escalator/internal/infra/rpc/provider"
	"github.com/vietddude/escalator/internal/infra/rpc/routing"
)

// Read-only accessors. Each goes through the backoff retrier and reports a
// final failure as TransientRPCFailure.

func (a *EVMAdapter) GasPrice(ctx context.Context) (*big.Int, error) {
	return read(ctx, a, "eth_gasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (a *EVMAdapter) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return read(ctx, a, "eth_blockNumber", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

func (a *EVMAdapter) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	return read(ctx, a, "eth_getBalance", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, address, nil)
	})
}

// Transaction returns nil when the node does not know hash.
func (a *EVMAdapter) Transaction(ctx context.Context, hash common.Hash) (*domain.TxLookup, error) {
	tx, err := routing.WithBackoff(ctx, routing.Observed(a.retry, "evm", "eth_getTransactionByHash"), func(ctx context.Context) (*domain.TxLookup, error) {
		return a.TransactionByHash(ctx, hash)
	})
	if err != nil {
		return nil, txerr.Transient("eth_getTransactionByHash", err)
	}
	return tx, nil
}

func read[T any](ctx context.Context, a *EVMAdapter, method string, fn func(ctx context.Context, c *ethclient.Client) (T, error)) (T, error) {
	v, err := routing.WithBackoff(ctx, routing.Observed(a.retry, "evm", method), func(ctx context.Context) (T, error) {
		return provider.Call(ctx, a.provider, method, fn)
	})
	if err != nil {
		var zero T
		return zero, txerr.Transient(method, err)
	}
	return v, nil
}
