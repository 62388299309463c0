// Package evm binds the escalation submitter to an EVM JSON-RPC endpoint
// through go-ethereum.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/txerr"
	"github.com/vietddude/escalator/internal/infra/rpc/provider"
	"github.com/vietddude/escalator/internal/infra/rpc/routing"
)

// EVMAdapter implements the submitter's chain client on top of an EthProvider.
// Methods that map directly onto one RPC call are not retried here; callers
// decide which reads go through the backoff retrier.
type EVMAdapter struct {
	provider *provider.EthProvider
	signer   *Signer
	retry    routing.BackoffConfig
}

func NewEVMAdapter(p *provider.EthProvider, signer *Signer, retry routing.BackoffConfig) *EVMAdapter {
	return &EVMAdapter{
		provider: p,
		signer:   signer,
		retry:    retry,
	}
}

// Sender returns the address transactions are sent from.
func (a *EVMAdapter) Sender() common.Address {
	return a.signer.Address()
}

// Send signs tx and broadcasts it with eth_sendRawTransaction.
func (a *EVMAdapter) Send(ctx context.Context, tx *domain.PendingTransaction) (common.Hash, error) {
	signed, err := a.signer.SignTx(toDynamicFeeTx(a.signer.ChainID(), tx))
	if err != nil {
		return common.Hash{}, err
	}

	_, err = provider.Call(ctx, a.provider, "eth_sendRawTransaction", func(ctx context.Context, c *ethclient.Client) (struct{}, error) {
		return struct{}{}, c.SendTransaction(ctx, signed)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// TransactionByHash returns nil when the node does not know hash.
func (a *EVMAdapter) TransactionByHash(ctx context.Context, hash common.Hash) (*domain.TxLookup, error) {
	type found struct {
		tx      *types.Transaction
		pending bool
	}
	res, err := provider.Call(ctx, a.provider, "eth_getTransactionByHash", func(ctx context.Context, c *ethclient.Client) (found, error) {
		tx, pending, err := c.TransactionByHash(ctx, hash)
		return found{tx, pending}, err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toLookup(res.tx, res.pending), nil
}

// TransactionReceipt returns nil while the transaction is unmined.
func (a *EVMAdapter) TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	r, err := provider.Call(ctx, a.provider, "eth_getTransactionReceipt", func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, hash)
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toReceipt(r), nil
}

// LatestHeader returns the fee-market fields of the latest block.
func (a *EVMAdapter) LatestHeader(ctx context.Context) (*domain.Header, error) {
	head, err := a.header(ctx)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Header{Number: head.Number.Uint64(), BaseFee: head.BaseFee}, nil
}

// EstimateFeeMarket returns the node's suggested tip and a fee cap of
// tip + 2*baseFee.
func (a *EVMAdapter) EstimateFeeMarket(ctx context.Context) (*domain.FeeQuote, error) {
	tip, err := provider.Call(ctx, a.provider, "eth_maxPriorityFeePerGas", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return nil, err
	}

	head, err := a.header(ctx)
	if err != nil {
		return nil, err
	}
	if head.BaseFee == nil {
		return nil, txerr.MissingChainField("baseFeePerGas")
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)

	return &domain.FeeQuote{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

// Build prepares a transaction from the signer's address. The nonce comes
// from the pending state; gas is estimated when zero. The fee pair is left
// for the submitter.
func (a *EVMAdapter) Build(ctx context.Context, to *common.Address, value *big.Int, data []byte, gas uint64) (*domain.PendingTransaction, error) {
	from := a.signer.Address()
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := routing.WithBackoff(ctx, routing.Observed(a.retry, "evm", "eth_getTransactionCount"), func(ctx context.Context) (uint64, error) {
		return provider.Call(ctx, a.provider, "eth_getTransactionCount", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
			return c.PendingNonceAt(ctx, from)
		})
	})
	if err != nil {
		return nil, txerr.Transient("eth_getTransactionCount", err)
	}

	if gas == 0 {
		msg := ethereum.CallMsg{From: from, To: to, Value: value, Data: data}
		gas, err = routing.WithBackoff(ctx, routing.Observed(a.retry, "evm", "eth_estimateGas"), func(ctx context.Context) (uint64, error) {
			return provider.Call(ctx, a.provider, "eth_estimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
				return c.EstimateGas(ctx, msg)
			})
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	return &domain.PendingTransaction{
		From:  from,
		Nonce: nonce,
		To:    to,
		Value: value,
		Data:  data,
		Gas:   gas,
	}, nil
}

// RemoteChainID asks the node for its chain id.
func (a *EVMAdapter) RemoteChainID(ctx context.Context) (*big.Int, error) {
	return provider.Call(ctx, a.provider, "eth_chainId", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
}

func (a *EVMAdapter) header(ctx context.Context) (*types.Header, error) {
	return provider.Call(ctx, a.provider, "eth_getBlockByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, nil)
	})
}

func toDynamicFeeTx(chainID *big.Int, tx *domain.PendingTransaction) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     tx.Nonce,
		GasTipCap: tx.MaxPriorityFeePerGas,
		GasFeeCap: tx.MaxFeePerGas,
		Gas:       tx.Gas,
		To:        tx.To,
		Value:     tx.Value,
		Data:      tx.Data,
	})
}

// toLookup reports no tip for transaction types without a fee market.
func toLookup(tx *types.Transaction, pending bool) *domain.TxLookup {
	l := &domain.TxLookup{Hash: tx.Hash(), Pending: pending}
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType:
		l.MaxFeePerGas = tx.GasPrice()
	default:
		l.MaxFeePerGas = tx.GasFeeCap()
		l.MaxPriorityFeePerGas = tx.GasTipCap()
	}
	return l
}

// toReceipt marks pre-Byzantium receipts, which carry a state root instead of
// a status, as unreadable.
func toReceipt(r *types.Receipt) *domain.Receipt {
	out := &domain.Receipt{TxHash: r.TxHash, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}

	switch {
	case len(r.PostState) > 0:
		out.Status = domain.ReceiptStatusUnreadable
	case r.Status == types.ReceiptStatusSuccessful:
		out.Status = domain.ReceiptStatusSuccess
	default:
		out.Status = domain.ReceiptStatusFailure
	}
	return out
}
