package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/escalator/internal/infra/rpc/routing"
	"github.com/vietddude/escalator/internal/metrics"
)

// EthProvider is a go-ethereum client bound to one endpoint. Every call made
// through Call is timed, counted and fed into the health tracker.
type EthProvider struct {
	*BaseProvider

	rpc     *rpc.Client
	client  *ethclient.Client
	timeout time.Duration
}

// NewEthProvider dials url. timeout bounds each individual call; zero disables it.
func NewEthProvider(ctx context.Context, name, url string, timeout time.Duration) (*EthProvider, error) {
	httpClient := &http.Client{Timeout: timeout}
	rc, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}

	return &EthProvider{
		BaseProvider: NewBaseProvider(name),
		rpc:          rc,
		client:       ethclient.NewClient(rc),
		timeout:      timeout,
	}, nil
}

// Close cleans up resources.
func (p *EthProvider) Close() error {
	p.rpc.Close()
	return nil
}

// Call runs fn against the provider's client as the JSON-RPC method named
// method. ethereum.NotFound is an answer, not a failure, and is returned as-is.
func Call[T any](ctx context.Context, p *EthProvider, method string, fn func(ctx context.Context, c *ethclient.Client) (T, error)) (T, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	metrics.RPCCallsTotal.WithLabelValues(p.Name, method).Inc()

	start := time.Now()
	result, err := fn(ctx, p.client)
	latency := time.Since(start)
	metrics.RPCLatency.WithLabelValues(p.Name, method).Observe(latency.Seconds())

	if err != nil && !errors.Is(err, ethereum.NotFound) {
		p.RecordFailure(err)
		metrics.RPCErrorsTotal.WithLabelValues(p.Name, method, routing.ClassifyError(err).String()).Inc()
		return result, err
	}

	p.RecordSuccess(latency)
	return result, err
}
