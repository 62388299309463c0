package cli

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/escalator/internal/core/domain"
)

var (
	statusAddress string
	statusTx      string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fee market, sender balance and transaction state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddress, "address", "", "address to show the balance of (default: sender)")
	statusCmd.Flags().StringVar(&statusTx, "tx", "", "transaction hash to look up")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app, stop, err := startApp(ctx)
	if err != nil {
		return err
	}
	defer stop()

	adapter := app.Adapter()
	address := adapter.Sender()
	if statusAddress != "" {
		if !common.IsHexAddress(statusAddress) {
			return fmt.Errorf("invalid --address %q", statusAddress)
		}
		address = common.HexToAddress(statusAddress)
	}

	txHash, err := parseTxHash(statusTx)
	if err != nil {
		return err
	}

	var (
		gasPrice, baseFee, balance *big.Int
		block                      uint64
		lookup                     *domain.TxLookup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		gasPrice, err = adapter.GasPrice(gctx)
		return err
	})
	g.Go(func() (err error) {
		baseFee, err = app.Submitter().Estimator().BaseFee(gctx)
		return err
	})
	g.Go(func() (err error) {
		block, err = adapter.LatestBlockNumber(gctx)
		return err
	})
	g.Go(func() (err error) {
		balance, err = adapter.Balance(gctx, address)
		return err
	})
	if statusTx != "" {
		g.Go(func() (err error) {
			lookup, err = adapter.Transaction(gctx, txHash)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintf(w, "latest block\t%d\n", block)
	_, _ = fmt.Fprintf(w, "gas price (wei)\t%s\n", gasPrice)
	_, _ = fmt.Fprintf(w, "base fee (wei)\t%s\n", baseFee)
	_, _ = fmt.Fprintf(w, "balance %s (wei)\t%s\n", address.Hex(), balance)
	if statusTx != "" {
		switch {
		case lookup == nil:
			_, _ = fmt.Fprintf(w, "tx %s\tnot found\n", statusTx)
		case lookup.Pending:
			_, _ = fmt.Fprintf(w, "tx %s\tpending (tip %v, max %v)\n", statusTx, lookup.MaxPriorityFeePerGas, lookup.MaxFeePerGas)
		default:
			_, _ = fmt.Fprintf(w, "tx %s\tmined\n", statusTx)
		}
	}
	health := app.Provider().GetHealth()
	_, _ = fmt.Fprintf(w, "provider %s\t%s (error rate %.2f)\n", app.Provider().GetName(), health.State, health.ErrorRate)
	return w.Flush()
}

// parseTxHash accepts an empty string or exactly 32 bytes of 0x-prefixed hex.
func parseTxHash(s string) (common.Hash, error) {
	if s == "" {
		return common.Hash{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid --tx %q: want 0x followed by 64 hex characters", s)
	}
	return common.BytesToHash(b), nil
}
