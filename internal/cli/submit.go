package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/vietddude/escalator/internal/core/domain"
	"github.com/vietddude/escalator/internal/core/txerr"
)

var (
	submitTo    string
	submitValue string
	submitData  string
	submitGas   uint64
	submitName  string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a transaction and escalate its fee until it is mined",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitTo, "to", "", "recipient address (empty for contract creation)")
	submitCmd.Flags().StringVar(&submitValue, "value-wei", "0", "value in wei")
	submitCmd.Flags().StringVar(&submitData, "data", "", "hex call data")
	submitCmd.Flags().Uint64Var(&submitGas, "gas", 0, "gas limit, estimated when zero")
	submitCmd.Flags().StringVar(&submitName, "name", "transaction", "label used in logs and errors")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	to, value, data, err := parseSubmitFlags()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, stop, err := startApp(ctx)
	if err != nil {
		return err
	}
	defer stop()

	tx, err := app.Adapter().Build(ctx, to, value, data, submitGas)
	if err != nil {
		slog.Error("Failed to build transaction", "name", submitName, "error", err)
		return err
	}

	res, err := app.Submitter().Submit(ctx, tx, submitName)
	printResult(res, err)
	if err != nil {
		if txerr.Is(err, txerr.KindEscalationExhausted) {
			slog.Warn("Stopped waiting; the transaction may still be mined", "hash", res.TxHash.Hex())
		}
		return err
	}
	return nil
}

func parseSubmitFlags() (*common.Address, *big.Int, []byte, error) {
	var to *common.Address
	if submitTo != "" {
		if !common.IsHexAddress(submitTo) {
			return nil, nil, nil, fmt.Errorf("invalid --to address %q", submitTo)
		}
		addr := common.HexToAddress(submitTo)
		to = &addr
	}

	value, ok := new(big.Int).SetString(submitValue, 10)
	if !ok || value.Sign() < 0 {
		return nil, nil, nil, fmt.Errorf("invalid --value-wei %q", submitValue)
	}

	var data []byte
	if submitData != "" {
		var err error
		data, err = hexutil.Decode(submitData)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid --data: %w", err)
		}
	}
	if to == nil && len(data) == 0 {
		return nil, nil, nil, fmt.Errorf("either --to or --data is required")
	}
	return to, value, data, nil
}

func printResult(res *domain.Result, err error) {
	if res == nil {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ROUND\tHASH\tMAX FEE\tTIP\tOUTCOME")
	for _, a := range res.Attempts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%v\t%v\t%s\n",
			a.Round, a.TxHash.Hex(), a.Fees.MaxFeePerGas, a.Fees.MaxPriorityFeePerGas, a.Outcome)
	}
	_ = w.Flush()

	if err != nil {
		fmt.Printf("\n%s %s: %v\n", res.Name, res.State, err)
		return
	}
	fmt.Printf("\n%s %s: %s\n", res.Name, res.State, res.TxHash.Hex())
}
