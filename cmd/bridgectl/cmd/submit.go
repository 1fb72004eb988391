package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/broadcast"
)

var submitCmd = &cobra.Command{
	Use:   "submit <hex>...",
	Short: "submit hex encoded transaction(s) to a bitcoin node",
	Long:  "Submit transactions to a bitcoin node the same way the bridge does: one transaction with sendrawtransaction, more with submitpackage.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  submitRun,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	addNodeFlags(submitCmd)
}

func submitRun(c *cobra.Command, args []string) error {
	txs := make([]*btcutil.Tx, 0, len(args))
	for i, arg := range args {
		tx, err := bitcoin.DecodeTransaction(arg)
		if err != nil {
			return errors.Wrapf(err, "invalid transaction at position %d", i)
		}
		txs = append(txs, tx)
	}

	r, err := broadcast.Dispatch(context.Background(), newNodeClient(), txs)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	fmt.Fprintln(out, r.Summary())
	switch r.Mode {
	case broadcast.ModeSingle:
		if r.Single.Accepted {
			fmt.Fprintf(out, "accepted: %s\n", r.Single.TxID)
		} else {
			fmt.Fprintf(out, "rejected: %s\n", r.Single.Reason)
		}
	case broadcast.ModePackage:
		b, err := json.MarshalIndent(r.Package, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode package result")
		}
		fmt.Fprintln(out, string(b))
	}

	return nil
}
