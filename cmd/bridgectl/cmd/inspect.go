package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kinecosystem/nostrbtc/pkg/broadcast"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

var (
	inspectKind   int
	inspectVerify bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "inspect a nostr event and the transactions it carries",
	Long:  "Read a nostr event as JSON from file, or stdin when no file is given, and report what the bridge would do with it.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  inspectRun,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().IntVarP(&inspectKind, "kind", "k", broadcast.DefaultKind, "event kind the bridge listens for")
	inspectCmd.Flags().BoolVar(&inspectVerify, "verify", true, "verify the event id and signature")
}

func readInput(c *cobra.Command, args []string) ([]byte, error) {
	var r io.Reader = c.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	return ioutil.ReadAll(r)
}

func inspectRun(c *cobra.Command, args []string) error {
	data, err := readInput(c, args)
	if err != nil {
		return errors.Wrap(err, "failed to read event")
	}

	var e nostr.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return errors.Wrap(err, "failed to parse event")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	out := c.OutOrStdout()
	fmt.Fprintf(out, "event:     %s\n", e.ID)
	fmt.Fprintf(out, "pubkey:    %s\n", e.PubKey)
	fmt.Fprintf(out, "kind:      %d (matches: %t)\n", e.Kind, e.Kind == inspectKind)

	if inspectVerify {
		if err := e.Verify(); err != nil {
			fmt.Fprintf(out, "signature: invalid (%v)\n", err)
		} else {
			fmt.Fprintln(out, "signature: valid")
		}
	}

	magic := "<none>"
	if tag, ok := e.Tags.Find(nostr.WithKey(broadcast.MagicTagKey)); ok && len(tag.Values()) > 0 {
		magic = tag.Values()[0]
	}
	fmt.Fprintf(out, "magic:     %s (%s: %t)\n", magic, network, broadcast.MatchesNetwork(&e, network.Magic()))

	txs, malformed := broadcast.ExtractTransactionsWithFailures(&e)
	fmt.Fprintf(out, "transactions: %d\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(out, "  %s\n", tx.Hash())
	}
	if len(malformed) > 0 {
		fmt.Fprintf(out, "malformed: %d\n", len(malformed))
		for _, m := range malformed {
			fmt.Fprintf(out, "  [%d] %v\n", m.Index, m.Err)
		}
	}

	return nil
}
