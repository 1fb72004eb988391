package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
)

var magicCmd = &cobra.Command{
	Use:   "magic [network...]",
	Short: "print the magic tag value of network(s)",
	Long:  "Print the magic tag value publishers must use for the given networks, or for every known network when none are given.",
	RunE:  magicRun,
}

func init() {
	rootCmd.AddCommand(magicCmd)
}

func magicRun(c *cobra.Command, args []string) error {
	networks := bitcoin.Networks
	if len(args) > 0 {
		networks = make([]bitcoin.Network, 0, len(args))
		for _, arg := range args {
			n, err := bitcoin.ParseNetwork(arg)
			if err != nil {
				return err
			}
			networks = append(networks, n)
		}
	}

	for _, n := range networks {
		fmt.Fprintf(c.OutOrStdout(), "%s\t%s\n", n, n.Magic())
	}

	return nil
}
