package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	logformat "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
)

var (
	level       string
	networkName string
	network     bitcoin.Network

	rpcHost     string
	rpcUser     string
	rpcPassword string
)

var rootCmd = &cobra.Command{
	Use:               "bridgectl",
	Short:             "Utility for inspecting and submitting bridged transactions",
	PersistentPreRunE: rootPreRun,
	SilenceUsage:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&level, "log-level", "info", "")
	rootCmd.PersistentFlags().StringVarP(&networkName, "network", "n", string(bitcoin.Mainnet), "bitcoin network")
}

// addNodeFlags registers the flags needed to reach a bitcoin node.
func addNodeFlags(c *cobra.Command) {
	c.Flags().StringVar(&rpcHost, "rpc-host", "http://localhost:8332", "bitcoin core rpc endpoint")
	c.Flags().StringVar(&rpcUser, "rpc-user", "", "bitcoin core rpc user")
	c.Flags().StringVar(&rpcPassword, "rpc-password", "", "bitcoin core rpc password")
}

func newNodeClient() *rpc.Client {
	return rpc.New(rpcHost, rpcUser, rpcPassword, &http.Client{
		Timeout: 30 * time.Second,
	})
}

func rootPreRun(_ *cobra.Command, _ []string) (err error) {
	network, err = bitcoin.ParseNetwork(networkName)
	if err != nil {
		return errors.Wrap(err, "invalid network")
	}

	logger := log.StandardLogger()
	logger.Formatter = &logformat.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}
	logger.Out = os.Stderr

	switch level {
	case "trace":
		logger.Level = log.TraceLevel
	case "debug":
		logger.Level = log.DebugLevel
	case "info":
		logger.Level = log.InfoLevel
	case "warn":
		logger.Level = log.WarnLevel
	case "error":
		logger.Level = log.ErrorLevel
	default:
		logger.Level = log.DebugLevel
	}

	return nil
}
