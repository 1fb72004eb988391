package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kinecosystem/nostrbtc/pkg/broadcast"
	"github.com/kinecosystem/nostrbtc/pkg/events/memory"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

var (
	replayKind   int
	replayVerify bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "run captured nostr events through the bridge",
	Long:  "Read newline delimited nostr events from file, or stdin when no file is given, and process each one as if it had been received from a relay.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  replayRun,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().IntVarP(&replayKind, "kind", "k", broadcast.DefaultKind, "event kind to act on")
	replayCmd.Flags().BoolVar(&replayVerify, "verify", true, "skip events failing id or signature verification")
	addNodeFlags(replayCmd)
}

func replayRun(c *cobra.Command, args []string) error {
	data, err := readInput(c, args)
	if err != nil {
		return errors.Wrap(err, "failed to read events")
	}

	processor := broadcast.NewProcessor(
		broadcast.Config{
			Kind:    replayKind,
			Network: network,
		},
		newNodeClient(),
		nil,
	)
	ps := memory.New(processor.OnEvent)

	var line int
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e nostr.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			log.WithError(err).WithField("line", line).Warn("failed to parse event, skipping")
			continue
		}
		if replayVerify {
			if err := e.Verify(); err != nil {
				log.WithError(err).WithField("line", line).Warn("event failed verification, skipping")
				continue
			}
		}

		if err := ps.Submit(context.Background(), &e); err != nil {
			log.WithError(err).WithField("line", line).Warn("invalid event, skipping")
		}
	}

	return scanner.Err()
}
