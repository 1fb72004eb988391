package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kinecosystem/nostrbtc/pkg/broadcast"
	redisevents "github.com/kinecosystem/nostrbtc/pkg/events/redis"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

var (
	watchRedis   string
	watchChannel string
	watchAll     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "print events mirrored by a running bridge",
	Long:  "Subscribe to the redis channel a bridge mirrors delivered events to, and print them as newline delimited JSON. The output can be fed to replay.",
	Args:  cobra.NoArgs,
	RunE:  watchRun,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchRedis, "redis", "localhost:6379", "redis address")
	watchCmd.Flags().StringVar(&watchChannel, "channel", redisevents.DefaultChannel, "mirror channel")
	watchCmd.Flags().BoolVar(&watchAll, "all", false, "print events for every network, not only --network")
}

func watchRun(c *cobra.Command, _ []string) error {
	out := c.OutOrStdout()
	magic := network.Magic()

	var mu sync.Mutex
	hook := func(e *nostr.Event) {
		if !watchAll && !broadcast.MatchesNetwork(e, magic) {
			return
		}

		b, err := json.Marshal(e)
		if err != nil {
			log.WithError(err).WithField("event", e.ID).Warn("failed to encode event")
			return
		}

		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, string(b))
	}

	ps, err := redisevents.New(
		redis.NewClient(&redis.Options{
			Addr: watchRedis,
		}),
		watchChannel,
		hook,
	)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to mirror")
	}
	defer ps.Close()

	log.WithField("channel", watchChannel).Info("watching for events")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return nil
}
