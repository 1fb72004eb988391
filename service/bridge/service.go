package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/go-redis/redis_rate/v8"
	agoraapp "github.com/kinecosystem/agora-common/app"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
	"github.com/kinecosystem/nostrbtc/pkg/broadcast"
	"github.com/kinecosystem/nostrbtc/pkg/events"
	redisevents "github.com/kinecosystem/nostrbtc/pkg/events/redis"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
	"github.com/kinecosystem/nostrbtc/pkg/nostr/relay"
	"github.com/kinecosystem/nostrbtc/pkg/rate"
)

const (
	// Bitcoin config
	networkEnv         = "BITCOIN_NETWORK"
	rpcHostEnv         = "BITCOIN_RPC_HOST"
	rpcUserEnv         = "BITCOIN_RPC_USER"
	rpcPasswordEnv     = "BITCOIN_RPC_PASSWORD"
	nodeConnectTimeout = 30 * time.Second

	// Nostr config
	relaysEnv           = "NOSTR_RELAYS"
	eventKindEnv        = "NOSTR_EVENT_KIND"
	verifySignaturesEnv = "NOSTR_VERIFY_SIGNATURES"
	seenCacheSizeEnv    = "NOSTR_SEEN_CACHE_SIZE"

	// Rate limit configs
	publisherRateLimitEnv      = "PUBLISHER_RATE_LIMIT"
	publisherRateLimitRedisEnv = "PUBLISHER_RATE_LIMIT_REDIS"

	// Event mirror configs
	mirrorRedisEnv   = "EVENTS_MIRROR_REDIS"
	mirrorChannelEnv = "EVENTS_MIRROR_CHANNEL"
)

var (
	transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
)

type config struct {
	network     bitcoin.Network
	relays      []string
	kind        int
	verify      bool
	seenSize    int
	rpcHost     string
	rpcUser     string
	rpcPassword string
	rateLimit   int
	rateRedis   string

	mirrorRedis   string
	mirrorChannel string
}

func loadConfig() (*config, error) {
	c := &config{
		network:     bitcoin.Mainnet,
		kind:        broadcast.DefaultKind,
		verify:      true,
		seenSize:    10_000,
		rpcHost:     os.Getenv(rpcHostEnv),
		rpcUser:     os.Getenv(rpcUserEnv),
		rpcPassword: os.Getenv(rpcPasswordEnv),
		rateRedis:   os.Getenv(publisherRateLimitRedisEnv),

		mirrorRedis:   os.Getenv(mirrorRedisEnv),
		mirrorChannel: os.Getenv(mirrorChannelEnv),
	}
	if c.mirrorChannel == "" {
		c.mirrorChannel = redisevents.DefaultChannel
	}

	for _, r := range strings.Split(os.Getenv(relaysEnv), ",") {
		if r = strings.TrimSpace(r); r != "" {
			c.relays = append(c.relays, r)
		}
	}
	if len(c.relays) == 0 {
		return nil, relay.ErrNoRelays
	}
	if c.rpcHost == "" {
		return nil, errors.New("must specify bitcoin rpc host")
	}

	var err error
	if v := os.Getenv(networkEnv); v != "" {
		if c.network, err = bitcoin.ParseNetwork(v); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", networkEnv)
		}
	}
	if v := os.Getenv(eventKindEnv); v != "" {
		if c.kind, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrap(err, "failed to parse event kind")
		}
		if c.kind < 0 || c.kind > 65535 {
			return nil, errors.Errorf("invalid event kind: %d", c.kind)
		}
	}
	if v := os.Getenv(verifySignaturesEnv); v != "" {
		if c.verify, err = strconv.ParseBool(v); err != nil {
			return nil, errors.Wrap(err, "failed to parse signature verification flag")
		}
	}
	if v := os.Getenv(seenCacheSizeEnv); v != "" {
		if c.seenSize, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrap(err, "failed to parse seen cache size")
		}
		if c.seenSize <= 0 {
			return nil, errors.Errorf("invalid seen cache size: %d", c.seenSize)
		}
	}
	if v := os.Getenv(publisherRateLimitEnv); v != "" {
		if c.rateLimit, err = strconv.Atoi(v); err != nil {
			return nil, errors.Wrap(err, "failed to parse publisher rate limit")
		}
		if c.rateLimit < 0 {
			return nil, errors.Errorf("invalid publisher rate limit: %d", c.rateLimit)
		}
	}

	return c, nil
}

// limiter returns the publisher limiter for the config. A zero limit
// disables limiting.
func (c *config) limiter() (rate.Limiter, error) {
	if c.rateLimit == 0 {
		return &rate.NoLimiter{}, nil
	}

	if c.rateRedis != "" {
		ring := redis.NewRing(&redis.RingOptions{
			Addrs: map[string]string{
				"server1": c.rateRedis,
			},
		})
		return rate.NewRedisRateLimiter(redis_rate.NewLimiter(ring), redis_rate.PerSecond(c.rateLimit)), nil
	}

	return rate.NewLocalRateLimiter(xrate.Limit(c.rateLimit), rate.DefaultMaxKeys)
}

type app struct {
	pool   *relay.Pool
	mirror *redisevents.PubSub
	health *health.Server

	cancel context.CancelFunc

	shutdown   sync.Once
	shutdownCh chan struct{}
}

// Init implements agorapp.App.Init.
func (a *app) Init(_ agoraapp.Config) error {
	a.shutdownCh = make(chan struct{})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	node := rpc.New(
		cfg.rpcHost,
		cfg.rpcUser,
		cfg.rpcPassword,
		&http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	)

	log.WithField("host", cfg.rpcHost).Info("Connecting bitcoin core...")
	ctx, cancel := context.WithTimeout(context.Background(), nodeConnectTimeout)
	info, err := node.GetNetworkInfo(ctx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to connect to bitcoin core")
	}
	log.WithFields(log.Fields{
		"version":    info.Version,
		"subversion": info.SubVersion,
	}).Info("Connected to bitcoin core version")

	limiter, err := cfg.limiter()
	if err != nil {
		return errors.Wrap(err, "failed to create publisher rate limiter")
	}

	processor := broadcast.NewProcessor(
		broadcast.Config{
			Kind:    cfg.kind,
			Network: cfg.network,
		},
		node,
		limiter,
	)

	hooks := []events.Hook{processor.OnEvent}
	if cfg.mirrorRedis != "" {
		a.mirror = redisevents.NewPublisher(
			redis.NewClient(&redis.Options{
				Addr: cfg.mirrorRedis,
			}),
			cfg.mirrorChannel,
		)
		hooks = append(hooks, a.mirror.Hook())
	}

	since := time.Now().Unix()
	a.pool, err = relay.NewPool(
		cfg.relays,
		nostr.Filter{
			Kinds: []int{cfg.kind},
			Since: &since,
		},
		hooks,
		relay.WithSignatureVerification(cfg.verify),
		relay.WithSeenCacheSize(cfg.seenSize),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create relay pool")
	}

	a.health = health.NewServer()

	var poolCtx context.Context
	poolCtx, a.cancel = context.WithCancel(context.Background())
	go func() {
		err := a.pool.Run(poolCtx)
		if poolCtx.Err() == nil {
			log.WithError(err).Error("relay pool stopped unexpectedly")
			a.Stop()
		}
	}()

	return nil
}

// RegisterWithGRPC implements agorapp.App.RegisterWithGRPC.
func (a *app) RegisterWithGRPC(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, a.health)
}

// ShutdownChan implements agorapp.App.ShutdownChan.
func (a *app) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements agorapp.App.Stop.
func (a *app) Stop() {
	a.shutdown.Do(func() {
		close(a.shutdownCh)
		if a.health != nil {
			a.health.Shutdown()
		}
		if a.cancel != nil {
			a.cancel()
		}
		if a.mirror != nil {
			if err := a.mirror.Close(); err != nil {
				log.WithError(err).Warn("failed to close event mirror")
			}
		}
	})
}

func main() {
	if err := agoraapp.Run(&app{}); err != nil {
		log.WithError(err).Fatal("error running service")
	}
}
