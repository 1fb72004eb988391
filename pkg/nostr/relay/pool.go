package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
	"github.com/kinecosystem/agora-common/metrics"
	"github.com/kinecosystem/agora-common/retry"
	"github.com/kinecosystem/agora-common/retry/backoff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kinecosystem/nostrbtc/pkg/events"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

const (
	defaultSeenCacheSize    = 10_000
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultReadTimeout      = 90 * time.Second
	defaultMinBackoff       = time.Second
	defaultMaxBackoff       = time.Minute
	backoffJitter           = 0.2
)

var (
	ErrNoRelays     = errors.New("no relay(s) provided")
	ErrRelayClosed  = errors.New("subscription closed by relay")
	errPoolShutdown = errors.New("pool shut down")

	eventsReceivedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "relay_events_received",
		Help:      "Number of events received, by relay",
	}, []string{"relay"})
	duplicateEventsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "relay_duplicate_events",
		Help:      "Number of events dropped because they were already delivered",
	})
	invalidEventsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "relay_invalid_events",
		Help:      "Number of events dropped because they failed validation",
	})
	reconnectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "relay_reconnects",
		Help:      "Number of relay connection attempts after a failure, by relay",
	}, []string{"relay"})
)

func init() {
	eventsReceivedCounter = metrics.Register(eventsReceivedCounter).(*prometheus.CounterVec)
	duplicateEventsCounter = metrics.Register(duplicateEventsCounter).(prometheus.Counter)
	invalidEventsCounter = metrics.Register(invalidEventsCounter).(prometheus.Counter)
	reconnectCounter = metrics.Register(reconnectCounter).(*prometheus.CounterVec)
}

// Option configures a Pool.
type Option func(p *Pool)

// WithSignatureVerification sets whether event ids and signatures are
// verified before delivery. Enabled by default.
func WithSignatureVerification(enabled bool) Option {
	return func(p *Pool) {
		p.verify = enabled
	}
}

// WithSeenCacheSize sets how many event ids are remembered for dropping
// events delivered by more than one relay.
func WithSeenCacheSize(size int) Option {
	return func(p *Pool) {
		p.seenSize = size
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Pool) {
		p.dialer = d
	}
}

// WithMinBackoff sets the delay before the first reconnection attempt after
// a connection is lost. Consecutive failures double the delay.
func WithMinBackoff(d time.Duration) Option {
	return func(p *Pool) {
		p.minBackoff = d
	}
}

// WithMaxBackoff sets the maximum delay between reconnection attempts.
func WithMaxBackoff(d time.Duration) Option {
	return func(p *Pool) {
		p.maxBackoff = d
	}
}

// WithKeepAlive sets how often relays are pinged, and how long a connection
// may go without any message or pong before it is considered dead.
func WithKeepAlive(pingInterval, readTimeout time.Duration) Option {
	return func(p *Pool) {
		p.pingInterval = pingInterval
		p.readTimeout = readTimeout
	}
}

type relayEvent struct {
	relay string
	event *nostr.Event
}

// Pool subscribes to a set of relays and delivers matching events to hooks.
//
// Each relay is read by its own goroutine, but hooks are only ever called
// from the goroutine running Run, one event at a time, in arrival order.
type Pool struct {
	log          *logrus.Entry
	urls         []string
	filter       nostr.Filter
	hooks        []events.Hook
	dialer       *websocket.Dialer
	verify       bool
	seenSize     int
	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration

	seen    *lru.Cache
	eventCh chan relayEvent
}

// NewPool returns a pool for the provided relay urls. At least one relay is
// required.
func NewPool(urls []string, filter nostr.Filter, hooks []events.Hook, opts ...Option) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoRelays
	}

	p := &Pool{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type": "nostr/relay",
		}),
		urls:   urls,
		filter: filter,
		hooks:  hooks,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		verify:       true,
		seenSize:     defaultSeenCacheSize,
		minBackoff:   defaultMinBackoff,
		maxBackoff:   defaultMaxBackoff,
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
		eventCh:      make(chan relayEvent, 64),
	}
	for _, o := range opts {
		o(p)
	}

	var err error
	p.seen, err = lru.New(p.seenSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create seen event cache")
	}

	return p, nil
}

// Run connects to every relay and delivers events until ctx is cancelled.
// Connections are retried indefinitely; a pending reconnection delay is cut
// short by cancellation. Run always returns ctx.Err().
func (p *Pool) Run(ctx context.Context) error {
	log := p.log.WithField("method", "Run")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			p.subscribe(ctx, url)
		}(url)
	}

	log.WithField("relays", p.urls).Info("Listening for bitcoin txs...")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info("relay pool stopped")
			return ctx.Err()
		case re := <-p.eventCh:
			p.deliver(re)
		}
	}
}

func (p *Pool) deliver(re relayEvent) {
	log := p.log.WithFields(logrus.Fields{
		"method": "deliver",
		"relay":  re.relay,
		"event":  re.event.ID,
	})

	eventsReceivedCounter.WithLabelValues(re.relay).Inc()

	if p.seen.Contains(re.event.ID) {
		duplicateEventsCounter.Inc()
		log.Trace("duplicate event, dropping")
		return
	}

	if err := re.event.Validate(); err != nil {
		invalidEventsCounter.Inc()
		log.WithError(err).Warn("invalid event, dropping")
		return
	}
	if p.verify {
		if err := re.event.Verify(); err != nil {
			invalidEventsCounter.Inc()
			log.WithError(err).Warn("event failed verification, dropping")
			return
		}
	}

	// Only mark events as seen once they're known to be valid, so that a
	// forged event can't shadow the real one.
	p.seen.Add(re.event.ID, struct{}{})

	for _, h := range p.hooks {
		h(re.event)
	}
}

func (p *Pool) subscribe(ctx context.Context, url string) {
	log := p.log.WithFields(logrus.Fields{
		"method": "subscribe",
		"relay":  url,
	})

	// failures counts consecutive connections that never got subscribed. A
	// subscription that was established and later lost starts over at the
	// minimum delay.
	var failures uint
	err := retry.Loop(
		func() error {
			subscribed, err := p.stream(ctx, url)
			if ctx.Err() != nil {
				return errPoolShutdown
			}

			if subscribed {
				failures = 0
			}
			failures++

			reconnectCounter.WithLabelValues(url).Inc()
			log.WithError(err).Warn("relay connection lost, reconnecting")
			return err
		},
		retry.NonRetriableErrors(errPoolShutdown),
		func(_ uint, _ error) bool {
			return p.wait(ctx, failures)
		},
	)
	if err == errPoolShutdown || ctx.Err() != nil {
		log.Debug("relay subscription stopped")
	} else {
		log.WithError(err).Warn("relay subscription terminated")
	}
}

// wait sleeps before the next connection attempt, returning false if ctx is
// cancelled first.
func (p *Pool) wait(ctx context.Context, failures uint) bool {
	delay := backoff.BinaryExponential(p.minBackoff)(failures)
	if delay > p.maxBackoff || delay <= 0 {
		delay = p.maxBackoff
	}
	delay = time.Duration(float64(delay) * (1 + mrand.Float64()*backoffJitter*2 - backoffJitter))

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// stream runs a single connection to a relay, returning when the
// connection fails or ctx is cancelled. subscribed reports whether the
// subscription request was delivered.
func (p *Pool) stream(ctx context.Context, url string) (subscribed bool, err error) {
	log := p.log.WithFields(logrus.Fields{
		"method": "stream",
		"relay":  url,
	})

	conn, _, err := p.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, errors.Wrapf(err, "failed to connect to %s", url)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	subID, err := newSubscriptionID()
	if err != nil {
		return false, err
	}
	req, err := nostr.NewReqMessage(subID, p.filter)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode subscription")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return false, errors.Wrap(err, "failed to subscribe")
	}

	log.WithField("subscription", subID).Info("connected to relay")

	// A relay that stops answering pings is treated as gone, so that a
	// half-open connection can not block forever in ReadMessage.
	_ = conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	})
	go p.ping(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, errors.Wrap(err, "failed to read from relay")
		}
		_ = conn.SetReadDeadline(time.Now().Add(p.readTimeout))

		msg, err := nostr.ParseRelayMessage(data)
		if err != nil {
			log.WithError(err).Debug("unparseable relay message, ignoring")
			continue
		}

		switch msg.Type {
		case nostr.MessageTypeEvent:
			if msg.SubscriptionID != subID {
				continue
			}

			select {
			case p.eventCh <- relayEvent{relay: url, event: msg.Event}:
			case <-ctx.Done():
				return true, ctx.Err()
			}
		case nostr.MessageTypeEOSE:
			log.Debug("end of stored events")
		case nostr.MessageTypeNotice:
			log.WithField("notice", msg.Message).Info("relay notice")
		case nostr.MessageTypeClosed:
			if msg.SubscriptionID == subID {
				return true, errors.Wrap(ErrRelayClosed, msg.Message)
			}
		}
	}
}

// ping writes a ping every ping interval until done is closed. A failed
// ping closes the connection, which fails the pending read.
func (p *Pool) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(p.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteTimeout)); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func newSubscriptionID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate subscription id")
	}
	return "nostrbtc-" + hex.EncodeToString(b), nil
}
