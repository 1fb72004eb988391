package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/kinecosystem/agora-common/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kinecosystem/nostrbtc/pkg/events"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

// DefaultChannel is the channel delivered events are mirrored to.
const DefaultChannel = "nostrbtc:events"

var (
	submitHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nostrbtc",
		Name:      "redis_events_submit_duration_seconds",
	}, []string{"channel"})
	visibilityHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nostrbtc",
		Name:      "redis_events_visibility_seconds",
		Help:      "The time for an event to become 'visible' by the subscribers",
	}, []string{"channel"})
)

func init() {
	submitHistogram = metrics.Register(submitHistogram).(*prometheus.HistogramVec)
	visibilityHistogram = metrics.Register(visibilityHistogram).(*prometheus.HistogramVec)
}

type message struct {
	Event          *nostr.Event `json:"event"`
	SubmissionTime time.Time    `json:"submission_time"`
}

// PubSub is a Submitter backed by a redis pub/sub channel. Every process
// subscribed to the channel receives every submitted event.
type PubSub struct {
	log     *logrus.Entry
	channel string
	rdb     *redis.Client
	ps      *redis.PubSub
	hooks   []events.Hook
}

// New returns a PubSub that subscribes to channel, calling hooks with every
// event published to it.
func New(
	rdb *redis.Client,
	channel string,
	hooks ...events.Hook,
) (*PubSub, error) {
	ps := rdb.Subscribe(channel)
	_, err := ps.Receive()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %s", channel)
	}

	p := NewPublisher(rdb, channel)
	p.ps = ps
	p.hooks = hooks

	go p.watch()
	return p, nil
}

// NewPublisher returns a PubSub that only publishes to channel. It holds no
// subscription, so nothing it publishes is read back.
func NewPublisher(rdb *redis.Client, channel string) *PubSub {
	return &PubSub{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":    "events/redis",
			"channel": channel,
		}),
		rdb:     rdb,
		channel: channel,
	}
}

func (p *PubSub) Submit(ctx context.Context, event *nostr.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := event.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(&message{
		Event:          event,
		SubmissionTime: time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	start := time.Now()
	result := p.rdb.Publish(p.channel, string(raw))
	submitHistogram.WithLabelValues(p.channel).Observe(time.Since(start).Seconds())

	return result.Err()
}

// Hook returns a hook that submits every event it is called with, logging
// failures.
func (p *PubSub) Hook() events.Hook {
	log := p.log.WithField("method", "Hook")
	return func(e *nostr.Event) {
		if err := p.Submit(context.Background(), e); err != nil {
			log.WithError(err).WithField("event", e.ID).Warn("failed to mirror event")
		}
	}
}

func (p *PubSub) Close() error {
	if p.ps == nil {
		return nil
	}
	return p.ps.Close()
}

func (p *PubSub) watch() {
	log := p.log.WithField("method", "watch")
	eventCh := p.ps.Channel()

	for msg := range eventCh {
		m := &message{}
		if err := json.Unmarshal([]byte(msg.Payload), m); err != nil {
			log.WithError(err).Warn("invalid message in channel, ignoring")
			continue
		}
		if m.Event == nil {
			log.Warn("message without event in channel, ignoring")
			continue
		}
		if err := m.Event.Validate(); err != nil {
			log.WithError(err).Warn("invalid event in channel, ignoring")
			continue
		}

		visibilityHistogram.WithLabelValues(p.channel).Observe(time.Since(m.SubmissionTime).Seconds())

		for _, h := range p.hooks {
			h(m.Event)
		}
	}
}
