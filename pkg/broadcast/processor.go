package broadcast

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
	"github.com/kinecosystem/nostrbtc/pkg/rate"
)

// Config is the read-only configuration of a Processor.
type Config struct {
	// Kind is the event kind to act on.
	Kind int

	// Network is the network transactions are relayed for.
	Network bitcoin.Network
}

// Processor runs the filter, extract and dispatch pipeline for each event.
//
// Events are expected to be delivered one at a time. The processor holds no
// mutable state of its own; nothing is retained between events.
type Processor struct {
	log     *logrus.Entry
	config  Config
	magic   bitcoin.Magic
	node    rpc.Submitter
	limiter rate.Limiter
}

// NewProcessor returns a Processor submitting to node. Events are rate
// limited per publisher by limiter; a nil limiter never limits.
func NewProcessor(config Config, node rpc.Submitter, limiter rate.Limiter) *Processor {
	if limiter == nil {
		limiter = &rate.NoLimiter{}
	}

	return &Processor{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":    "broadcast/processor",
			"network": config.Network,
		}),
		config:  config,
		magic:   config.Network.Magic(),
		node:    node,
		limiter: limiter,
	}
}

// OnEvent implements events.Hook.
//
// Failures are logged and never propagated, so that a single event can not
// stop the subscription.
func (p *Processor) OnEvent(e *nostr.Event) {
	if _, err := p.Process(context.Background(), e); err != nil {
		p.log.WithError(err).WithField("event", e.ID).Warn("Error broadcasting txs")
	}
}

// Process runs the pipeline for e. The returned report is nil if the event
// was ignored before dispatch.
func (p *Processor) Process(ctx context.Context, e *nostr.Event) (*Report, error) {
	log := p.log.WithFields(logrus.Fields{
		"method": "Process",
		"event":  e.ID,
	})

	if e.Kind != p.config.Kind {
		eventsIgnoredCounter.WithLabelValues(ignoreReasonKind).Inc()
		log.WithField("kind", e.Kind).Trace("ignoring event of other kind")
		return nil, nil
	}

	if !MatchesNetwork(e, p.magic) {
		eventsIgnoredCounter.WithLabelValues(ignoreReasonNetwork).Inc()
		log.Debug("ignoring event for other network")
		return nil, nil
	}

	allowed, err := p.limiter.Allow(e.PubKey)
	if err != nil {
		log.WithError(err).Warn("failed to check publisher rate limit, allowing")
	} else if !allowed {
		eventsIgnoredCounter.WithLabelValues(ignoreReasonLimited).Inc()
		log.WithField("pubkey", e.PubKey).Warn("publisher rate limited, dropping event")
		return nil, nil
	}

	eventsProcessedCounter.Inc()

	txs, malformed := ExtractTransactionsWithFailures(e)
	for _, m := range malformed {
		malformedPayloadCounter.Inc()
		log.WithError(m.Err).WithField("index", m.Index).Warn("malformed transaction payload, skipping")
	}
	if len(txs) == 0 {
		eventsIgnoredCounter.WithLabelValues(ignoreReasonNoTxns).Inc()
	}

	return Dispatch(ctx, p.node, txs)
}
