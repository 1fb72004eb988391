package broadcast

import (
	"github.com/kinecosystem/agora-common/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ignoreReasonKind    = "kind"
	ignoreReasonNetwork = "network"
	ignoreReasonNoTxns  = "no_transactions"
	ignoreReasonLimited = "rate_limited"
	resultSuccess       = "success"
	resultFailure       = "failure"
)

var (
	eventsProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "events_processed",
		Help:      "Number of events that passed the kind and network checks",
	})
	eventsIgnoredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "events_ignored",
		Help:      "Number of events ignored, by reason",
	}, []string{"reason"})
	malformedPayloadCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "malformed_payloads",
		Help:      "Number of transaction payloads dropped because they failed to decode",
	})
	submissionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "submissions",
		Help:      "Number of node submissions, by mode and result",
	}, []string{"mode", "result"})
)

func init() {
	eventsProcessedCounter = metrics.Register(eventsProcessedCounter).(prometheus.Counter)
	eventsIgnoredCounter = metrics.Register(eventsIgnoredCounter).(*prometheus.CounterVec)
	malformedPayloadCounter = metrics.Register(malformedPayloadCounter).(prometheus.Counter)
	submissionCounter = metrics.Register(submissionCounter).(*prometheus.CounterVec)
}
