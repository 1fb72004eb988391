package rpc

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/kinecosystem/agora-common/metrics"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
)

const (
	methodGetNetworkInfo     = "getnetworkinfo"
	methodSendRawTransaction = "sendrawtransaction"
	methodSubmitPackage      = "submitpackage"
)

var (
	callHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nostrbtc",
		Name:      "bitcoin_rpc_duration_seconds",
		Help:      "Duration of bitcoin node rpc calls",
	}, []string{"method"})
	callErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nostrbtc",
		Name:      "bitcoin_rpc_errors",
		Help:      "Number of bitcoin node rpc calls that failed, by method",
	}, []string{"method"})
)

func init() {
	callHistogram = metrics.Register(callHistogram).(*prometheus.HistogramVec)
	callErrorCounter = metrics.Register(callErrorCounter).(*prometheus.CounterVec)
}

// Client is a bitcoin core JSON-RPC client.
type Client struct {
	log    *logrus.Entry
	client jsonrpc.RPCClient
}

// New returns a client for the node at endpoint. Credentials are sent using
// HTTP basic auth when user is non-empty.
//
// If httpClient is nil, a client with a 30 second timeout is used.
func New(endpoint, user, password string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	opts := &jsonrpc.RPCClientOpts{
		HTTPClient: httpClient,
	}
	if user != "" {
		opts.CustomHeaders = map[string]string{
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password)),
		}
	}

	return &Client{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":     "bitcoin/rpc",
			"endpoint": endpoint,
		}),
		client: jsonrpc.NewClientWithOpts(endpoint, opts),
	}
}

// GetNetworkInfo implements Node.GetNetworkInfo.
func (c *Client) GetNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	info := &NetworkInfo{}
	if err := c.call(ctx, info, methodGetNetworkInfo); err != nil {
		return nil, err
	}

	return info, nil
}

// SendRawTransaction implements Submitter.SendRawTransaction.
func (c *Client) SendRawTransaction(ctx context.Context, tx *wire.MsgTx) (string, error) {
	raw, err := bitcoin.EncodeTransaction(tx)
	if err != nil {
		return "", err
	}

	var txid string
	if err := c.call(ctx, &txid, methodSendRawTransaction, raw); err != nil {
		return "", err
	}

	return txid, nil
}

// SubmitPackage implements Submitter.SubmitPackage.
func (c *Client) SubmitPackage(ctx context.Context, txs []*wire.MsgTx) (*PackageResult, error) {
	raw := make([]string, len(txs))
	for i, tx := range txs {
		encoded, err := bitcoin.EncodeTransaction(tx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode transaction %d", i)
		}
		raw[i] = encoded
	}

	result := &PackageResult{}
	// The package is a single positional parameter, so it must be wrapped
	// to avoid being spread into the params array.
	if err := c.call(ctx, result, methodSubmitPackage, []interface{}{raw}); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	log := c.log.WithField("method", method)

	start := time.Now()
	resp, err := c.client.Call(method, params...)
	callHistogram.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		callErrorCounter.WithLabelValues(method).Inc()
		log.WithError(err).Debug("rpc call failed")
		return errors.Wrapf(err, "failed to call %s", method)
	}
	if resp == nil {
		callErrorCounter.WithLabelValues(method).Inc()
		return errors.Errorf("empty response from %s", method)
	}
	if resp.Error != nil {
		callErrorCounter.WithLabelValues(method).Inc()
		return &RPCError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}

	if err := resp.GetObject(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", method)
	}

	return nil
}
