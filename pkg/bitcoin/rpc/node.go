package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// Submitter submits transactions to a node's mempool.
type Submitter interface {
	// SendRawTransaction submits a single transaction, returning its txid.
	//
	// A rejection by the node is returned as an *RPCError carrying the
	// node-supplied reason.
	SendRawTransaction(ctx context.Context, tx *wire.MsgTx) (string, error)

	// SubmitPackage submits a package of two or more transactions, in order.
	//
	// The returned result is the node's aggregate result; individual
	// transactions may have been rejected even when no error is returned.
	SubmitPackage(ctx context.Context, txs []*wire.MsgTx) (*PackageResult, error)
}

// Node is a bitcoin node that transactions can be submitted to.
type Node interface {
	Submitter

	GetNetworkInfo(ctx context.Context) (*NetworkInfo, error)
}

// NetworkInfo is a subset of the getnetworkinfo result.
type NetworkInfo struct {
	Version         int64  `json:"version"`
	SubVersion      string `json:"subversion"`
	ProtocolVersion int64  `json:"protocolversion"`
	Connections     int64  `json:"connections"`
	NetworkActive   bool   `json:"networkactive"`
}

// PackageResult is the result of a submitpackage call.
type PackageResult struct {
	PackageMsg           string                     `json:"package_msg"`
	TxResults            map[string]PackageTxResult `json:"tx-results"`
	ReplacedTransactions []string                   `json:"replaced-transactions,omitempty"`
}

// PackageTxResult is the per transaction part of a PackageResult, keyed by
// wtxid.
type PackageTxResult struct {
	TxID       string       `json:"txid"`
	OtherWtxID string       `json:"other-wtxid,omitempty"`
	VSize      int64        `json:"vsize,omitempty"`
	Fees       *PackageFees `json:"fees,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// PackageFees are the fees paid by a package transaction, in BTC.
type PackageFees struct {
	Base              float64  `json:"base"`
	EffectiveFeeRate  float64  `json:"effective-feerate,omitempty"`
	EffectiveIncludes []string `json:"effective-includes,omitempty"`
}

func (r *PackageResult) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	return string(b)
}

// RPCError is an error returned by the node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}
