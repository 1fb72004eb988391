package broadcast

import (
	"context"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin/rpc"
)

// Mode is the submission strategy used for a set of transactions.
type Mode int

const (
	ModeNone Mode = iota
	ModeSingle
	ModePackage
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSingle:
		return "single"
	case ModePackage:
		return "package"
	default:
		return "unknown"
	}
}

// Outcome is the result of a single transaction submission.
type Outcome struct {
	TxID     string
	Accepted bool
	// Reason is the node supplied rejection reason.
	Reason string
}

// Report describes a dispatch.
type Report struct {
	Mode Mode

	// TxIDs lists every submitted transaction, in submission order,
	// regardless of whether the node accepted it.
	TxIDs []string

	// Single is set for ModeSingle.
	Single *Outcome

	// Package is the node's aggregate result for ModePackage. It is not
	// broken down into per transaction acceptance.
	Package *rpc.PackageResult
}

// Summary returns a human readable line listing the submitted transactions.
func (r *Report) Summary() string {
	return "Submitted transactions: " + strings.Join(r.TxIDs, ",")
}

// Dispatch submits txs to the node.
//
// No transactions is a no-op. A single transaction is submitted with
// SendRawTransaction, since packages of one are not guaranteed to be
// accepted; a rejection is recorded in the report and is not an error. Two or
// more transactions are submitted as one package, in order, and a failed
// package submission is returned as an error.
func Dispatch(ctx context.Context, node rpc.Submitter, txs []*btcutil.Tx) (*Report, error) {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":   "broadcast",
		"method": "Dispatch",
	})

	r := &Report{
		TxIDs: make([]string, len(txs)),
	}
	for i, tx := range txs {
		r.TxIDs[i] = tx.Hash().String()
	}

	switch len(txs) {
	case 0:
		r.Mode = ModeNone
		return r, nil
	case 1:
		r.Mode = ModeSingle
		r.Single = &Outcome{TxID: r.TxIDs[0]}

		if _, err := node.SendRawTransaction(ctx, txs[0].MsgTx()); err != nil {
			submissionCounter.WithLabelValues(ModeSingle.String(), resultFailure).Inc()
			r.Single.Reason = err.Error()
			log.WithError(err).WithField("txid", r.Single.TxID).Warn("Error broadcasting tx")
		} else {
			submissionCounter.WithLabelValues(ModeSingle.String(), resultSuccess).Inc()
			r.Single.Accepted = true
			log.WithField("txid", r.Single.TxID).Info("Broadcasted tx")
		}
	default:
		r.Mode = ModePackage

		msgs := make([]*wire.MsgTx, len(txs))
		for i, tx := range txs {
			msgs[i] = tx.MsgTx()
		}

		result, err := node.SubmitPackage(ctx, msgs)
		if err != nil {
			submissionCounter.WithLabelValues(ModePackage.String(), resultFailure).Inc()
			return r, errors.Wrap(err, "failed to submit package")
		}
		submissionCounter.WithLabelValues(ModePackage.String(), resultSuccess).Inc()

		r.Package = result
		log.WithField("result", result.String()).Info("Submitted package")
	}

	log.Info(r.Summary())
	return r, nil
}
