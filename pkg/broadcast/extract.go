package broadcast

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

// MalformedPayload is a transactions tag entry that failed to decode.
type MalformedPayload struct {
	// Index is the position of the entry within the tag values.
	Index int
	Err   error
}

// ExtractTransactions decodes the transactions carried by the first
// transactions tag of the event, in tag order.
//
// Entries that fail to decode are skipped. An event without a transactions
// tag yields no transactions.
func ExtractTransactions(e *nostr.Event) []*btcutil.Tx {
	txs, _ := ExtractTransactionsWithFailures(e)
	return txs
}

// ExtractTransactionsWithFailures is ExtractTransactions, additionally
// returning the entries that were skipped.
func ExtractTransactionsWithFailures(e *nostr.Event) (txs []*btcutil.Tx, malformed []MalformedPayload) {
	tag, ok := e.Tags.Find(nostr.WithKey(TransactionsTagKey))
	if !ok {
		return nil, nil
	}

	for i, payload := range tag.Values() {
		tx, err := bitcoin.DecodeTransaction(payload)
		if err != nil {
			malformed = append(malformed, MalformedPayload{Index: i, Err: err})
			continue
		}

		txs = append(txs, tx)
	}

	return txs, malformed
}
