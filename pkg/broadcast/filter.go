package broadcast

import (
	"github.com/kinecosystem/nostrbtc/pkg/bitcoin"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

const (
	// MagicTagKey is the key of the tag carrying the target network magic.
	MagicTagKey = "magic"

	// TransactionsTagKey is the key of the tag carrying hex encoded
	// transactions.
	TransactionsTagKey = "transactions"

	// DefaultKind is the event kind transaction broadcasts are published as.
	DefaultKind = 28333
)

// MatchesNetwork returns whether the event targets the network identified by
// target.
//
// Only the first magic tag is considered. A missing tag, a tag without a
// value, or a value that is not a valid magic never matches.
func MatchesNetwork(e *nostr.Event, target bitcoin.Magic) bool {
	tag, ok := e.Tags.Find(nostr.WithKey(MagicTagKey))
	if !ok {
		return false
	}

	values := tag.Values()
	if len(values) == 0 {
		return false
	}

	magic, err := bitcoin.ParseMagic(values[0])
	if err != nil {
		return false
	}

	return magic == target
}
