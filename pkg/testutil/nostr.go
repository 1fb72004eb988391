package testutil

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

// GenerateKey returns a new nostr identity key.
func GenerateKey(t *testing.T) *btcec.PrivateKey {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

// NewSignedEvent returns an event of the given kind and tags, signed by key.
func NewSignedEvent(t *testing.T, key *btcec.PrivateKey, kind int, tags ...nostr.Tag) *nostr.Event {
	e := &nostr.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      kind,
		Tags:      tags,
	}
	require.NoError(t, e.Sign(key))
	return e
}

// TransactionsTag returns a transactions tag carrying the provided payloads.
func TransactionsTag(payloads ...string) nostr.Tag {
	return append(nostr.Tag{"transactions"}, payloads...)
}

// MagicTag returns a magic tag with the provided value.
func MagicTag(magic string) nostr.Tag {
	return nostr.Tag{"magic", magic}
}
