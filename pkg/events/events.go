package events

import (
	"context"

	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

// Hook is invoked for every delivered event, one event at a time.
type Hook func(*nostr.Event)

// Submitter delivers events to its hooks.
type Submitter interface {
	Submit(context.Context, *nostr.Event) error
}
