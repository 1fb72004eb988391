package memory

import (
	"context"
	"sync"

	"github.com/kinecosystem/nostrbtc/pkg/events"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
)

// PubSub is an in-process Submitter. Hooks are called synchronously, in
// submission order, and never concurrently.
type PubSub struct {
	mu    sync.Mutex
	hooks []events.Hook
}

func New(hooks ...events.Hook) *PubSub {
	return &PubSub{
		hooks: hooks,
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

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.hooks {
		h(event)
	}

	return nil
}
