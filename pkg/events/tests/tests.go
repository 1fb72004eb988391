package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinecosystem/nostrbtc/pkg/events"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
	"github.com/kinecosystem/nostrbtc/pkg/testutil"
)

type SubmitterCtor func(hooks ...events.Hook) (submitter events.Submitter, teardown func())

func RunTests(t *testing.T, ctor SubmitterCtor) {
	for _, tf := range []func(t *testing.T, ctor SubmitterCtor){
		testRoundTrip,
		testCancellation,
		testValidation,
	} {
		tf(t, ctor)
	}
}

func testRoundTrip(t *testing.T, ctor SubmitterCtor) {
	t.Run("TestRoundTrip", func(t *testing.T) {
		key := testutil.GenerateKey(t)

		hooks := make([]events.Hook, 5)
		called := make([][]*nostr.Event, len(hooks))

		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(len(hooks))

		for i := 0; i < len(hooks); i++ {
			idx := i
			hooks[i] = func(e *nostr.Event) {
				mu.Lock()
				defer mu.Unlock()

				called[idx] = append(called[idx], e)
				if len(called[idx]) == 5 {
					wg.Done()
				}
			}
		}

		s, teardown := ctor(hooks...)
		defer teardown()

		submitted := make([]*nostr.Event, 5)
		for i := 0; i < 5; i++ {
			submitted[i] = newEvent(t, key, i)
			assert.NoError(t, s.Submit(context.Background(), submitted[i]))
		}

		wg.Wait()

		for _, events := range called {
			require.Equal(t, 5, len(events))
			for i := 0; i < 5; i++ {
				assert.Equal(t, submitted[i].ID, events[i].ID)
				assert.Equal(t, submitted[i].Tags, events[i].Tags)
			}
		}
	})
}

func testCancellation(t *testing.T, ctor SubmitterCtor) {
	t.Run("TestCancellation", func(t *testing.T) {
		var called bool
		hook := func(_ *nostr.Event) {
			called = true
		}

		s, teardown := ctor(hook)
		defer teardown()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.Submit(ctx, newEvent(t, testutil.GenerateKey(t), 0))
		assert.Equal(t, context.Canceled, err)
		assert.False(t, called)
	})
}

func testValidation(t *testing.T, ctor SubmitterCtor) {
	t.Run("TestValidation", func(t *testing.T) {
		var called bool
		hook := func(_ *nostr.Event) {
			called = true
		}

		s, teardown := ctor(hook)
		defer teardown()

		e := newEvent(t, testutil.GenerateKey(t), 0)
		e.Kind = -1
		assert.NotNil(t, s.Submit(context.Background(), e))

		e = newEvent(t, testutil.GenerateKey(t), 0)
		e.Tags = append(e.Tags, nostr.Tag{})
		assert.NotNil(t, s.Submit(context.Background(), e))

		assert.False(t, called)
	})
}

func newEvent(t *testing.T, key *btcec.PrivateKey, i int) *nostr.Event {
	return testutil.NewSignedEvent(
		t,
		key,
		28333,
		testutil.MagicTag("f9beb4d9"),
		testutil.TransactionsTag(fmt.Sprintf("%02x", i)),
	)
}
