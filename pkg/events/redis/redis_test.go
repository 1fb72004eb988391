package redis

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v7"
	redistest "github.com/kinecosystem/agora-common/redis/test"
	"github.com/ory/dockertest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinecosystem/nostrbtc/pkg/events"
	"github.com/kinecosystem/nostrbtc/pkg/events/tests"
	"github.com/kinecosystem/nostrbtc/pkg/nostr"
	"github.com/kinecosystem/nostrbtc/pkg/testutil"
)

var redisConnString string

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanUpFunc func()
	redisConnString, cleanUpFunc, err = redistest.StartRedis(context.Background(), pool)
	if err != nil {
		log.WithError(err).Error("Error starting redis connection")
		os.Exit(1)
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestRedis(t *testing.T) {
	ctor := func(hooks ...events.Hook) (events.Submitter, func()) {
		ps, err := New(
			redis.NewClient(&redis.Options{
				Addr: redisConnString,
			}),
			"test",
			hooks...,
		)
		require.NoError(t, err)

		return ps, func() { assert.NoError(t, ps.Close()) }
	}

	tests.RunTests(t, ctor)
}

func TestRedis_Hook(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisConnString,
	})

	var mu sync.Mutex
	var received []*nostr.Event
	subscriber, err := New(rdb, "hook", func(e *nostr.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})
	require.NoError(t, err)
	defer subscriber.Close()

	publisher := NewPublisher(rdb, "hook")
	defer publisher.Close()

	// Only the subscriber listens on the channel.
	subs, err := rdb.PubSubNumSub("hook").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, subs["hook"])

	e := testutil.NewSignedEvent(t, testutil.GenerateKey(t), 28333, testutil.MagicTag("f9beb4d9"))
	publisher.Hook()(e)

	// Invalid events are logged and dropped.
	invalid := *e
	invalid.PubKey = "abc"
	publisher.Hook()(&invalid)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, e.ID, received[0].ID)
	assert.NoError(t, received[0].Verify())
}

func TestRedis_PublisherClose(t *testing.T) {
	publisher := NewPublisher(redis.NewClient(&redis.Options{
		Addr: redisConnString,
	}), "close")
	assert.NoError(t, publisher.Close())
}
