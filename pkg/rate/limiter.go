package rate

import (
	"sync"

	"github.com/go-redis/redis_rate/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	redisKeyPrefix = "nostrbtc:publisher:"

	// DefaultMaxKeys bounds the number of keys a local limiter tracks. Keys
	// are publisher pubkeys, which are attacker controlled.
	DefaultMaxKeys = 100_000
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type redisRateLimiter struct {
	l     *redis_rate.Limiter
	limit *redis_rate.Limit
}

// NewRedisRateLimiter returns a redis backed limiter, shared by every
// process using the same redis.
func NewRedisRateLimiter(limiter *redis_rate.Limiter, limit *redis_rate.Limit) Limiter {
	return &redisRateLimiter{
		l:     limiter,
		limit: limit,
	}
}

// Allow implements limiter.Allow.
func (r *redisRateLimiter) Allow(key string) (bool, error) {
	result, err := r.l.Allow(redisKeyPrefix+key, r.limit)
	if err != nil {
		return false, errors.Wrap(err, "failed to check rate limit")
	}

	return result.Allowed, nil
}

type localRateLimiter struct {
	limit rate.Limit
	burst int

	sync.Mutex
	limiters *lru.Cache
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second per key. At most maxKeys keys are tracked; the least recently
// used key is forgotten first.
func NewLocalRateLimiter(limit rate.Limit, maxKeys int) (Limiter, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create limiter cache")
	}

	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: cache,
	}, nil
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.Lock()
	var limiter *rate.Limiter
	if cached, ok := l.limiters.Get(key); ok {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.Unlock()

	return limiter.Allow(), nil
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(key string) (bool, error) {
	return true, nil
}
