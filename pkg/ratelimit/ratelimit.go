// Package ratelimit caps how often a key (usually a client IP) may hit an
// endpoint within a window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits in the quota.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Window is the quota period, used for Retry-After hints.
	Window() time.Duration
}

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same redis.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

// incrWindow bumps the counter and gives it a TTL when it has none, in one
// step, so a key can never be left counting forever.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":" + key
	n, err := incrWindow.Run(ctx, l.rdb, []string{k}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Annotate(err, "rate limit incr")
	}
	return n <= l.limit, nil
}

func (l *RedisLimiter) Window() time.Duration { return l.window }

// Dial connects to addr and checks it answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Annotatef(err, "redis ping %s", addr)
	}
	return rdb, nil
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key in process. The bucket holds
// limit tokens and refills one every window/limit. Keys idle for a full
// window are forgotten.
type MemoryLimiter struct {
	mu     sync.Mutex
	clock  clock.Clock
	limit  int
	window time.Duration
	keys   map[string]*entry
	lastGC time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, clk clock.Clock) *MemoryLimiter {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryLimiter{
		clock:  clk,
		limit:  limit,
		window: window,
		keys:   map[string]*entry{},
		lastGC: clk.Now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) >= l.window {
		for k, e := range l.keys {
			if now.Sub(e.lastSeen) >= l.window {
				delete(l.keys, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.keys[key]
	if !ok {
		every := rate.Every(l.window / time.Duration(l.limit))
		e = &entry{limiter: rate.NewLimiter(every, l.limit)}
		l.keys[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) Window() time.Duration { return l.window }

// tracked reports how many keys are held, for tests.
func (l *MemoryLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
