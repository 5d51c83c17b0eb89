/*
Package redislock provides a ledger.Locker shared by every engine replica.

Each account lock is a single key set with SET NX PX. The value is a random
token so only the holder can release it; release runs a compare-and-delete
script. The TTL bounds how long a crashed holder can block an account.
*/
package redislock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/warp/ledger-sync/ledger"
)

const (
	DefaultTTL    = 30 * time.Second
	DefaultRetry  = 50 * time.Millisecond
	DefaultPrefix = "ledger:lock:"
)

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

type Config struct {
	TTL    time.Duration
	Retry  time.Duration
	Prefix string
}

// Locker implements ledger.Locker on top of a redis client.
type Locker struct {
	rdb      *redis.Client
	cfg      Config
	newToken func() string
}

func New(rdb *redis.Client, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Locker{rdb: rdb, cfg: cfg, newToken: uuid.NewString}
}

var _ ledger.Locker = (*Locker)(nil)

func (l *Locker) key(accountID string) string {
	return l.cfg.Prefix + accountID
}

// Lock polls until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, accountID string) (func(), error) {
	key := l.key(accountID)
	token := l.newToken()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ledger.ErrLockTimeout, accountID, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		timer := time.NewTimer(l.cfg.Retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ledger.ErrLockTimeout, accountID, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
				// the TTL frees the key eventually
				log.Printf("[Lock] Error releasing %s: %v", key, err)
			}
		})
	}
}

// Ping checks the connection.
func (l *Locker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
