package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invest-tournament-system/cache"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TradeLocker serialises trades per (tournament, user). With redis configured the lock
// holds across instances; otherwise, or if redis is unreachable, a process-local mutex
// is used. Acquire never waits: a held lock fails fast with ErrTradeInProgress.
type TradeLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	local *xsync.MapOf[string, *sync.Mutex]
}

func NewTradeLocker(rdb *redis.Client, ttl time.Duration) *TradeLocker {
	return &TradeLocker{rdb: rdb, ttl: ttl, local: xsync.NewMapOf[string, *sync.Mutex]()}
}

func (l *TradeLocker) Acquire(ctx context.Context, tournamentID, userID string) (release func(), err error) {
	key := fmt.Sprintf(cache.KeyTradeLock, tournamentID, userID)

	if l.rdb != nil {
		token := uuid.NewString()
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err == nil {
			if !ok {
				return nil, ErrTradeInProgress
			}
			return func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if err := releaseLockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
					logrus.WithError(err).WithField("key", key).Warn("⚠️ [TRADE_LOCK] Failed to release redis lock, it will expire")
				}
			}, nil
		}
		logrus.WithError(err).Warn("⚠️ [TRADE_LOCK] Redis unavailable, falling back to local lock")
	}

	mu, _ := l.local.LoadOrCompute(key, func() *sync.Mutex { return &sync.Mutex{} })
	if !mu.TryLock() {
		return nil, ErrTradeInProgress
	}
	return mu.Unlock, nil
}
