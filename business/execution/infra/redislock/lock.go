// Package redislock provides a Redis advisory lock so only one instance
// executes a given opportunity key.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/spatial-arb/internal/apperror"
)

// unlockScript deletes the key only while it still holds our token.
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// refreshScript extends the TTL only while the key still holds our token.
const refreshScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

const keyPrefix = "arb:lock:"

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Locker implements SETNX locks with a token-checked release. Held locks
// are refreshed every third of their TTL until released.
type Locker struct {
	rdb     *redis.Client
	unlock  *redis.Script
	refresh *redis.Script
}

// New creates a locker. The connection is dialed lazily.
func New(cfg Config) *Locker {
	return &Locker{
		rdb: redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: 2 * time.Second,
			MaxRetries:  1,
		}),
		unlock:  redis.NewScript(unlockScript),
		refresh: redis.NewScript(refreshScript),
	}
}

// Key returns the Redis key guarding name.
func Key(name string) string {
	return keyPrefix + name
}

// UnlockScript returns the release script source.
func UnlockScript() string {
	return unlockScript
}

// Acquire takes the lock for ttl. It returns CodeLockHeld when another
// holder owns it. The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	key := Key(name)

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperror.New(apperror.CodeLockFailed, apperror.WithContext(name), apperror.WithCause(err))
	}
	if !ok {
		return nil, apperror.New(apperror.CodeLockHeld, apperror.WithContext(name))
	}

	stop := make(chan struct{})
	go l.keepAlive(key, token, ttl, stop)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.unlock.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}
	return release, nil
}

// keepAlive extends the lock until stop closes or the token is lost.
func (l *Locker) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}) {
	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := l.refresh.Run(ctx, l.rdb, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

// Ping checks the connection.
func (l *Locker) Ping(ctx context.Context) error {
	if err := l.rdb.Ping(ctx).Err(); err != nil {
		return apperror.New(apperror.CodeServiceUnavailable, apperror.WithContext("redis"), apperror.WithCause(err))
	}
	return nil
}

// Close closes the connection pool.
func (l *Locker) Close() error {
	return l.rdb.Close()
}
