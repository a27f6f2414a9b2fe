package businessflow

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sitearc/docnum/models"
	"github.com/sitearc/docnum/utils"
)

// LockHandle identifies one held lock. The token guards release: a process
// must never delete a lock that expired and was re-acquired by someone else.
type LockHandle struct {
	Key   string
	Token string
}

// LockCoordinator is a best-effort cross-process mutual exclusion primitive
// keyed by counter key. It is a latency optimization only: acquisition failure
// reports ok=false and the caller proceeds on the counter's compare-and-swap
// path, which is the sole correctness guarantee.
type LockCoordinator interface {
	Acquire(ctx context.Context, key models.CounterKey, ttl time.Duration) (*LockHandle, bool)
	Release(ctx context.Context, handle *LockHandle)
}

// LockPolicy bounds acquisition retries under contention.
type LockPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
	Jitter     time.Duration
}

// DefaultLockPolicy returns the standard bounded policy.
func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		MaxRetries: utils.LockMaxRetries,
		RetryDelay: utils.LockRetryDelay,
		Jitter:     utils.LockRetryJitter,
	}
}

// releaseScript deletes the lock only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLockCoordinator implements LockCoordinator on a Redis instance using
// SETNX with a per-holder token and a TTL.
type RedisLockCoordinator struct {
	rc     *redis.Client
	policy LockPolicy
}

// NewRedisLockCoordinator creates a Redis-backed lock coordinator
func NewRedisLockCoordinator(rc *redis.Client, policy LockPolicy) *RedisLockCoordinator {
	if policy.MaxRetries <= 0 {
		policy = DefaultLockPolicy()
	}
	return &RedisLockCoordinator{rc: rc, policy: policy}
}

// Acquire attempts SETNX with bounded, jittered retries. Any Redis error or
// retry exhaustion reports ok=false; errors are never surfaced to the caller.
func (l *RedisLockCoordinator) Acquire(ctx context.Context, key models.CounterKey, ttl time.Duration) (*LockHandle, bool) {
	lockKey := key.LockKey()
	token := uuid.NewString()

	for attempt := 0; attempt < l.policy.MaxRetries; attempt++ {
		ok, err := l.rc.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			log.Printf("lock coordinator unavailable for %s: %v", lockKey, err)
			return nil, false
		}
		if ok {
			return &LockHandle{Key: lockKey, Token: token}, true
		}

		if attempt < l.policy.MaxRetries-1 {
			delay := l.policy.RetryDelay
			if l.policy.Jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(l.policy.Jitter)))
			}
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(delay):
			}
		}
	}

	return nil, false
}

// Release deletes the lock if it is still held by this token. A failed
// release is harmless; the TTL reclaims the lock.
func (l *RedisLockCoordinator) Release(ctx context.Context, handle *LockHandle) {
	if handle == nil {
		return
	}
	if err := releaseScript.Run(ctx, l.rc, []string{handle.Key}, handle.Token).Err(); err != nil && err != redis.Nil {
		log.Printf("failed to release lock %s: %v", handle.Key, err)
	}
}

// NoopLockCoordinator always succeeds immediately. Used for single-instance
// deployments and tests, where the counter's compare-and-swap alone suffices.
type NoopLockCoordinator struct{}

func NewNoopLockCoordinator() *NoopLockCoordinator { return &NoopLockCoordinator{} }

func (NoopLockCoordinator) Acquire(_ context.Context, key models.CounterKey, _ time.Duration) (*LockHandle, bool) {
	return &LockHandle{Key: key.LockKey()}, true
}

func (NoopLockCoordinator) Release(context.Context, *LockHandle) {}
