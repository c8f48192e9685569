package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lankaconnect/events-backend/config"
)

var (
	RedisClient *redis.Client
	Ctx         = context.Background()
)

// ErrEventLocked is returned when another request holds the lock for the
// same event and it is not released within the wait window.
var ErrEventLocked = errors.New("event is locked by another request")

var (
	lockTTL       = 10 * time.Second
	lockRetryWait = 50 * time.Millisecond
	lockMaxWait   = 3 * time.Second
)

// lockClient is the slice of the Redis API the event lock needs. *redis.Client
// satisfies it; tests substitute a fake.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

const (
	// Both scripts check the token so one holder never touches another's lease.
	lockExtendScript  = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`
	lockReleaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
)

// InitRedis connects the shared Redis client used for event locks and the
// event summary cache.
func InitRedis(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := RedisClient.Ping(Ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// WithEventLock serializes all capacity- and commitment-mutating work on one
// event across processes. Capacity checks are read-then-write against the
// aggregate, so two concurrent registrations could both pass the check
// before either commits; holding this lock for the whole
// load-check-mutate-save sequence closes that window.
func WithEventLock(ctx context.Context, eventID string, fn func() error) error {
	return withEventLock(ctx, RedisClient, eventID, fn)
}

func withEventLock(ctx context.Context, client lockClient, eventID string, fn func() error) error {
	key := "lock:event:" + eventID
	token := fmt.Sprintf("%d", time.Now().UnixNano())

	deadline := time.Now().Add(lockMaxWait)
	for {
		ok, err := client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire event lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrEventLocked
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}

	// The critical section can outlive the lease when it blocks on a slow
	// payment-gateway call; keep extending the lease while fn runs so a
	// concurrent request cannot acquire the lock mid-section.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = client.Eval(Ctx, lockExtendScript, []string{key}, token, lockTTL.Milliseconds()).Err()
			}
		}
	}()

	defer func() {
		close(stop)
		wg.Wait()
		_ = client.Eval(Ctx, lockReleaseScript, []string{key}, token).Err()
	}()

	return fn()
}
