package utils

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockClient scripts SetNX results and counts the token-guarded extend
// and release scripts. The last scripted result repeats once the script is
// exhausted; an empty script always grants the lock.
type fakeLockClient struct {
	mu          sync.Mutex
	setNXResult []bool
	setNXCalls  int
	extends     int
	releases    int
	lastKey     string
	lastToken   string
}

func (f *fakeLockClient) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey = key
	f.lastToken, _ = value.(string)
	res := true
	if len(f.setNXResult) > 0 {
		i := f.setNXCalls
		if i >= len(f.setNXResult) {
			i = len(f.setNXResult) - 1
		}
		res = f.setNXResult[i]
	}
	f.setNXCalls++
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(res)
	return cmd
}

func (f *fakeLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey = keys[0]
	if strings.Contains(script, "pexpire") {
		f.extends++
	} else {
		f.releases++
	}
	cmd := redis.NewCmd(ctx)
	cmd.SetVal(int64(1))
	return cmd
}

func (f *fakeLockClient) counts() (setNX, extends, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setNXCalls, f.extends, f.releases
}

func shortenLockWaits(t *testing.T, ttl, retry, maxWait time.Duration) {
	t.Helper()
	prevTTL, prevRetry, prevMax := lockTTL, lockRetryWait, lockMaxWait
	lockTTL, lockRetryWait, lockMaxWait = ttl, retry, maxWait
	t.Cleanup(func() {
		lockTTL, lockRetryWait, lockMaxWait = prevTTL, prevRetry, prevMax
	})
}

func TestWithEventLockRunsAndReleases(t *testing.T) {
	client := &fakeLockClient{}
	ran := false

	err := withEventLock(context.Background(), client, "ev-1", func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "lock:event:ev-1", client.lastKey)
	assert.NotEmpty(t, client.lastToken)
	_, _, releases := client.counts()
	assert.Equal(t, 1, releases)
}

func TestWithEventLockReleasesOnSectionError(t *testing.T) {
	client := &fakeLockClient{}
	boom := assert.AnError

	err := withEventLock(context.Background(), client, "ev-1", func() error {
		return boom
	})

	require.ErrorIs(t, err, boom)
	_, _, releases := client.counts()
	assert.Equal(t, 1, releases)
}

func TestWithEventLockContentionTimesOut(t *testing.T) {
	shortenLockWaits(t, 100*time.Millisecond, 5*time.Millisecond, 30*time.Millisecond)
	client := &fakeLockClient{setNXResult: []bool{false}}

	err := withEventLock(context.Background(), client, "ev-1", func() error {
		t.Fatal("critical section must not run while the lock is held elsewhere")
		return nil
	})

	require.ErrorIs(t, err, ErrEventLocked)
	setNX, _, releases := client.counts()
	assert.GreaterOrEqual(t, setNX, 2)
	assert.Zero(t, releases)
}

func TestWithEventLockRetriesUntilHolderReleases(t *testing.T) {
	shortenLockWaits(t, 100*time.Millisecond, 5*time.Millisecond, 500*time.Millisecond)
	client := &fakeLockClient{setNXResult: []bool{false, false, true}}
	ran := false

	err := withEventLock(context.Background(), client, "ev-1", func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	setNX, _, _ := client.counts()
	assert.Equal(t, 3, setNX)
}

func TestWithEventLockHonorsContextWhileWaiting(t *testing.T) {
	shortenLockWaits(t, 100*time.Millisecond, 20*time.Millisecond, time.Second)
	client := &fakeLockClient{setNXResult: []bool{false}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withEventLock(ctx, client, "ev-1", func() error {
		t.Fatal("critical section must not run")
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
}

// A section that outlives the lease must keep the lease alive, otherwise a
// concurrent request could acquire the lock mid-section and both would pass
// the capacity check.
func TestWithEventLockExtendsLeaseDuringLongSection(t *testing.T) {
	shortenLockWaits(t, 30*time.Millisecond, 5*time.Millisecond, 100*time.Millisecond)
	client := &fakeLockClient{}

	err := withEventLock(context.Background(), client, "ev-1", func() error {
		time.Sleep(80 * time.Millisecond)
		return nil
	})

	require.NoError(t, err)
	_, extends, releases := client.counts()
	assert.GreaterOrEqual(t, extends, 2)
	assert.Equal(t, 1, releases)
}

func TestWithEventLockStopsExtendingAfterRelease(t *testing.T) {
	shortenLockWaits(t, 30*time.Millisecond, 5*time.Millisecond, 100*time.Millisecond)
	client := &fakeLockClient{}

	err := withEventLock(context.Background(), client, "ev-1", func() error { return nil })
	require.NoError(t, err)

	_, extendsAtRelease, _ := client.counts()
	time.Sleep(50 * time.Millisecond)
	_, extendsLater, _ := client.counts()
	assert.Equal(t, extendsAtRelease, extendsLater)
}
