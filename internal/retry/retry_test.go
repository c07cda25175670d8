package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	t.Cleanup(func() { sleep = orig })
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&RetryableError{StatusCode: 429}))
	assert.True(t, IsRetryable(fmt.Errorf("embed batch: %w", &RetryableError{StatusCode: 503})))
	assert.False(t, IsRetryable(errors.New("bad request")))
	assert.False(t, IsRetryable(nil))
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/2)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	noSleep(t)
	calls := 0
	err := Do(context.Background(), nil, "embed", func(context.Context) error {
		calls++
		if calls < 2 {
			return &RetryableError{StatusCode: 500, Message: "overloaded"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	noSleep(t)
	calls := 0
	perm := errors.New("status 400")
	err := Do(context.Background(), nil, "embed", func(context.Context) error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	noSleep(t)
	calls := 0
	err := Do(context.Background(), nil, "complete", func(context.Context) error {
		calls++
		return &RetryableError{StatusCode: 429}
	})
	assert.True(t, IsRetryable(err))
	assert.Equal(t, MaxRetries, calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
}
