package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestScheduleDoubles(t *testing.T) {
	assert.Nil(t, Schedule(1))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, Schedule(3))
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, Schedule(5))
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := DoWithSleeper(context.Background(), 3, rec.sleep, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := DoWithSleeper(context.Background(), 3, rec.sleep, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 - unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestDoPropagatesLastFailure(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	err := DoWithSleeper(context.Background(), 4, rec.sleep, func(ctx context.Context) error {
		calls++
		return errors.New("attempt failed")
	})
	require.EqualError(t, err, "attempt failed")
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

func TestDoDefaultsToThreeAttempts(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	_ = DoWithSleeper(context.Background(), 0, rec.sleep, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.Equal(t, DefaultAttempts, calls)
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := DoWithSleeper(ctx, 5, func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}, func(ctx context.Context) error {
		calls++
		return errors.New("network down")
	})
	require.EqualError(t, err, "network down")
	assert.Equal(t, 1, calls)
}

func TestWaitWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitWithContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
