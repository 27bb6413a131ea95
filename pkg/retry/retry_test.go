package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errConflict = errors.New("conflict")

func TestRetrier_SucceedsAfterConflicts(t *testing.T) {
	r := OptimisticLockRetrier(5, 0, func(err error) bool { return errors.Is(err, errConflict) })

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errConflict
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_Exhausted(t *testing.T) {
	r := OptimisticLockRetrier(4, 0, func(err error) bool { return errors.Is(err, errConflict) })

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errConflict
	})

	assert.Equal(t, 4, calls)
	assert.True(t, IsExhausted(err))
	assert.ErrorIs(t, err, errConflict)
}

func TestRetrier_NonRetryableReturnedImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(0)).Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, boom, err)
	assert.False(t, IsExhausted(err))
}

func TestRetrier_PermanentStopsRetryIf(t *testing.T) {
	r := New(WithMaxAttempts(5), WithInitialDelay(0), WithRetryIf(func(error) bool { return true }))

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errConflict)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, errConflict, err)
}

func TestDoWithData(t *testing.T) {
	r := New(WithMaxAttempts(2), WithInitialDelay(0))

	calls := 0
	v, err := DoWithData(context.Background(), r, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errConflict)
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
