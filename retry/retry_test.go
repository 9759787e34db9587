package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay(t *testing.T) {
	step := 100 * time.Millisecond
	max := 500 * time.Millisecond

	assert.Equal(t, 100*time.Millisecond, Delay(1, step, max))
	assert.Equal(t, 300*time.Millisecond, Delay(3, step, max))
	assert.Equal(t, 500*time.Millisecond, Delay(5, step, max))
	assert.Equal(t, 500*time.Millisecond, Delay(9, step, max), "delay is clamped to max")
	assert.Equal(t, 100*time.Millisecond, Delay(0, step, max), "attempt below 1 treated as 1")
}

func TestLinear_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := Linear(context.Background(), operation, nil, 3, 10*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestLinear_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := Linear(context.Background(), operation, nil, 5, 10*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestLinear_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := Linear(context.Background(), operation, nil, 3, 10*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestLinear_NonRetryableFailsFast(t *testing.T) {
	attempts := 0
	fatal := errors.New("bad request")
	operation := func() error {
		attempts++
		return fatal
	}
	retryable := func(err error) bool { return false }

	err := Linear(context.Background(), operation, retryable, 5, 10*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, attempts, "non-retryable errors stop immediately")
}

func TestLinear_RetryablePredicate(t *testing.T) {
	transient := errors.New("throttled")
	fatal := errors.New("bad request")
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 1 {
			return transient
		}
		return fatal
	}
	retryable := func(err error) bool { return errors.Is(err, transient) }

	err := Linear(context.Background(), operation, retryable, 5, 10*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, fatal, err)
	assert.Equal(t, 2, attempts, "retries the transient error then stops on the fatal one")
}

func TestLinear_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("error")
	}

	err := Linear(ctx, operation, nil, 10, 10*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestLinear_ZeroMaxAttempts(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	err := Linear(context.Background(), operation, nil, 0, 10*time.Millisecond, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrInvalidMaxAttempts)
	assert.Equal(t, 0, attempts, "should not attempt with maxAttempts=0")
}

func TestSleep_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_Elapses(t *testing.T) {
	start := time.Now()
	err := Sleep(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
