package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Maruda-Patryk/api-library/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

func Test_WithExponentialBackoff_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, retry.WithBaseDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func Test_WithExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	},
		retry.WithBaseDelay(time.Millisecond),
		retry.WithRetryable(func(err error) bool { return errors.Is(err, errTransient) }),
	)

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func Test_WithExponentialBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, retry.WithMaxAttempts(3), retry.WithBaseDelay(time.Millisecond), retry.WithJitterFactor(0))

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func Test_WithExponentialBackoff_ContextCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := retry.WithExponentialBackoff(ctx, func(context.Context) error {
		cancel()
		return errTransient
	}, retry.WithBaseDelay(time.Hour))

	require.ErrorIs(t, err, context.Canceled)
}

func Test_WithExponentialBackoff_InvalidOptions(t *testing.T) {
	noop := func(context.Context) error { return nil }

	require.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithMaxAttempts(0)), retry.ErrInvalidMaxAttempts)
	require.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithBaseDelay(-time.Second)), retry.ErrNegativeBaseDelay)
	require.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithJitterFactor(1.5)), retry.ErrInvalidJitterFactor)
}
