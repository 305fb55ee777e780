package breaker

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcf000/rediskit/pkg/connection"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func TestExecuteSuccess(t *testing.T) {
	b := New("test-success", DefaultConfig())

	result, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", result)
	assert.Equal(t, "closed", b.State())
}

func TestOpensAfterConsecutiveTransientFailures(t *testing.T) {
	b := New("test-opens", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, errConnRefused
		})
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	// Short-circuited calls never invoke the operation.
	invoked := false
	_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestNonTransientErrorsDoNotTrip(t *testing.T) {
	b := New("test-non-transient", Config{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, connection.ErrNotFound
		})
		assert.ErrorIs(t, err, connection.ErrNotFound)
	}
	assert.Equal(t, "closed", b.State())
}

func TestRecoversAfterTimeout(t *testing.T) {
	b := New("test-recovers", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, errConnRefused
	})
	require.Error(t, err)
	require.Equal(t, "open", b.State())

	time.Sleep(80 * time.Millisecond)

	// The single trial call closes the circuit on success.
	result, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, "closed", b.State())
}

func TestReopensOnFailedTrial(t *testing.T) {
	b := New("test-reopens", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, _ = b.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, errConnRefused
	})
	require.Equal(t, "open", b.State())

	time.Sleep(80 * time.Millisecond)

	_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, errConnRefused
	})
	require.Error(t, err)
	assert.Equal(t, "open", b.State())
}

func TestExecuteWithFallback(t *testing.T) {
	b := New("test-fallback", Config{FailureThreshold: 5, RecoveryTimeout: time.Minute})
	ctx := context.Background()

	result := b.ExecuteWithFallback(ctx, func(ctx context.Context) (any, error) {
		return "direct", nil
	}, func(err error) any {
		t.Fatal("fallback should not run on success")
		return nil
	})
	assert.Equal(t, "direct", result)

	result = b.ExecuteWithFallback(ctx, func(ctx context.Context) (any, error) {
		return nil, errConnRefused
	}, func(err error) any {
		assert.Error(t, err)
		return "fallback"
	})
	assert.Equal(t, "fallback", result)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", connection.ErrNotFound, false},
		{"caller cancellation", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("timeout")}, true},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"connection refused text", errConnRefused, true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"pool timeout text", errors.New("redis: connection pool timeout"), true},
		{"application error", errors.New("WRONGTYPE Operation against a key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
