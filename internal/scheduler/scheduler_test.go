package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_BadTimezone(t *testing.T) {
	_, err := New(quiet(), Config{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestRegister_BadSpec(t *testing.T) {
	s, err := New(quiet(), Config{})
	require.NoError(t, err)

	assert.Error(t, s.Register("broken", "every now and then", func(context.Context) error { return nil }))
}

func TestRun_TicksAndStops(t *testing.T) {
	s, err := New(quiet(), Config{Timezone: "UTC"})
	require.NoError(t, err)

	var ticks atomic.Int32
	var sawCancel atomic.Bool

	require.NoError(t, s.Register("counter", "@every 1s", func(ctx context.Context) error {
		ticks.Add(1)
		return errors.New("logged, not fatal")
	}))
	require.NoError(t, s.Register("long", "@every 1s", func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.True(t, sawCancel.Load())
}

func TestRun_TimeoutBoundsTick(t *testing.T) {
	s, err := New(quiet(), Config{Timezone: "UTC", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	ended := make(chan error, 1)
	require.NoError(t, s.Register("stuck", "@every 1s", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			ended <- errors.New("tick without deadline")
			return nil
		}
		<-ctx.Done()
		select {
		case ended <- ctx.Err():
		default:
		}
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("tick was not bounded")
	}
}
