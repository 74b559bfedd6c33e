package xsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexDo(t *testing.T) {
	ctx := context.Background()
	var (
		m       Mutex
		counter int
	)
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				assert.NoError(t, m.Do(ctx, func() { counter++ }))
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	require.Equal(t, 1000, counter)
}

func TestMutexLockCancelled(t *testing.T) {
	ctx := context.Background()
	var m Mutex
	require.NoError(t, m.ManualLock(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	called := false
	err := m.Do(waitCtx, func() { called = true })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, called)

	m.ManualUnlock(ctx)
	require.NoError(t, m.Do(ctx, func() { called = true }))
	require.True(t, called)
}

func TestDoR1E(t *testing.T) {
	ctx := context.Background()
	var m Mutex

	v, err := DoR1E(ctx, &m, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, v)

	errTest := errors.New("test")
	_, err = DoR1E(ctx, &m, func() (int, error) { return 0, errTest })
	require.ErrorIs(t, err, errTest)

	require.ErrorIs(t, DoE(ctx, &m, func() error { return errTest }), errTest)

	v, err = DoR1(WithNoLogging(ctx, true), &m, func() int { return 7 })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestUnlockOfUnlocked(t *testing.T) {
	var m Mutex
	require.NoError(t, m.ManualLock(context.Background()))
	m.ManualUnlock(context.Background())
	require.Panics(t, func() {
		m.deadlockNotifier = time.NewTimer(time.Hour)
		m.cancelFunc = func() {}
		m.ManualUnlock(context.Background())
	})
}
