package xsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// DeadlockTimeout is how long a lock may be held before it is reported
// to the error monitor.
var DeadlockTimeout = time.Minute

func fixCtx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// Mutex is a mutual exclusion lock that can be awaited with a context.
// The zero value is an unlocked mutex.
type Mutex struct {
	initOnce sync.Once
	sem      chan struct{}

	cancelFunc       context.CancelFunc
	deadlockNotifier *time.Timer
}

func (m *Mutex) semaphore() chan struct{} {
	// created lazily to keep the zero value usable
	m.initOnce.Do(func() {
		m.sem = make(chan struct{}, 1)
	})
	return m.sem
}

// ManualLock waits for the lock or for ctx to be done.
func (m *Mutex) ManualLock(ctx context.Context) error {
	ctx = fixCtx(ctx)
	noLogging := IsNoLogging(ctx)
	l := logger.FromCtx(ctx)
	if !noLogging {
		l.Tracef("locking")
	}

	select {
	case m.semaphore() <- struct{}{}:
	case <-ctx.Done():
		if !noLogging {
			l.Tracef("gave up locking: %v", ctx.Err())
		}
		return ctx.Err()
	}

	var notifierCtx context.Context
	notifierCtx, m.cancelFunc = context.WithCancel(context.WithoutCancel(ctx))
	deadlockNotifier := time.NewTimer(DeadlockTimeout)
	go func() {
		select {
		case <-notifierCtx.Done():
			return
		case <-deadlockNotifier.C:
		}
		errmon.ObserveErrorCtx(notifierCtx, fmt.Errorf("the lock is held for more than %v", DeadlockTimeout))
	}()
	m.deadlockNotifier = deadlockNotifier

	if !noLogging {
		l.Tracef("locked")
	}
	return nil
}

func (m *Mutex) ManualUnlock(ctx context.Context) {
	ctx = fixCtx(ctx)
	noLogging := IsNoLogging(ctx)
	l := logger.FromCtx(ctx)
	if !noLogging {
		l.Tracef("unlocking")
	}

	m.deadlockNotifier.Stop()
	m.cancelFunc()
	m.deadlockNotifier, m.cancelFunc = nil, nil

	select {
	case <-m.semaphore():
	default:
		panic("unlock of an unlocked mutex")
	}
	if !noLogging {
		l.Tracef("unlocked")
	}
}

// Do runs fn under the lock; fn is not called if ctx is done before the
// lock is acquired.
func (m *Mutex) Do(
	ctx context.Context,
	fn func(),
) error {
	if err := m.ManualLock(ctx); err != nil {
		return err
	}
	defer m.ManualUnlock(ctx)
	fn()
	return nil
}

func DoR1[R0 any](
	ctx context.Context,
	m *Mutex,
	fn func() R0,
) (R0, error) {
	var r0 R0
	err := m.Do(ctx, func() {
		r0 = fn()
	})
	return r0, err
}

// DoR1E is DoR1 for functions that return an error themselves.
func DoR1E[R0 any](
	ctx context.Context,
	m *Mutex,
	fn func() (R0, error),
) (R0, error) {
	var (
		r0   R0
		fErr error
	)
	if err := m.Do(ctx, func() {
		r0, fErr = fn()
	}); err != nil {
		return r0, err
	}
	return r0, fErr
}

// DoE is Do for functions that return an error.
func DoE(
	ctx context.Context,
	m *Mutex,
	fn func() error,
) error {
	var fErr error
	if err := m.Do(ctx, func() {
		fErr = fn()
	}); err != nil {
		return err
	}
	return fErr
}
