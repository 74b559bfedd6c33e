package observability_test

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/observability"
)

func TestLogLevelFilter(t *testing.T) {
	ll := xlogrus.DefaultLogrusLogger()
	ll.Formatter.(*logrus.TextFormatter).TimestampFormat = "unit-test"
	ll.Formatter.(*logrus.TextFormatter).CallerPrettyfier = func(f *runtime.Frame) (function string, file string) {
		return "", ""
	}
	var buf bytes.Buffer
	ll.SetOutput(&buf)

	var filter observability.LogLevelFilterT
	filter.SetLevel(logger.LevelInfo)
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace).WithPreHooks(&filter)

	l.Debugf("hidden")
	require.Empty(t, buf.String())
	l.Infof("shown")
	require.Equal(t, "time=unit-test level=info msg=shown\n", buf.String())

	buf.Reset()
	filter.SetLevel(logger.LevelDebug)
	require.Equal(t, logger.LevelDebug, filter.GetLevel())
	l.Debugf("now shown")
	require.Equal(t, "time=unit-test level=debug msg=\"now shown\"\n", buf.String())
}

func TestCallSafe(t *testing.T) {
	ctx := logger.CtxWithLogger(context.Background(), xlogrus.Default().WithLevel(logger.LevelPanic))

	called := false
	require.NotPanics(t, func() {
		observability.CallSafe(ctx, func(context.Context) {
			called = true
			panic("test")
		})
	})
	require.True(t, called)

	done := make(chan struct{})
	observability.GoSafe(ctx, func(context.Context) {
		defer close(done)
		panic("test")
	})
	<-done
}
