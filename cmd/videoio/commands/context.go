package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/user"
	"time"

	"github.com/facebookincubator/go-belt"
	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	errmonsentry "github.com/facebookincubator/go-belt/tool/experimental/errmon/implementation/sentry"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	prometheusadapter "github.com/facebookincubator/go-belt/tool/experimental/metrics/implementation/prometheus"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/videoio/pkg/observability"
	"github.com/xaionaro-go/videoio/pkg/xpath"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	serverShutdownTimeout = time.Second
)

var originalPCFilter = xruntime.DefaultCallerPCFilter

func getContext(
	ctx context.Context,
	flags Flags,
) (_ context.Context, _ func(), _err error) {
	var closeFuncs []func()
	closeAll := func() {
		for i := len(closeFuncs) - 1; i >= 0; i-- {
			closeFuncs[i]()
		}
	}
	defer func() {
		if _err != nil {
			closeAll()
		}
	}()

	ctx, cancelFn := context.WithCancel(ctx)
	closeFuncs = append(closeFuncs, cancelFn)

	observability.LogLevelFilter.SetLevel(flags.LoggerLevel)
	xruntime.DefaultCallerPCFilter = observability.CallerPCFilter(originalPCFilter)

	ctx = metrics.CtxWithMetrics(ctx, prometheusadapter.Default())

	ll := xlogrus.DefaultLogrusLogger()
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace).WithPreHooks(
		&observability.LogLevelFilter,
		observability.CredentialsFilter{},
	)

	if flags.LogFile != "" {
		logPath, err := xpath.Expand(flags.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to expand path '%s': %w", flags.LogFile, err)
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file '%s': %w", logPath, err)
		}
		ll.SetOutput(io.MultiWriter(os.Stderr, f))
		closeFuncs = append(closeFuncs, func() {
			ll.SetOutput(os.Stderr)
			f.Close()
		})
	}

	logrus.SetLevel(xlogrus.LevelToLogrus(l.Level()))

	if flags.SentryDSN != "" {
		l.Infof("setting up Sentry at DSN '%s'", flags.SentryDSN)
		sentryClient, err := sentry.NewClient(sentry.ClientOptions{
			Dsn: flags.SentryDSN,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("unable to initialize the Sentry client: %w", err)
		}
		closeFuncs = append(closeFuncs, func() { sentryClient.Flush(sentryFlushTimeout) })
		sentryErrorMonitor := errmonsentry.New(sentryClient)
		ctx = errmon.CtxWithErrorMonitor(ctx, sentryErrorMonitor)
		l = l.WithPreHooks(observability.NewErrorMonitorLoggerHook(
			ctx,
			sentryErrorMonitor,
		))
	}

	ctx = logger.CtxWithLogger(ctx, l)

	if flags.LogstashAddr != "" {
		var err error
		ctx, err = observability.CtxWithLogstash(ctx, flags.LogstashAddr, appName)
		if err != nil {
			return nil, nil, err
		}
	}

	ctx = belt.WithField(ctx, "program", appName)
	if hostname, err := os.Hostname(); err == nil {
		ctx = belt.WithField(ctx, "hostname", hostname)
	}
	ctx = belt.WithField(ctx, "pid", os.Getpid())
	if u, err := user.Current(); err == nil {
		ctx = belt.WithField(ctx, "user", u.Username)
	}

	if flags.NetPprofAddr != "" {
		if err := serveDebug(ctx, flags.NetPprofAddr); err != nil {
			return nil, nil, err
		}
	}

	return ctx, closeAll, nil
}

// serveDebug serves net/http/pprof and the prometheus metrics until ctx
// is done.
func serveDebug(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen at '%s': %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/", http.DefaultServeMux)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Debugf(ctx, "unable to shutdown the debug server: %v", err)
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		logger.Infof(ctx, "starting to listen for net/pprof requests at '%s'", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, err)
		}
	})
	return nil
}
