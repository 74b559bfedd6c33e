package observability

import (
	"context"
	"fmt"
	"net/url"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/xaionaro-go/logrustash"
)

// CtxWithLogstash additionally ships the log entries to a logstash
// instance at an address like "tcp://127.0.0.1:5000".
func CtxWithLogstash(
	ctx context.Context,
	logstashAddr string,
	appName string,
) (context.Context, error) {
	addr, err := url.Parse(logstashAddr)
	if err != nil {
		return ctx, fmt.Errorf("unable to parse '%s' as URL: %w", logstashAddr, err)
	}
	if addr.Scheme == "" || addr.Host == "" {
		return ctx, fmt.Errorf("expected an address like 'tcp://host:port', got '%s'", logstashAddr)
	}

	l := logger.FromCtx(ctx)
	emitter, ok := l.Emitter().(*logrus.Emitter)
	if !ok {
		return ctx, fmt.Errorf("the Emitter is not a *logrus.Emitter, but %T", l.Emitter())
	}

	hook, err := logrustash.NewHook(addr.Scheme, addr.Host, appName)
	if err != nil {
		return ctx, fmt.Errorf("unable to initialize the logstash hook: %w", err)
	}

	return logger.CtxWithLogger(ctx, l.WithHooks(NewHookAdapter(
		emitter.LogrusEntry.Logger,
		hook,
	))), nil
}
