// Package astiavlogger routes the libav log into a go-belt logger.
package astiavlogger

import (
	"context"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/types"
)

// Callback builds a libav log callback writing into l. Loggers backed by
// logrus get the emitting libav class as the caller, the other ones get
// it as the "av_class" field.
func Callback(l types.Logger) astiav.LogCallback {
	wrapped, setClass, prettified := logrusLogger(l)

	var locker sync.Mutex
	return func(c astiav.Classer, level astiav.LogLevel, _, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		beltLevel := LevelFromAstiav(level)

		if !prettified {
			l.WithField("av_class", ClassChain(c)).Logf(beltLevel, "%s", msg)
			return
		}

		locker.Lock()
		defer locker.Unlock()
		setClass(c)
		defer setClass(nil)
		wrapped.Logf(beltLevel, "%s", msg)
	}
}

// Install sets the libav log level from the logger of ctx and routes the
// libav messages into it. It affects the whole process.
func Install(ctx context.Context) {
	l := logger.FromCtx(ctx)
	astiav.SetLogLevel(LevelToAstiav(l.Level()))
	astiav.SetLogCallback(Callback(l))
}

// Uninstall restores the default libav logging to stderr.
func Uninstall() {
	astiav.ResetLogCallback()
}
