package astiavlogger

import (
	"runtime"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger/adapter"
	beltlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/facebookincubator/go-belt/tool/logger/types"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/unsafetools"
)

// logrusLogger clones the logrus emitter so that the "caller" of every
// entry shows the libav class chain instead of the cgo trampoline.
func logrusLogger(l types.Logger) (types.Logger, func(astiav.Classer), bool) {
	sugar, ok := l.(adapter.GenericSugar)
	if !ok {
		return l, nil, false
	}
	compact, ok := sugar.CompactLogger.(*beltlogrus.CompactLogger)
	if !ok {
		return l, nil, false
	}

	origEmitter, ok := l.Emitter().(*beltlogrus.Emitter)
	if !ok {
		return l, nil, false
	}
	emitter := ptr(*origEmitter)
	entry := ptr(*emitter.LogrusEntry)
	emitter.LogrusEntry = entry
	entry.Logger = ptr(*entry.Logger)

	var class astiav.Classer
	prettifier := func(*runtime.Frame) (string, string) {
		return ClassChain(class), "libav"
	}
	switch formatter := entry.Logger.Formatter.(type) {
	case *logrus.TextFormatter:
		formatter = ptr(*formatter)
		formatter.CallerPrettyfier = prettifier
		entry.Logger.Formatter = formatter
	case *logrus.JSONFormatter:
		formatter = ptr(*formatter)
		formatter.CallerPrettyfier = prettifier
		entry.Logger.Formatter = formatter
	default:
		return l, nil, false
	}

	compact = ptr(*compact)
	*unsafetools.FieldByName(compact, "emitter").(**beltlogrus.Emitter) = emitter
	return adapter.GenericSugar{CompactLogger: compact}, func(c astiav.Classer) { class = c }, true
}

func ptr[T any](v T) *T {
	return &v
}
