package observability

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/DataDog/gostackparse"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	xruntime "github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	errmontypes "github.com/facebookincubator/go-belt/tool/experimental/errmon/types"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/adapter"
	loggertypes "github.com/facebookincubator/go-belt/tool/logger/types"
)

const (
	maxStackBufferSize  = 10 * 1024 * 1024
	errorMonitorBacklog = 10
)

func getGoroutines() ([]errmontypes.Goroutine, int) {
	stackBufferSize := 65536 * runtime.NumGoroutine()
	if stackBufferSize > maxStackBufferSize {
		stackBufferSize = maxStackBufferSize
	}
	stackBuffer := make([]byte, stackBufferSize)

	n := runtime.Stack(stackBuffer, true)
	goroutines, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))
	result := make([]errmontypes.Goroutine, 0, len(goroutines))
	for _, goroutine := range goroutines {
		result = append(result, *goroutine)
	}

	var currentGoroutineID int
	n = runtime.Stack(stackBuffer, false)
	current, _ := gostackparse.Parse(bytes.NewReader(stackBuffer[:n]))
	if len(current) == 1 {
		currentGoroutineID = current[0].ID
	}
	return result, currentGoroutineID
}

// entryCapturer is an Emitter which only remembers the last entry; it is
// used to let go-belt render an entry before it is reported.
type entryCapturer struct {
	LastEntry *loggertypes.Entry
}

var _ loggertypes.Emitter = (*entryCapturer)(nil)

func (e *entryCapturer) Emit(entry *loggertypes.Entry) {
	e.LastEntry = entry
}

func (e *entryCapturer) Flush() {}

// ErrorMonitorLoggerHook reports every log entry of level Warning or more
// severe to the error monitor (Sentry in the CLI).
type ErrorMonitorLoggerHook struct {
	ErrorMonitor errmontypes.ErrorMonitor
	SendChan     chan ErrorMonitorMessage
}

type ErrorMonitorMessage struct {
	Entry              *loggertypes.Entry
	Goroutines         []errmontypes.Goroutine
	CurrentGoroutineID int
	StackTrace         xruntime.PCs
}

// NewErrorMonitorLoggerHook starts the sender; it stops when ctx is done.
func NewErrorMonitorLoggerHook(
	ctx context.Context,
	errorMonitor errmon.ErrorMonitor,
) *ErrorMonitorLoggerHook {
	h := &ErrorMonitorLoggerHook{
		ErrorMonitor: errorMonitor,
		SendChan:     make(chan ErrorMonitorMessage, errorMonitorBacklog),
	}
	GoSafe(ctx, h.senderLoop)
	return h
}

var _ loggertypes.PreHook = (*ErrorMonitorLoggerHook)(nil)

func (h *ErrorMonitorLoggerHook) capture(level loggertypes.Level, logFn func(loggertypes.Logger)) loggertypes.PreHookResult {
	if level > loggertypes.LevelWarning {
		return loggertypes.PreHookResult{}
	}
	capturer := &entryCapturer{}
	logFn(adapter.LoggerFromEmitter(capturer).WithLevel(logger.LevelWarning))
	h.sendReport(capturer.LastEntry)
	return loggertypes.PreHookResult{}
}

func (h *ErrorMonitorLoggerHook) ProcessInput(
	_ belt.TraceIDs,
	level loggertypes.Level,
	args ...any,
) loggertypes.PreHookResult {
	return h.capture(level, func(l loggertypes.Logger) { l.Log(level, args...) })
}

func (h *ErrorMonitorLoggerHook) ProcessInputf(
	_ belt.TraceIDs,
	level loggertypes.Level,
	format string,
	args ...any,
) loggertypes.PreHookResult {
	return h.capture(level, func(l loggertypes.Logger) { l.Logf(level, format, args...) })
}

func (h *ErrorMonitorLoggerHook) ProcessInputFields(
	_ belt.TraceIDs,
	level loggertypes.Level,
	message string,
	fields field.AbstractFields,
) loggertypes.PreHookResult {
	return h.capture(level, func(l loggertypes.Logger) { l.LogFields(level, message, fields) })
}

func copyEntry(entry *loggertypes.Entry) *loggertypes.Entry {
	dup := *entry
	if entry.Fields != nil {
		fields := make(field.Fields, 0, entry.Fields.Len())
		entry.Fields.ForEachField(func(f *field.Field) bool {
			fields = append(fields, *f)
			return true
		})
		dup.Fields = fields
	}
	return &dup
}

func (h *ErrorMonitorLoggerHook) sendReport(entry *loggertypes.Entry) {
	if entry == nil {
		return
	}
	goroutines, currentGoroutineID := getGoroutines()
	select {
	case h.SendChan <- ErrorMonitorMessage{
		Entry:              copyEntry(entry),
		Goroutines:         goroutines,
		CurrentGoroutineID: currentGoroutineID,
		StackTrace:         xruntime.CallerStackTrace(nil),
	}:
	default:
		// the monitor is lagging, drop the report
	}
}

func (h *ErrorMonitorLoggerHook) senderLoop(ctx context.Context) {
	for {
		var message ErrorMonitorMessage
		select {
		case <-ctx.Done():
			return
		case message = <-h.SendChan:
		}
		h.ErrorMonitor.Emitter().Emit(&errmontypes.Event{
			Entry:       *message.Entry,
			ExternalIDs: []any{},
			Exception: errmontypes.Exception{
				IsPanic:    message.Entry.Level <= loggertypes.LevelPanic,
				Error:      fmt.Errorf("[%s] %s", message.Entry.Level, message.Entry.Message),
				StackTrace: message.StackTrace,
			},
			CurrentGoroutineID: message.CurrentGoroutineID,
			Goroutines:         message.Goroutines,
		})
	}
}
