package observability

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/pkg/field"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	logger "github.com/facebookincubator/go-belt/tool/logger/types"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// HookFlushTimeout bounds the flush of a remote hook on exit.
var HookFlushTimeout = 5 * time.Second

// HookAdapter forwards go-belt entries to a logrus hook which ships them
// off the host (logstash). Only the levels the hook subscribes to are
// forwarded, and URL passwords are hidden in the message and the fields.
type HookAdapter struct {
	locker       deadlock.Mutex
	logrusLogger *logrus.Logger
	logrusHook   logrus.Hook
	levels       map[logrus.Level]struct{}
	failures     atomic.Uint64
}

var _ logger.Hook = (*HookAdapter)(nil)

func NewHookAdapter(
	l *logrus.Logger,
	h logrus.Hook,
) *HookAdapter {
	levels := map[logrus.Level]struct{}{}
	for _, level := range h.Levels() {
		levels[level] = struct{}{}
	}
	return &HookAdapter{
		logrusLogger: l,
		logrusHook:   h,
		levels:       levels,
	}
}

func (h *HookAdapter) ProcessLogEntry(entry *logger.Entry) bool {
	level := xlogrus.LevelToLogrus(entry.Level)
	if _, ok := h.levels[level]; !ok {
		return true
	}

	fields := logrus.Fields{}
	if entry.Fields != nil {
		entry.Fields.ForEachField(func(f *field.Field) bool {
			fields[f.Key] = hideInValue(f.Value)
			return true
		})
	}

	h.locker.Lock()
	defer h.locker.Unlock()
	err := h.logrusHook.Fire(&logrus.Entry{
		Logger:  h.logrusLogger,
		Data:    fields,
		Time:    entry.Timestamp,
		Level:   level,
		Caller:  entry.Caller.Frame(),
		Message: HideURLPasswords(entry.Message),
	})
	if err != nil && h.failures.Add(1) == 1 {
		// only the first one; the sink is likely down for all the others
		fmt.Fprintf(os.Stderr, "unable to deliver a log entry through %T: %v\n", h.logrusHook, err)
	}
	return true
}

// Failures is how many entries the hook failed to deliver.
func (h *HookAdapter) Failures() uint64 {
	return h.failures.Load()
}

func (h *HookAdapter) Flush() {
	h.locker.Lock()
	defer h.locker.Unlock()
	switch flusher := h.logrusHook.(type) {
	case interface{ Flush() }:
		flusher.Flush()
	case interface{ Flush() error }:
		if err := flusher.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "unable to flush %T: %v\n", h.logrusHook, err)
		}
	case interface{ Flush(time.Duration) }:
		flusher.Flush(HookFlushTimeout)
	case interface{ Flush(time.Duration) error }:
		if err := flusher.Flush(HookFlushTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "unable to flush %T: %v\n", h.logrusHook, err)
		}
	}
}
