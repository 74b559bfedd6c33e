package observability

import (
	"runtime"
	"strings"
)

// CallerPCFilter hides the wrappers (locks, libav log routing, context
// helpers) from the "caller" reported in the log entries.
func CallerPCFilter(
	originalPCFilter func(uintptr) bool,
) func(uintptr) bool {
	return func(pc uintptr) bool {
		if !originalPCFilter(pc) {
			return false
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			return true
		}
		funcName := fn.Name()
		switch {
		case strings.Contains(funcName, "pkg/xsync"),
			strings.Contains(funcName, "pkg/astiavlogger"):
			return false
		}
		file, _ := fn.FileLine(pc)
		switch {
		case strings.HasSuffix(file, "/context.go"),
			strings.HasSuffix(file, "/log_writer.go"):
			return false
		}
		return true
	}
}
