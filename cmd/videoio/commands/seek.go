package commands

import (
	"fmt"
	"strconv"
	"time"
)

// parseSeek accepts Go durations ("1m30s") and seconds ("90.5").
func parseSeek(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse '%s' as a position", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
