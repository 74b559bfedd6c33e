package decoder

import (
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

const DefaultMaxConsecutiveErrors = 10

// errorStreak tolerates up to max consecutive failures.
type errorStreak struct {
	max   int
	count int
}

func newErrorStreak(max int) errorStreak {
	if max <= 0 {
		max = DefaultMaxConsecutiveErrors
	}
	return errorStreak{max: max}
}

// Fail registers a failure and returns ErrDecode once the streak is too long.
func (s *errorStreak) Fail(err error) error {
	s.count++
	if s.count > s.max {
		return types.ErrDecode{ConsecutiveFailures: s.count, Err: err}
	}
	return nil
}

func (s *errorStreak) Reset() {
	s.count = 0
}

func (s *errorStreak) Count() int {
	return s.count
}
