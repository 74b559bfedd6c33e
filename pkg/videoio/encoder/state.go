package encoder

type State int

const (
	StateOpened = State(iota)
	StateEncoding
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateEncoding:
		return "encoding"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
