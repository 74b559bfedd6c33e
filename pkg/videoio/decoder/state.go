package decoder

type State int

const (
	StateOpened = State(iota)
	StateReading
	StateSeekPending
	StateResyncing
	StateDrained
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateReading:
		return "reading"
	case StateSeekPending:
		return "seek_pending"
	case StateResyncing:
		return "resyncing"
	case StateDrained:
		return "drained"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
