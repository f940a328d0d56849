package process

// State is the lifecycle position of a slot's current process instance.
type State int

const (
	StateRunning State = iota
	StateExited
	StateFailedToStart
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailedToStart:
		return "failed_to_start"
	default:
		return "unknown"
	}
}
