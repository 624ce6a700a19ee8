package platform

import "fmt"

// State is the connection lifecycle of a Wayland window.
type State int32

const (
	Disconnected State = iota
	Connecting
	GlobalsPending
	Ready
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case GlobalsPending:
		return "globals-pending"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
