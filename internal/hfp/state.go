package hfp

// State is the lifecycle state of the connection worker.
type State int32

// The worker states.
const (
	// Idle is the state before the first cycle and while backing off
	// between cycles.
	Idle State = iota
	Discovering
	ConnectingControl
	Negotiating
	TornDown
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovering:
		return "discovering"
	case ConnectingControl:
		return "connecting-control"
	case Negotiating:
		return "negotiating"
	case TornDown:
		return "torn-down"
	case Stopped:
		return "stopped"
	}

	return "unknown"
}
