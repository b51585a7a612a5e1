package appliance

// State is a step of the appliance session lifecycle.
type State int

const (
	Disconnected State = iota
	Discovering
	Connecting
	AwaitingHandshake
	Connected
	Closing
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Discovering:
		return "discovering"
	case Connecting:
		return "connecting"
	case AwaitingHandshake:
		return "awaiting_handshake"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
