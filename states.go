package nsqc

// State describes where a Conn sits in its lifecycle. The teacher's Writer
// collapsed everything that isn't StateConnected into StateDisconnected;
// the spec requires distinguishing a connection that is actively retrying
// (Reconnecting) from one that is permanently gone (Closed), so those are
// split out here.
type State int32

const (
	StateInit State = iota
	StateConnected
	StateReconnecting
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
