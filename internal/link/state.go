package link

// State is the lifecycle position of a Link.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Closing
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the link can no longer carry commands.
// A terminal link is discarded; callers build a new one to reconnect.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}
