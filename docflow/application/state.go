package application

// State é o estado observável do dispatcher.
type State int32

const (
	StateIdle State = iota
	StateWaitingForWindow
	StateSending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForWindow:
		return "waiting-for-window"
	case StateSending:
		return "sending"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
