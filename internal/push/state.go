package push

// ConnectionState is the client-wide lifecycle state.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// trigger is an input to the state machine.
type trigger int

const (
	// triggerConnect is a connect request (caller or reconnect timer).
	triggerConnect trigger = iota
	// triggerOpened is the transport-level open signal.
	triggerOpened
	// triggerLost is a transport close, error or failed open.
	triggerLost
	// triggerDisconnect is an explicit disconnect request.
	triggerDisconnect
	// triggerReleased marks the end of teardown after a disconnect.
	triggerReleased
)

func (t trigger) String() string {
	switch t {
	case triggerConnect:
		return "connect"
	case triggerOpened:
		return "opened"
	case triggerLost:
		return "lost"
	case triggerDisconnect:
		return "disconnect"
	case triggerReleased:
		return "released"
	default:
		return "unknown"
	}
}

// nextState is the single transition function of the connection state
// machine. It reports false when the trigger is not valid in state from.
func nextState(from ConnectionState, t trigger) (ConnectionState, bool) {
	switch t {
	case triggerConnect:
		if from == StateDisconnected {
			return StateConnecting, true
		}
	case triggerOpened:
		if from == StateConnecting {
			return StateOpen, true
		}
	case triggerLost:
		if from == StateConnecting || from == StateOpen {
			return StateDisconnected, true
		}
	case triggerDisconnect:
		return StateClosing, true
	case triggerReleased:
		if from == StateClosing {
			return StateDisconnected, true
		}
	}
	return from, false
}
