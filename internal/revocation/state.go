package revocation

import "time"

// State is the availability state of the revocation store.
type State int

const (
	// StateUnconfigured means no endpoint was configured; every operation is a no-op.
	StateUnconfigured State = iota
	// StateConnecting covers the bounded startup connection attempts.
	StateConnecting
	// StateConnected means operations are forwarded to the store.
	StateConnected
	// StateDisconnected means a runtime error was observed; reconnect probes are rationed.
	StateDisconnected
	// StatePermanentlyDisabled is terminal for the process lifetime.
	StatePermanentlyDisabled
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StatePermanentlyDisabled:
		return "permanently_disabled"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[State][]State{
	StateConnecting:   {StateConnected, StatePermanentlyDisabled},
	StateConnected:    {StateDisconnected},
	StateDisconnected: {StateConnected, StatePermanentlyDisabled},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to State) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition describes one observed state change.
type Transition struct {
	From State
	To   State
	At   time.Time
	Err  error
}

// Listener receives state transitions synchronously, after the store lock is released.
type Listener func(Transition)
