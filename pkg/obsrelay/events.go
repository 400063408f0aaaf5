package obsrelay

import "github.com/bft-labs/obsrelay/pkg/lifecycle"

// State is the lifecycle state of a Relay.
type State = lifecycle.State

// Lifecycle states.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateCrashed  = lifecycle.StateCrashed
)

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// SessionEvent reports an OBS session change.
type SessionEvent struct {
	Connected bool
	Address   string
	// Version is the obs-websocket version, set when Connected.
	Version string
	// Reason is set when the session was lost.
	Reason string
}

// EventHandler receives relay events. Callbacks run synchronously on relay
// goroutines and must return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnSessionChange(SessionEvent)
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interface.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
}

func (e *eventEmitterWrapper) onSession(ev SessionEvent) {
	if e.handler == nil {
		return
	}
	e.handler.OnSessionChange(ev)
}

// BaseEventHandler implements EventHandler with no-op methods. Embed it to
// override only the callbacks you need.
type BaseEventHandler struct{}

// OnStateChange does nothing.
func (BaseEventHandler) OnStateChange(StateChangeEvent) {}

// OnSessionChange does nothing.
func (BaseEventHandler) OnSessionChange(SessionEvent) {}
