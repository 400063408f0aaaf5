// Package lifecycle defines the states of an obsrelay service.
//
// Valid state transitions:
//   - Stopped -> Starting
//   - Starting -> Running, Stopping, Crashed
//   - Running -> Stopping, Crashed
//   - Stopping -> Stopped, Crashed
//   - Crashed -> Starting
//
// The state machine itself lives with the service; this package only carries
// the vocabulary so embedders can react to [EventEmitter] callbacks without
// importing internal packages.
package lifecycle
