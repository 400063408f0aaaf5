package ports

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/obsrelay/internal/domain"
)

// ControlDialer performs the handshake with the remote control endpoint.
type ControlDialer interface {
	// Dial connects and authenticates. Implementations return an error wrapping
	// domain.ErrAuthFailed when the endpoint rejects the credential and
	// domain.ErrConnect for every other handshake failure.
	Dial(ctx context.Context, params domain.ConnectionParams) (ControlConn, domain.ConnectionInfo, error)
}

// ControlConn is one established connection to the remote control endpoint.
type ControlConn interface {
	// Call performs one request/response round trip. data may be nil.
	// A failed request status is reported as *domain.RemoteError.
	Call(ctx context.Context, requestType string, data any) (json.RawMessage, error)

	// Events delivers asynchronous events until the connection ends.
	Events() <-chan domain.RemoteEvent

	// Done is closed when the connection is gone, whoever closed it.
	Done() <-chan struct{}

	// Err returns the reason the connection ended, or nil while it is open.
	Err() error

	// Close terminates the connection. Safe to call more than once.
	Close() error
}
