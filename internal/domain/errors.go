package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the obsrelay domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("obsrelay: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("obsrelay: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("obsrelay: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("obsrelay: invalid configuration")

	// ErrConnect is returned when the handshake with the remote endpoint fails.
	ErrConnect = errors.New("obsrelay: connect failed")

	// ErrAuthFailed is returned when the remote endpoint rejects the credential.
	ErrAuthFailed = errors.New("obsrelay: authentication failed")

	// ErrNotConnected is returned when a remote call is made outside the Connected state.
	ErrNotConnected = errors.New("obsrelay: not connected")

	// ErrConnectionUnavailable is returned when the guard gives up waiting for a connection.
	ErrConnectionUnavailable = errors.New("obsrelay: connection unavailable")

	// ErrRemote is returned when the remote endpoint answers a request with a failure status.
	ErrRemote = errors.New("obsrelay: remote request failed")

	// ErrDispatch wraps any failure raised inside an operation implementation.
	ErrDispatch = errors.New("obsrelay: dispatch failed")

	// ErrOperationNotFound is returned for names absent from the catalog.
	ErrOperationNotFound = errors.New("obsrelay: operation not found")

	// ErrDuplicateOperation is returned when a name is registered twice.
	ErrDuplicateOperation = errors.New("obsrelay: duplicate operation")

	// ErrCatalogSealed is returned when registering after the catalog was sealed.
	ErrCatalogSealed = errors.New("obsrelay: catalog sealed")

	// ErrMissingParams is returned when a call supplies fewer arguments than required.
	ErrMissingParams = errors.New("obsrelay: missing parameters")

	// ErrInvalidArgument is returned when an argument cannot be decoded into the expected type.
	ErrInvalidArgument = errors.New("obsrelay: invalid argument")

	// ErrBotNotRunning is returned when the bot is addressed while no bot exists.
	ErrBotNotRunning = errors.New("obsrelay: bot not running")

	// ErrBotHalted is returned once the reconnect ceiling was reached.
	// An explicit Resume (or a new Start) is required.
	ErrBotHalted = errors.New("obsrelay: reconnect attempts exhausted")
)

// RemoteError carries the status the remote endpoint returned for a failed request.
type RemoteError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RemoteError) Error() string {
	if e.Comment == "" {
		return fmt.Sprintf("%s: status %d", e.RequestType, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.RequestType, e.Code, e.Comment)
}

// Unwrap lets errors.Is(err, ErrRemote) match.
func (e *RemoteError) Unwrap() error { return ErrRemote }

// Error codes carried in reply envelopes.
const (
	CodeNotFound              = "not_found"
	CodeMissingParams         = "missing_params"
	CodeInvalidArgument       = "invalid_argument"
	CodeNotConnected          = "not_connected"
	CodeConnectionUnavailable = "connection_unavailable"
	CodeConnectFailed         = "connect_failed"
	CodeAuthFailed            = "auth_failed"
	CodeRemoteError           = "remote_error"
	CodeBotUnavailable        = "bot_unavailable"
	CodeInternal              = "internal"
)

// ErrorCode maps an error to the stable code sent to clients.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOperationNotFound):
		return CodeNotFound
	case errors.Is(err, ErrMissingParams):
		return CodeMissingParams
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrNotConnected):
		return CodeNotConnected
	case errors.Is(err, ErrConnectionUnavailable):
		return CodeConnectionUnavailable
	case errors.Is(err, ErrAuthFailed):
		return CodeAuthFailed
	case errors.Is(err, ErrConnect):
		return CodeConnectFailed
	case errors.Is(err, ErrRemote):
		return CodeRemoteError
	case errors.Is(err, ErrBotNotRunning), errors.Is(err, ErrBotHalted):
		return CodeBotUnavailable
	default:
		return CodeInternal
	}
}
