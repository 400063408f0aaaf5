package domain

import (
	"net"
	"strconv"
	"strings"
)

// Default endpoint of a local OBS instance.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 4455
)

// ConnectionParams identifies the remote control endpoint.
type ConnectionParams struct {
	Host     string
	Port     int
	Password string
}

// DefaultConnectionParams returns the parameters used when nothing was persisted.
func DefaultConnectionParams() ConnectionParams {
	return ConnectionParams{Host: DefaultHost, Port: DefaultPort}
}

// HasPassword reports whether a credential is present.
func (p ConnectionParams) HasPassword() bool {
	return p.Password != ""
}

// WithDefaults fills empty fields from DefaultConnectionParams.
func (p ConnectionParams) WithDefaults() ConnectionParams {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Port <= 0 {
		p.Port = DefaultPort
	}
	return p
}

// Address returns host:port.
func (p ConnectionParams) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the WebSocket URL of the endpoint.
func (p ConnectionParams) URL() string {
	return "ws://" + p.Address()
}

// ConnectionInfo describes an established session.
type ConnectionInfo struct {
	ServerVersion string `json:"obsWebSocketVersion,omitempty"`
	RPCVersion    int    `json:"negotiatedRpcVersion"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
}

// SessionState is the connection state of the remote session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// MarshalText renders the lowercase wire form used by the HTTP and channel
// surfaces.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// RemoteEvent is an asynchronous event pushed by the remote endpoint.
type RemoteEvent struct {
	Type string
	Data []byte
}
