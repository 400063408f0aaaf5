// Package ws fans catalog calls in from WebSocket clients and results back
// out to the client that asked.
package ws

import (
	"bytes"
	"encoding/json"
)

// Event names pushed to clients.
const (
	EventReply         = "responseobs"
	EventOnboarding    = "QRCode"
	EventSessionStatus = "obsstatus"
	EventOSCMessage    = "oscmessage"
)

// Inbound is one client message.
type Inbound struct {
	Event   string            `json:"event"`
	CallID  string            `json:"callId,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// Outbound is one server message.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PositionalArgs returns Args, or Payload when it is a JSON array.
func (in Inbound) PositionalArgs() []json.RawMessage {
	if len(in.Args) > 0 {
		return in.Args
	}
	p := bytes.TrimSpace(in.Payload)
	if len(p) == 0 || p[0] != '[' {
		return nil
	}
	var args []json.RawMessage
	if json.Unmarshal(p, &args) != nil {
		return nil
	}
	return args
}

// PayloadObject decodes Payload when it is a JSON object. ok is false
// otherwise.
func (in Inbound) PayloadObject(v any) (ok bool, err error) {
	p := bytes.TrimSpace(in.Payload)
	if len(p) == 0 || p[0] != '{' {
		return false, nil
	}
	return true, json.Unmarshal(p, v)
}
