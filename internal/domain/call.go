package domain

import "encoding/json"

// OperationInfo is the published contract of a catalog operation.
type OperationInfo struct {
	Name           string   `json:"name"`
	RequiredParams []string `json:"requiredParams"`
}

// Call is one pending dispatch. It exists only for the duration of the dispatch.
type Call struct {
	CallID    string
	Operation string
	Args      []json.RawMessage
	Channel   string
}

// ErrorPayload is the error half of a reply.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform reply envelope. Exactly one of Value or Error is meaningful.
type Result struct {
	CallID    string        `json:"callId,omitempty"`
	Operation string        `json:"operation"`
	Value     any           `json:"result"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// OK reports whether the result carries no error.
func (r Result) OK() bool {
	return r.Error == nil
}

// NewErrorPayload converts err into a reply payload.
func NewErrorPayload(err error) *ErrorPayload {
	if err == nil {
		return nil
	}
	return &ErrorPayload{Code: ErrorCode(err), Message: err.Error()}
}
