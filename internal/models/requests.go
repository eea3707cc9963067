package models

import "encoding/json"

// Message types understood by the host.
const (
	TypeRead  = "read"
	TypeWrite = "write"
)

// Request is the envelope sent from the agent (or browser) to the host.
type Request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the envelope the host writes back. Data is set only on a
// successful read; Error only when Success is false.
type Response struct {
	Success bool   `json:"success"`
	Data    *State `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewReadRequest builds a read request.
func NewReadRequest() Request {
	return Request{Type: TypeRead}
}

// NewWriteRequest builds a write request carrying the given record.
func NewWriteRequest(s State) Request {
	data, _ := json.Marshal(s)
	return Request{Type: TypeWrite, Data: data}
}

// ParseRequest decodes an envelope leniently: a payload that is valid JSON but
// not an object, or whose type is not a string, yields an empty Type so the
// host answers "Unknown message type" instead of dropping the request.
func ParseRequest(raw []byte) Request {
	var env struct {
		Type json.RawMessage `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Request{}
	}
	var typ string
	if err := json.Unmarshal(env.Type, &typ); err != nil {
		typ = ""
	}
	return Request{Type: typ, Data: env.Data}
}

// Failure builds an error response from err.
func Failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
