// Package models defines the data structures shared by the metaCo host and agent.
// JSON field names match the browser extension's native messaging payloads.
package models

import (
	"encoding/json"
	"fmt"
)

// State is the persisted record holding the single "enabled" flag.
type State struct {
	Enabled bool `json:"enabled"`
}

// stateSchema is used to require the enabled field and reject non-boolean values.
type stateSchema struct {
	Enabled *bool `json:"enabled"`
}

// ParseState decodes a State record and requires "enabled" to be a JSON boolean.
func ParseState(data []byte) (State, error) {
	var s stateSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, err
	}
	if s.Enabled == nil {
		return State{}, fmt.Errorf("missing enabled field")
	}
	return State{Enabled: *s.Enabled}, nil
}
