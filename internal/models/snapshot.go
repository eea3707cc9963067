package models

import "time"

// Snapshot is the agent's view of the flag, published to the local API and
// event subscribers.
type Snapshot struct {
	Enabled    bool       `json:"enabled"`
	Confirmed  bool       `json:"confirmed"`  // Enabled matches the host's last answer
	Connection string     `json:"connection"` // disconnected | connected | awaiting_response
	LastSync   *time.Time `json:"last_sync,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}
