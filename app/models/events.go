package models

import "encoding/json"

// SessionEvent is pushed to websocket subscribers of a session.
type SessionEvent struct {
	Type    string          `json:"type"` // move, reset, settings, ping
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	EventMove     = "move"
	EventReset    = "reset"
	EventSettings = "settings"
	EventPing     = "ping"
)
