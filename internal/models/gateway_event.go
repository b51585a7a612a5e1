package models

import "time"

// Gateway event types.
const (
	EventConnected       = "CONNECTED"
	EventConnectionError = "CONNECTION_ERROR"
	EventDisconnected    = "DISCONNECTED"
	EventCommand         = "COMMAND"
	EventRawCommand      = "RAW_COMMAND"
	EventDiscovered      = "DISCOVERED"
)

// EventTypes lists every recorded event type.
var EventTypes = []string{
	EventConnected,
	EventConnectionError,
	EventDisconnected,
	EventCommand,
	EventRawCommand,
	EventDiscovered,
}

// GatewayEvent is a single audit log entry.
type GatewayEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
