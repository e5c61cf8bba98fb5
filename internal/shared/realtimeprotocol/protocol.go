// Package realtimeprotocol defines the WebSocket message types of the
// access log stream. These types are shared between the realtime
// application layer, the hub and the HTTP transport.
package realtimeprotocol

import "time"

// Client -> Server message types.
const (
	MsgTypePing          = "ping"
	MsgTypeRequestUpdate = "request_update"
)

// Server -> Client message types.
const (
	MsgTypeInitialLogs  = "initial_logs"
	MsgTypeLogsUpdate   = "logs_update"
	MsgTypePong         = "pong"
	MsgTypeNewLog       = "new_log"
	MsgTypeAccessDenied = "access_denied"
)

// Message is the envelope of every server message.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ClientMessage is a message read from a subscriber. Unknown fields are
// ignored.
type ClientMessage struct {
	Type string `json:"type"`
}

// LogView is the wire form of a stored access log entry.
type LogView struct {
	ID          uint           `json:"id"`
	DeviceID    uint           `json:"device_id"`
	DeviceLogID int64          `json:"device_log_id"`
	UserID      string         `json:"user_id,omitempty"`
	EventType   int            `json:"event_type"`
	EventName   string         `json:"event_name"`
	EventTime   time.Time      `json:"event_time"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SnapshotData is the payload of initial_logs and logs_update.
type SnapshotData struct {
	Logs       []LogView `json:"logs"`
	TotalCount int64     `json:"total_count"`
}

// PongData answers a ping.
type PongData struct {
	ServerTime time.Time `json:"server_time"`
}

// LogEventData is the payload of new_log and access_denied.
type LogEventData struct {
	DeviceSID  string  `json:"device_sid"`
	DeviceName string  `json:"device_name"`
	Log        LogView `json:"log"`
}
