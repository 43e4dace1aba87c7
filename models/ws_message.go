package models

import "encoding/json"

// WSMessage represents an outbound WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSEvent represents an inbound WebSocket event, with the payload left
// raw for per-event decoding
type WSEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
