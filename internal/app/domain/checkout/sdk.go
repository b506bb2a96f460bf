package checkout

import (
	"encoding/json"
	"fmt"
)

// SDKMessageType discriminates the JSON messages posted back by the payment
// SDK webview.
type SDKMessageType string

const (
	SDKMessageSuccess SDKMessageType = "success"
	SDKMessageError   SDKMessageType = "error"
	SDKMessageEvent   SDKMessageType = "event"
	SDKMessageExit    SDKMessageType = "exit"
)

// SDKMessage is one message from the payment SDK bridge. Event messages carry
// a free-form event name and payload; error messages carry a human-readable
// message.
type SDKMessage struct {
	Type      SDKMessageType  `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Event     string          `json:"event,omitempty"`
	Message   string          `json:"message,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ParseSDKMessage decodes and validates a raw SDK bridge message.
func ParseSDKMessage(data []byte) (SDKMessage, error) {
	var msg SDKMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SDKMessage{}, fmt.Errorf("malformed sdk message: %w", err)
	}
	switch msg.Type {
	case SDKMessageSuccess, SDKMessageError, SDKMessageEvent, SDKMessageExit:
		return msg, nil
	default:
		return SDKMessage{}, fmt.Errorf("unknown sdk message type: %q", msg.Type)
	}
}

// Terminal reports whether the message ends the SDK session.
func (m SDKMessage) Terminal() bool {
	return m.Type == SDKMessageSuccess || m.Type == SDKMessageError || m.Type == SDKMessageExit
}
