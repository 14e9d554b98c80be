package models

import "time"

// BroadcastRecipient is the ToAgent sentinel that every inbox query matches.
const BroadcastRecipient = "all"

// Message types.
const (
	MessageTypeMessage   = "message"
	MessageTypeHandoff   = "handoff"
	MessageTypeRequest   = "request"
	MessageTypeResponse  = "response"
	MessageTypeBroadcast = "broadcast"
)

// ValidMessageType reports whether t is a known message type.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeMessage, MessageTypeHandoff, MessageTypeRequest, MessageTypeResponse, MessageTypeBroadcast:
		return true
	}
	return false
}

// Message represents agent-to-agent communication.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	FromAgent string    `gorm:"size:64;not null"`
	ToAgent   string    `gorm:"size:64;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"size:16;not null;default:message"`
	IsRead    bool      `gorm:"not null;default:false;index"`
	DedupeKey *string   `gorm:"size:64;uniqueIndex"`
	CreatedAt time.Time `gorm:"index"`
}

// BroadcastAck records that one agent has consumed a broadcast. Direct
// messages use Message.IsRead instead.
type BroadcastAck struct {
	MessageID string `gorm:"primaryKey;size:36"`
	AgentID   string `gorm:"primaryKey;size:64"`
	CreatedAt time.Time
}
