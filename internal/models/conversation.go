package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one of user, assistant, or system.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ConversationEntry is one turn in one agent's dialogue. Entries are never
// updated; they are removed only by clearing the agent's conversation.
type ConversationEntry struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	AgentID   string         `gorm:"size:64;not null;index:idx_conversation_agent_created,priority:1"`
	Role      string         `gorm:"size:16;not null"`
	Content   string         `gorm:"type:mediumtext;not null"`
	SessionID string         `gorm:"size:64;index"`
	Metadata  datatypes.JSON // nil when absent
	CreatedAt time.Time      `gorm:"index:idx_conversation_agent_created,priority:2"`
}
