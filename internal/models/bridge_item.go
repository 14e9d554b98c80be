package models

import "time"

// Bridge queue directions. Only DirectionToBridge is produced by Kriya.
const (
	DirectionToBridge   = "to_bridge"
	DirectionFromBridge = "from_bridge"
)

// BridgeStatus is a state of a bridge queue item: pending -> processing -> completed.
// An item may also be completed straight from pending.
type BridgeStatus string

const (
	BridgePending    BridgeStatus = "pending"
	BridgeProcessing BridgeStatus = "processing"
	BridgeCompleted  BridgeStatus = "completed"
)

// CanTransitionTo reports whether s -> next is a legal step.
func (s BridgeStatus) CanTransitionTo(next BridgeStatus) bool {
	switch s {
	case BridgePending:
		return next == BridgeProcessing || next == BridgeCompleted
	case BridgeProcessing:
		return next == BridgeCompleted
	}
	return false
}

// BridgeItem is a unit of work routed to the external bridge participant.
type BridgeItem struct {
	ID          string       `gorm:"primaryKey;size:36"`
	Direction   string       `gorm:"size:16;not null;default:to_bridge;index"`
	AgentID     string       `gorm:"size:64;not null;index"`
	Content     string       `gorm:"type:mediumtext;not null"`
	Status      BridgeStatus `gorm:"size:16;not null;default:pending;index"`
	Response    *string      `gorm:"type:mediumtext"`
	CreatedAt   time.Time    `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
}
