package models

import (
	"time"

	"gorm.io/datatypes"
)

// HandoffStatus is a state in the handoff lifecycle:
//
//	pending --accept--> accepted --complete--> completed
//	pending --reject--> rejected
//	accepted --reject--> rejected
type HandoffStatus string

const (
	HandoffPending   HandoffStatus = "pending"
	HandoffAccepted  HandoffStatus = "accepted"
	HandoffCompleted HandoffStatus = "completed"
	HandoffRejected  HandoffStatus = "rejected"
)

var handoffTransitions = map[HandoffStatus][]HandoffStatus{
	HandoffPending:  {HandoffAccepted, HandoffRejected},
	HandoffAccepted: {HandoffCompleted, HandoffRejected},
}

// Valid reports whether s is a known status.
func (s HandoffStatus) Valid() bool {
	switch s {
	case HandoffPending, HandoffAccepted, HandoffCompleted, HandoffRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s HandoffStatus) Terminal() bool {
	return s == HandoffCompleted || s == HandoffRejected
}

// CanTransitionTo reports whether s -> next is a legal lifecycle step.
func (s HandoffStatus) CanTransitionTo(next HandoffStatus) bool {
	for _, allowed := range handoffTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Handoff is a formal task transfer between two agents.
type Handoff struct {
	ID        string `gorm:"primaryKey;size:36"`
	FromAgent string `gorm:"size:64;not null"`
	ToAgent   string `gorm:"size:64;not null;index"`
	Task      string `gorm:"type:text;not null"`
	Context   datatypes.JSON
	Status    HandoffStatus `gorm:"size:16;not null;default:pending;index"`
	Result    *string       `gorm:"type:text"`
	DedupeKey *string       `gorm:"size:64;uniqueIndex"`
	CreatedAt time.Time     `gorm:"index"`
	UpdatedAt time.Time
}
