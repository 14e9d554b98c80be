package models

import "time"

// AgentSetting holds one user's overrides for a catalog agent. Rows are written
// by the configuration layer; Kriya only reads them.
type AgentSetting struct {
	UserID       string `gorm:"primaryKey;size:64"`
	AgentID      string `gorm:"primaryKey;size:64"`
	Model        string `gorm:"size:200"`
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt string `gorm:"type:text"`
	DisplayOrder *int
	UpdatedAt    time.Time
}
