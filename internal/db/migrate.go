package db

import (
	"fmt"

	"github.com/zulandar/kriya/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model Kriya persists.
func AllModels() []interface{} {
	return []interface{}{
		&models.ConversationEntry{},
		&models.Message{},
		&models.BroadcastAck{},
		&models.Handoff{},
		&models.BridgeItem{},
		&models.AgentSetting{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
