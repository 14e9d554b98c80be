package store

import (
	"context"
	"fmt"

	"github.com/zulandar/kriya/internal/models"
)

// AppendEntry persists one conversation turn. CreatedAt is stamped when zero.
func (s *Store) AppendEntry(ctx context.Context, entry *models.ConversationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.tx(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("store: append entry for %s: %w", entry.AgentID, err)
	}
	return nil
}

// Conversation returns every entry for agentID in write order.
func (s *Store) Conversation(ctx context.Context, agentID string) ([]models.ConversationEntry, error) {
	var entries []models.ConversationEntry
	if err := s.tx(ctx).Where("agent_id = ?", agentID).
		Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("store: conversation %s: %w", agentID, err)
	}
	return entries, nil
}

// RecentConversation returns the last limit entries for agentID, oldest first.
func (s *Store) RecentConversation(ctx context.Context, agentID string, limit int) ([]models.ConversationEntry, error) {
	var entries []models.ConversationEntry
	if err := s.tx(ctx).Where("agent_id = ?", agentID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("store: recent conversation %s: %w", agentID, err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ConversationCount returns how many entries agentID has.
func (s *Store) ConversationCount(ctx context.Context, agentID string) (int64, error) {
	var n int64
	if err := s.tx(ctx).Model(&models.ConversationEntry{}).
		Where("agent_id = ?", agentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count conversation %s: %w", agentID, err)
	}
	return n, nil
}

// ClearConversation deletes every entry for agentID and returns how many were removed.
func (s *Store) ClearConversation(ctx context.Context, agentID string) (int64, error) {
	result := s.tx(ctx).Where("agent_id = ?", agentID).Delete(&models.ConversationEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("store: clear conversation %s: %w", agentID, result.Error)
	}
	return result.RowsAffected, nil
}
