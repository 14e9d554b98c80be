package store

import (
	"context"
	"fmt"

	"github.com/zulandar/kriya/internal/models"
)

// AgentSettings returns userID's overrides keyed by agent ID.
func (s *Store) AgentSettings(ctx context.Context, userID string) (map[string]models.AgentSetting, error) {
	var rows []models.AgentSetting
	if err := s.tx(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: agent settings for %s: %w", userID, err)
	}
	out := make(map[string]models.AgentSetting, len(rows))
	for _, r := range rows {
		out[r.AgentID] = r
	}
	return out, nil
}

// AgentSetting returns userID's overrides for agentID, or nil when none exist.
func (s *Store) AgentSetting(ctx context.Context, userID, agentID string) (*models.AgentSetting, error) {
	var rows []models.AgentSetting
	if err := s.tx(ctx).Where("user_id = ? AND agent_id = ?", userID, agentID).
		Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: agent setting %s/%s: %w", userID, agentID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
