package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/kriya/internal/models"
)

// EnqueueBridgeItem persists a new pending item, assigning ID when empty.
func (s *Store) EnqueueBridgeItem(ctx context.Context, item *models.BridgeItem) error {
	if item.ID == "" {
		item.ID = s.newID()
	}
	if item.Direction == "" {
		item.Direction = models.DirectionToBridge
	}
	if item.Status == "" {
		item.Status = models.BridgePending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	item.UpdatedAt = item.CreatedAt
	if err := s.tx(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("store: enqueue bridge item for %s: %w", item.AgentID, err)
	}
	return nil
}

// GetBridgeItem loads one bridge item by ID.
func (s *Store) GetBridgeItem(ctx context.Context, id string) (*models.BridgeItem, error) {
	var item models.BridgeItem
	if err := s.tx(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "bridge item", id)
	}
	return &item, nil
}

// PendingBridgeItems returns pending to_bridge items, oldest first.
func (s *Store) PendingBridgeItems(ctx context.Context) ([]models.BridgeItem, error) {
	var items []models.BridgeItem
	if err := s.tx(ctx).
		Where("direction = ? AND status = ?", models.DirectionToBridge, models.BridgePending).
		Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("store: pending bridge items: %w", err)
	}
	return items, nil
}

// StaleBridgeItems returns incomplete items created before cutoff, oldest first.
func (s *Store) StaleBridgeItems(ctx context.Context, cutoff time.Time) ([]models.BridgeItem, error) {
	var items []models.BridgeItem
	if err := s.tx(ctx).
		Where("status <> ? AND created_at < ?", models.BridgeCompleted, cutoff).
		Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("store: stale bridge items: %w", err)
	}
	return items, nil
}

// TransitionBridgeItem moves item id from status from to status to, storing
// response when non-nil. It applies only while the stored status equals from.
func (s *Store) TransitionBridgeItem(ctx context.Context, id string, from, to models.BridgeStatus, response *string) (applied bool, err error) {
	now := s.now()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if response != nil {
		updates["response"] = *response
	}
	if to == models.BridgeCompleted {
		updates["completed_at"] = now
	}
	res := s.tx(ctx).Model(&models.BridgeItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("store: transition bridge item %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
