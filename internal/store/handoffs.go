package store

import (
	"context"
	"fmt"

	"github.com/zulandar/kriya/internal/models"
	"gorm.io/gorm/clause"
)

// CreateHandoff persists h, assigning ID, CreatedAt, and the pending status
// when empty. DedupeKey behaves as in InsertMessage.
func (s *Store) CreateHandoff(ctx context.Context, h *models.Handoff) (created bool, err error) {
	if h.ID == "" {
		h.ID = s.newID()
	}
	if h.Status == "" {
		h.Status = models.HandoffPending
	}
	now := s.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}

	q := s.tx(ctx)
	if h.DedupeKey != nil {
		q = q.Clauses(clause.OnConflict{DoNothing: true})
	}
	result := q.Create(h)
	if result.Error != nil {
		return false, fmt.Errorf("store: create handoff %s -> %s: %w", h.FromAgent, h.ToAgent, result.Error)
	}
	if result.RowsAffected == 0 && h.DedupeKey != nil {
		var existing models.Handoff
		if err := s.tx(ctx).Where("dedupe_key = ?", *h.DedupeKey).First(&existing).Error; err != nil {
			return false, notFound(err, "handoff dedupe", *h.DedupeKey)
		}
		*h = existing
		return false, nil
	}
	return true, nil
}

// GetHandoff loads one handoff by ID.
func (s *Store) GetHandoff(ctx context.Context, id string) (*models.Handoff, error) {
	var h models.Handoff
	if err := s.tx(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		return nil, notFound(err, "handoff", id)
	}
	return &h, nil
}

// TransitionHandoff moves handoff id from status from to status to, setting
// result when non-nil. The update only applies while the stored status still
// equals from; applied reports whether it did. Legality of the transition is
// the caller's concern.
func (s *Store) TransitionHandoff(ctx context.Context, id string, from, to models.HandoffStatus, result *string) (applied bool, err error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": s.now(),
	}
	if result != nil {
		updates["result"] = *result
	}
	res := s.tx(ctx).Model(&models.Handoff{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("store: transition handoff %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// PendingHandoffs returns every pending handoff, oldest first.
func (s *Store) PendingHandoffs(ctx context.Context) ([]models.Handoff, error) {
	var hs []models.Handoff
	if err := s.tx(ctx).Where("status = ?", models.HandoffPending).
		Order("created_at ASC, id ASC").Find(&hs).Error; err != nil {
		return nil, fmt.Errorf("store: pending handoffs: %w", err)
	}
	return hs, nil
}

// Handoffs returns the newest limit handoffs in any status, newest first.
func (s *Store) Handoffs(ctx context.Context, limit int) ([]models.Handoff, error) {
	var hs []models.Handoff
	if err := s.tx(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&hs).Error; err != nil {
		return nil, fmt.Errorf("store: handoffs: %w", err)
	}
	return hs, nil
}
