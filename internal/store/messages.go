package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/kriya/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertMessage persists msg, assigning ID and CreatedAt when empty. When
// msg.DedupeKey is set and a message with that key already exists, msg is
// overwritten with the stored row and created is false.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (created bool, err error) {
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	q := s.tx(ctx)
	if msg.DedupeKey != nil {
		q = q.Clauses(clause.OnConflict{DoNothing: true})
	}
	result := q.Create(msg)
	if result.Error != nil {
		return false, fmt.Errorf("store: insert message %s -> %s: %w", msg.FromAgent, msg.ToAgent, result.Error)
	}
	if result.RowsAffected == 0 && msg.DedupeKey != nil {
		var existing models.Message
		if err := s.tx(ctx).Where("dedupe_key = ?", *msg.DedupeKey).First(&existing).Error; err != nil {
			return false, notFound(err, "message dedupe", *msg.DedupeKey)
		}
		*msg = existing
		return false, nil
	}
	return true, nil
}

// UnreadFor returns messages agentID has not consumed, oldest first: direct
// messages still flagged unread, and broadcasts agentID has not acknowledged.
func (s *Store) UnreadFor(ctx context.Context, agentID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.tx(ctx).
		Where("(to_agent = ? AND is_read = ?) OR (to_agent = ? AND NOT EXISTS (?))",
			agentID, false, models.BroadcastRecipient, s.acksBy(ctx, agentID)).
		Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: unread for %s: %w", agentID, err)
	}
	return msgs, nil
}

// acksBy is a correlated subquery matching agentID's ack of the outer message.
func (s *Store) acksBy(ctx context.Context, agentID string) *gorm.DB {
	return s.tx(ctx).Model(&models.BroadcastAck{}).Select("1").
		Where("broadcast_acks.message_id = messages.id AND broadcast_acks.agent_id = ?", agentID)
}

// MarkRead consumes the given messages on behalf of agentID. Direct messages
// get their read flag set; broadcasts get an ack for agentID only, so other
// agents still see them. Already-read or unknown IDs are not an error.
func (s *Store) MarkRead(ctx context.Context, agentID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND to_agent <> ?", ids, models.BroadcastRecipient).
			Update("is_read", true).Error; err != nil {
			return err
		}
		var broadcasts []string
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND to_agent = ?", ids, models.BroadcastRecipient).
			Pluck("id", &broadcasts).Error; err != nil {
			return err
		}
		if len(broadcasts) == 0 {
			return nil
		}
		now := s.now()
		acks := make([]models.BroadcastAck, len(broadcasts))
		for i, id := range broadcasts {
			acks[i] = models.BroadcastAck{MessageID: id, AgentID: agentID, CreatedAt: now}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acks).Error
	})
	if err != nil {
		return fmt.Errorf("store: mark read for %s: %w", agentID, err)
	}
	return nil
}

// MessagesFor returns the newest limit messages addressed to agentID or to
// all, newest first, without changing read state. IsRead on a broadcast
// reflects agentID's own ack.
func (s *Store) MessagesFor(ctx context.Context, agentID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.tx(ctx).
		Where("to_agent = ? OR to_agent = ?", agentID, models.BroadcastRecipient).
		Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: messages for %s: %w", agentID, err)
	}

	var broadcasts []string
	for _, m := range msgs {
		if m.ToAgent == models.BroadcastRecipient {
			broadcasts = append(broadcasts, m.ID)
		}
	}
	if len(broadcasts) == 0 {
		return msgs, nil
	}
	var acked []string
	if err := s.tx(ctx).Model(&models.BroadcastAck{}).
		Where("agent_id = ? AND message_id IN ?", agentID, broadcasts).
		Pluck("message_id", &acked).Error; err != nil {
		return nil, fmt.Errorf("store: messages for %s: %w", agentID, err)
	}
	seen := make(map[string]bool, len(acked))
	for _, id := range acked {
		seen[id] = true
	}
	for i := range msgs {
		if msgs[i].ToAgent == models.BroadcastRecipient {
			msgs[i].IsRead = seen[msgs[i].ID]
		}
	}
	return msgs, nil
}

// Activity returns the newest limit messages across all agents, newest first.
func (s *Store) Activity(ctx context.Context, limit int) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.tx(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: activity: %w", err)
	}
	return msgs, nil
}

// MessagesSince returns messages created at or after since, oldest first.
// A limit of zero or less returns every match.
func (s *Store) MessagesSince(ctx context.Context, since time.Time, limit int) ([]models.Message, error) {
	q := s.tx(ctx).Where("created_at >= ?", since).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: messages since %s: %w", since.Format(time.RFC3339Nano), err)
	}
	return msgs, nil
}
