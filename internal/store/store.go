// Package store is Kriya's durable store: append and query access to
// conversation entries, messages, handoffs, and bridge queue items. It holds
// no policy. Foreign keys such as agent IDs are not validated here; callers
// must check them before writing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/kriya/internal/errdefs"
	"gorm.io/gorm"
)

// Store wraps a GORM connection. It is safe for concurrent use; the database
// arbitrates between concurrent writers.
type Store struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		now:   time.Now,
		newID: newID,
	}
}

// DB exposes the underlying connection for health checks and migrations.
func (s *Store) DB() *gorm.DB { return s.db }

// newID returns a time-ordered UUIDv7 so that lexical order follows creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound maps gorm.ErrRecordNotFound onto errdefs.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: %s %s: %w", what, id, errdefs.ErrNotFound)
	}
	return fmt.Errorf("store: get %s %s: %w", what, id, err)
}
