// Package notify delivers best-effort operator notifications through a shell
// command, a Slack incoming webhook, or a Discord webhook.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/logging"
	"go.uber.org/zap"
)

// Notifier sends one notification.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Multi fans a notification out to every configured notifier.
type Multi struct {
	notifiers []Notifier
	log       *zap.Logger
}

// NewMulti returns a Multi over ns.
func NewMulti(log *zap.Logger, ns ...Notifier) *Multi {
	return &Multi{notifiers: ns, log: logging.OrNop(log)}
}

// FromConfig builds a Multi from whichever channels cfg enables. The result
// may be empty, in which case Notify does nothing.
func FromConfig(cfg config.NotifyConfig, log *zap.Logger) (*Multi, error) {
	var ns []Notifier
	if cfg.Command != "" {
		ns = append(ns, NewCommand(cfg.Command))
	}
	if cfg.SlackWebhookURL != "" {
		ns = append(ns, NewSlack(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		d, err := NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			return nil, err
		}
		ns = append(ns, d)
	}
	return NewMulti(log, ns...), nil
}

// Len returns the number of configured notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify calls every notifier and joins their errors.
func (m *Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, subject, body); err != nil {
			m.log.Warn("notification failed", zap.String("notifier", fmt.Sprintf("%T", n)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
