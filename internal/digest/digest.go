// Package digest periodically reports the bridge and handoff backlog to the
// operator.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/kriya/internal/bridge"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr parses as a 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("digest: schedule %q: %w", expr, err)
	}
	return nil
}

// Backlog is the bridge subset the digest reads.
type Backlog interface {
	Stale(ctx context.Context, age time.Duration) ([]bridge.Item, error)
}

// Handoffs is the bus subset the digest reads.
type Handoffs interface {
	PendingHandoffs(ctx context.Context) ([]bus.Handoff, error)
}

// Notifier delivers the digest.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Report is one digest's content.
type Report struct {
	GeneratedAt     time.Time
	StaleItems      []bridge.Item
	PendingHandoffs map[string]int // by recipient
}

// Empty reports whether there is nothing to say.
func (r Report) Empty() bool {
	return len(r.StaleItems) == 0 && len(r.PendingHandoffs) == 0
}

// Digest builds and sends reports.
type Digest struct {
	backlog    Backlog
	handoffs   Handoffs
	notifier   Notifier
	staleAfter time.Duration
	log        *zap.Logger
}

// New returns a Digest.
func New(backlog Backlog, handoffs Handoffs, notifier Notifier, staleAfter time.Duration, log *zap.Logger) *Digest {
	return &Digest{
		backlog:    backlog,
		handoffs:   handoffs,
		notifier:   notifier,
		staleAfter: staleAfter,
		log:        logging.OrNop(log),
	}
}

// Build gathers the current backlog.
func (d *Digest) Build(ctx context.Context) (Report, error) {
	stale, err := d.backlog.Stale(ctx, d.staleAfter)
	if err != nil {
		return Report{}, fmt.Errorf("digest: %w", err)
	}
	pending, err := d.handoffs.PendingHandoffs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("digest: %w", err)
	}
	r := Report{GeneratedAt: time.Now(), StaleItems: stale, PendingHandoffs: map[string]int{}}
	for _, h := range pending {
		r.PendingHandoffs[h.To]++
	}
	return r, nil
}

// Format renders r as a subject and a markdown body.
func Format(r Report, staleAfter time.Duration) (subject, body string) {
	total := 0
	for _, n := range r.PendingHandoffs {
		total += n
	}
	subject = fmt.Sprintf("Kriya backlog: %d stale bridge items, %d pending handoffs", len(r.StaleItems), total)

	var lines []string
	if len(r.StaleItems) > 0 {
		lines = append(lines, fmt.Sprintf("**Bridge**: %d items waiting longer than %s", len(r.StaleItems), staleAfter))
		for _, it := range r.StaleItems {
			lines = append(lines, fmt.Sprintf("- %s (%s, %s, queued %s)",
				it.ID, it.AgentID, it.Status, it.CreatedAt.UTC().Format(time.RFC3339)))
		}
	}
	if total > 0 {
		agents := make([]string, 0, len(r.PendingHandoffs))
		for a := range r.PendingHandoffs {
			agents = append(agents, a)
		}
		sort.Strings(agents)
		parts := make([]string, len(agents))
		for i, a := range agents {
			parts[i] = fmt.Sprintf("%s %d", a, r.PendingHandoffs[a])
		}
		lines = append(lines, fmt.Sprintf("**Handoffs**: %s", strings.Join(parts, ", ")))
	}
	return subject, strings.Join(lines, "\n")
}

// RunOnce builds a report and sends it unless it is empty.
func (d *Digest) RunOnce(ctx context.Context) error {
	r, err := d.Build(ctx)
	if err != nil {
		return err
	}
	if r.Empty() {
		d.log.Debug("digest skipped, backlog empty")
		return nil
	}
	subject, body := Format(r, d.staleAfter)
	if err := d.notifier.Notify(ctx, subject, body); err != nil {
		return fmt.Errorf("digest: notify: %w", err)
	}
	d.log.Info("digest sent", zap.Int("stale_items", len(r.StaleItems)), zap.Int("agents_with_handoffs", len(r.PendingHandoffs)))
	return nil
}

// Start schedules RunOnce on schedule until ctx is done.
func (d *Digest) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(schedule, func() {
		if err := d.RunOnce(ctx); err != nil {
			d.log.Warn("digest failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("digest: schedule %q: %w", schedule, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	d.log.Info("digest scheduled", zap.String("schedule", schedule))
	return nil
}
