// Package overview projects cross-agent state for the overview agent and the
// overview API. It only reads.
package overview

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/kriya/internal/agents"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
)

// Options sizes a snapshot.
type Options struct {
	PreviewLen    int // runes per message preview
	RecentEntries int // conversation entries previewed per agent
	ActivityLimit int // recent bus messages included
}

// APIOptions sizes the overview endpoint.
var APIOptions = Options{PreviewLen: 150, RecentEntries: 3, ActivityLimit: 20}

// PromptOptions sizes the overview agent's injected state.
var PromptOptions = Options{PreviewLen: 200, RecentEntries: 1, ActivityLimit: 10}

// Preview is a shortened conversation entry.
type Preview struct {
	Role    string `json:"role"`
	Preview string `json:"preview"`
}

// AgentSummary describes one agent's conversation and handoff load.
type AgentSummary struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Icon         string        `json:"icon,omitempty"`
	MessageCount int64         `json:"messageCount"`
	LastActivity string        `json:"lastActivity"` // active or idle
	LastMessages []Preview     `json:"lastMessages"`
	PendingTo    []bus.Handoff `json:"pendingTo"`
	PendingFrom  []bus.Handoff `json:"pendingFrom"`
}

// Snapshot is the whole projection.
type Snapshot struct {
	Timestamp       time.Time      `json:"timestamp"`
	Agents          []AgentSummary `json:"agents"`
	PendingHandoffs []bus.Handoff  `json:"pendingHandoffs"`
	RecentActivity  []bus.Message  `json:"recentActivity"`
}

// Conversations is the store subset the overview reads.
type Conversations interface {
	ConversationCount(ctx context.Context, agentID string) (int64, error)
	RecentConversation(ctx context.Context, agentID string, limit int) ([]models.ConversationEntry, error)
}

// Activity is the bus subset the overview reads.
type Activity interface {
	Activity(ctx context.Context, limit int) ([]bus.Message, error)
	PendingHandoffs(ctx context.Context) ([]bus.Handoff, error)
}

// Builder assembles snapshots.
type Builder struct {
	agents        *agents.Directory
	conversations Conversations
	activity      Activity
	overviewID    string
}

// NewBuilder returns a Builder. overviewID is excluded from agent summaries.
func NewBuilder(dir *agents.Directory, conv Conversations, act Activity, overviewID string) *Builder {
	return &Builder{agents: dir, conversations: conv, activity: act, overviewID: overviewID}
}

// Build returns the current snapshot for userID.
func (b *Builder) Build(ctx context.Context, userID string, opts Options) (Snapshot, error) {
	pending, err := b.activity.PendingHandoffs(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("overview: %w", err)
	}
	recent, err := b.activity.Activity(ctx, opts.ActivityLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("overview: %w", err)
	}
	list, err := b.agents.List(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("overview: %w", err)
	}

	snap := Snapshot{
		Timestamp:       time.Now().UTC(),
		Agents:          make([]AgentSummary, 0, len(list)),
		PendingHandoffs: pending,
		RecentActivity:  recent,
	}
	for _, a := range list {
		if a.ID == b.overviewID {
			continue
		}
		sum := AgentSummary{
			ID:           a.ID,
			Name:         a.Name,
			Icon:         a.Icon,
			LastActivity: "idle",
			LastMessages: []Preview{},
			PendingTo:    []bus.Handoff{},
			PendingFrom:  []bus.Handoff{},
		}
		if sum.MessageCount, err = b.conversations.ConversationCount(ctx, a.ID); err != nil {
			return Snapshot{}, fmt.Errorf("overview: %w", err)
		}
		if sum.MessageCount > 0 {
			sum.LastActivity = "active"
			entries, err := b.conversations.RecentConversation(ctx, a.ID, opts.RecentEntries)
			if err != nil {
				return Snapshot{}, fmt.Errorf("overview: %w", err)
			}
			for _, e := range entries {
				sum.LastMessages = append(sum.LastMessages, Preview{Role: e.Role, Preview: logging.Preview(e.Content, opts.PreviewLen)})
			}
		}
		for _, h := range pending {
			if h.To == a.ID {
				sum.PendingTo = append(sum.PendingTo, h)
			}
			if h.From == a.ID {
				sum.PendingFrom = append(sum.PendingFrom, h)
			}
		}
		snap.Agents = append(snap.Agents, sum)
	}
	return snap, nil
}

// PromptSection renders the snapshot as a block appended to the overview
// agent's system prompt.
func (b *Builder) PromptSection(ctx context.Context, userID string) (string, error) {
	snap, err := b.Build(ctx, userID, PromptOptions)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("overview: encode: %w", err)
	}
	return "\n\n--- CURRENT SYSTEM STATE ---\n" + string(raw) + "\n--- END STATE ---", nil
}
