package bus

import (
	"encoding/json"
	"time"

	"github.com/zulandar/kriya/internal/models"
)

// Message is the API projection of a stored message.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handoff is the API projection of a stored handoff.
type Handoff struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Task      string         `json:"task"`
	Context   map[string]any `json:"context,omitempty"`
	Status    string         `json:"status"`
	Result    *string        `json:"result,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func messageFromModel(m models.Message) Message {
	return Message{
		ID:        m.ID,
		From:      m.FromAgent,
		To:        m.ToAgent,
		Content:   m.Content,
		Type:      m.Type,
		Read:      m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}

func messagesFromModels(ms []models.Message) []Message {
	out := make([]Message, len(ms))
	for i, m := range ms {
		out[i] = messageFromModel(m)
	}
	return out
}

func handoffFromModel(h models.Handoff) Handoff {
	out := Handoff{
		ID:        h.ID,
		From:      h.FromAgent,
		To:        h.ToAgent,
		Task:      h.Task,
		Status:    string(h.Status),
		Result:    h.Result,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
	if len(h.Context) > 0 {
		// A context blob that fails to decode is dropped from the projection.
		_ = json.Unmarshal(h.Context, &out.Context)
	}
	return out
}

func handoffsFromModels(hs []models.Handoff) []Handoff {
	out := make([]Handoff, len(hs))
	for i, h := range hs {
		out[i] = handoffFromModel(h)
	}
	return out
}
