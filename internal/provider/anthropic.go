package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/models"
)

const anthropicVersion = "2023-06-01"

// Anthropic speaks the Messages API.
type Anthropic struct {
	name string
	cfg  config.ProviderConfig
}

// NewAnthropic returns a Messages API provider.
func NewAnthropic(name string, cfg config.ProviderConfig) *Anthropic {
	return &Anthropic{name: name, cfg: cfg}
}

func (p *Anthropic) Name() string { return p.name }

// Body encodes req as a streaming Messages request. System turns inside
// req.Messages are folded into the system blocks.
func (p *Anthropic) Body(req Request) ([]byte, error) {
	model := req.Model
	if alias, ok := p.cfg.ModelAliases[model]; ok {
		model = alias
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = append(params.System, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, t := range req.Messages {
		switch t.Role {
		case models.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: t.Content})
		case models.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: encode request: %w", p.name, err)
	}
	return sjson.SetBytes(body, "stream", true)
}

func (p *Anthropic) Check() error {
	if p.cfg.APIKey == "" {
		return missingKey(p.name)
	}
	return nil
}

func (p *Anthropic) NewRequest(ctx context.Context, req Request) (*http.Request, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	body, err := p.Body(req)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", p.name, err)
	}
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Decode reads the event type from the payload itself, so "event:" lines
// need not be tracked.
func (p *Anthropic) Decode(data []byte) (Event, bool) {
	if !gjson.ValidBytes(data) {
		return Event{}, false
	}
	switch gjson.GetBytes(data, "type").String() {
	case "content_block_delta":
		if gjson.GetBytes(data, "delta.type").String() != "text_delta" {
			return Event{}, true
		}
		return Event{Delta: gjson.GetBytes(data, "delta.text").String()}, true
	case "message_stop":
		return Event{Done: true}, true
	case "error":
		return Event{Err: gjson.GetBytes(data, "error.message").String()}, true
	case "":
		return Event{}, false
	default:
		// message_start, content_block_start, ping, and similar carry no text.
		return Event{}, true
	}
}
