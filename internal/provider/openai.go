package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/models"
)

// doneSentinel terminates an OpenAI-compatible stream.
const doneSentinel = "[DONE]"

// OpenAI speaks the OpenAI-compatible chat completions API used by
// OpenRouter, DashScope compatible mode, and similar gateways.
type OpenAI struct {
	name string
	cfg  config.ProviderConfig
}

// NewOpenAI returns an OpenAI-compatible provider.
func NewOpenAI(name string, cfg config.ProviderConfig) *OpenAI {
	return &OpenAI{name: name, cfg: cfg}
}

func (p *OpenAI) Name() string { return p.name }

// resolveModel applies the configured alias map.
func (p *OpenAI) resolveModel(model string) string {
	if alias, ok := p.cfg.ModelAliases[model]; ok {
		return alias
	}
	return model
}

// Body encodes req as a streaming chat completion body.
func (p *OpenAI) Body(req Request) ([]byte, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, t := range req.Messages {
		switch t.Role {
		case models.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.resolveModel(req.Model)),
		Messages: msgs,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: encode request: %w", p.name, err)
	}
	return sjson.SetBytes(body, "stream", true)
}

func (p *OpenAI) Check() error {
	if p.cfg.APIKey == "" {
		return missingKey(p.name)
	}
	return nil
}

func (p *OpenAI) NewRequest(ctx context.Context, req Request) (*http.Request, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	body, err := p.Body(req)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", p.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range p.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (p *OpenAI) Decode(data []byte) (Event, bool) {
	if string(bytes.TrimSpace(data)) == doneSentinel {
		return Event{Done: true}, true
	}
	if !gjson.ValidBytes(data) {
		return Event{}, false
	}
	if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
		return Event{Err: msg.String()}, true
	}
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return Event{}, false
	}
	var delta strings.Builder
	for _, c := range chunk.Choices {
		delta.WriteString(c.Delta.Content)
	}
	return Event{Delta: delta.String()}, true
}
