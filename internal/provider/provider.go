// Package provider adapts upstream completion APIs to one streaming shape:
// build an HTTP request, then decode each server-sent data payload into a
// text delta, a terminator, or an upstream error.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/errdefs"
)

// Turn is one role/content message sent upstream.
type Turn struct {
	Role    string
	Content string
}

// Request is a provider-neutral streaming completion request.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Turn
	Temperature  *float64 // nil leaves the provider default
	MaxTokens    int
}

// Event is the decoded meaning of one data payload.
type Event struct {
	Delta string // incremental text, possibly empty
	Done  bool   // stream terminator
	Err   string // upstream-reported error
}

// Provider is one upstream completion API.
type Provider interface {
	Name() string
	// Check reports whether the provider can serve requests at all, such as
	// a missing API key. It makes no network calls.
	Check() error
	// NewRequest builds the streaming HTTP request for req.
	NewRequest(ctx context.Context, req Request) (*http.Request, error)
	// Decode interprets one data payload. ok is false when the payload is
	// not understood and should be skipped.
	Decode(data []byte) (ev Event, ok bool)
}

// Registry holds the configured providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a provider per configured entry.
func NewRegistry(cfgs map[string]config.ProviderConfig) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(cfgs))}
	for name, pc := range cfgs {
		switch pc.Kind {
		case config.ProviderKindOpenAI, "":
			r.providers[name] = NewOpenAI(name, pc)
		case config.ProviderKindAnthropic:
			r.providers[name] = NewAnthropic(name, pc)
		default:
			return nil, fmt.Errorf("provider: %s: unknown kind %q", name, pc.Kind)
		}
	}
	return r, nil
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the named provider. An unknown name wraps errdefs.ErrValidation.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q: %w", name, errdefs.ErrValidation)
	}
	return p, nil
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func missingKey(name string) error {
	return fmt.Errorf("provider: %s: api key not configured: %w", name, errdefs.ErrValidation)
}
