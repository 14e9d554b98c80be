// Package agents is the read-only agent directory: the catalog loaded from
// configuration, merged with each user's stored overrides.
package agents

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/errdefs"
	"github.com/zulandar/kriya/internal/models"
	"gopkg.in/yaml.v3"
)

// ProviderBridge marks an agent served by the external bridge participant
// instead of a completion provider.
const ProviderBridge = "bridge"

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// Agent is the effective configuration of one agent for one user.
type Agent struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Icon         string  `json:"icon,omitempty"`
	Color        string  `json:"color,omitempty"`
	Group        string  `json:"group,omitempty"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
	DisplayOrder int     `json:"displayOrder"`
}

// IsBridge reports whether a is served by the bridge participant.
func (a Agent) IsBridge() bool { return a.Provider == ProviderBridge }

// Settings reads per-user overrides. *store.Store satisfies it.
type Settings interface {
	AgentSetting(ctx context.Context, userID, agentID string) (*models.AgentSetting, error)
	AgentSettings(ctx context.Context, userID string) (map[string]models.AgentSetting, error)
}

// Directory resolves agent IDs to configuration.
type Directory struct {
	agents   map[string]Agent
	folded   map[string]string // lower-cased id -> canonical id
	settings Settings
}

type catalogFile struct {
	Agents []config.AgentConfig `yaml:"agents"`
}

// LoadCatalog reads the agent list from a YAML file with a top-level agents key.
func LoadCatalog(path string) ([]config.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agents: read %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("agents: parse %s: %w", path, err)
	}
	return f.Agents, nil
}

// FromConfig builds a Directory from inline agents, or from cfg.AgentsFile
// when none are inline.
func FromConfig(cfg *config.Config, settings Settings) (*Directory, error) {
	catalog := cfg.Agents
	if len(catalog) == 0 && cfg.AgentsFile != "" {
		var err error
		catalog, err = LoadCatalog(cfg.AgentsFile)
		if err != nil {
			return nil, err
		}
	}
	return New(catalog, cfg.Providers, settings)
}

// New validates catalog and returns a Directory. providers, when non-nil,
// lists the provider names agents may reference. settings may be nil.
func New(catalog []config.AgentConfig, providers map[string]config.ProviderConfig, settings Settings) (*Directory, error) {
	d := &Directory{
		agents:   make(map[string]Agent, len(catalog)),
		folded:   make(map[string]string, len(catalog)),
		settings: settings,
	}
	var errs []string
	for i, ac := range catalog {
		if ac.ID == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].id is required", i))
			continue
		}
		key := strings.ToLower(ac.ID)
		if prev, dup := d.folded[key]; dup {
			errs = append(errs, fmt.Sprintf("agent %q duplicates %q", ac.ID, prev))
			continue
		}
		if ac.Provider == "" {
			errs = append(errs, fmt.Sprintf("agent %q: provider is required", ac.ID))
		} else if ac.Provider != ProviderBridge && providers != nil {
			if _, ok := providers[ac.Provider]; !ok {
				errs = append(errs, fmt.Sprintf("agent %q: unknown provider %q", ac.ID, ac.Provider))
			}
		}
		a := Agent{
			ID:           ac.ID,
			Name:         ac.Name,
			Icon:         ac.Icon,
			Color:        ac.Color,
			Group:        ac.Group,
			Model:        ac.Model,
			Provider:     ac.Provider,
			SystemPrompt: ac.SystemPrompt,
			Temperature:  defaultTemperature,
			MaxTokens:    ac.MaxTokens,
			DisplayOrder: ac.DisplayOrder,
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if ac.Temperature != nil {
			a.Temperature = *ac.Temperature
		}
		if a.MaxTokens == 0 {
			a.MaxTokens = defaultMaxTokens
		}
		if a.DisplayOrder == 0 {
			a.DisplayOrder = i + 1
		}
		d.agents[a.ID] = a
		d.folded[key] = a.ID
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("agents: invalid catalog: %s", strings.Join(errs, "; "))
	}
	return d, nil
}

// Resolve maps id case-insensitively to a canonical agent ID.
func (d *Directory) Resolve(id string) (string, bool) {
	canonical, ok := d.folded[strings.ToLower(strings.TrimSpace(id))]
	return canonical, ok
}

// Has reports whether id names a catalog agent exactly.
func (d *Directory) Has(id string) bool {
	_, ok := d.agents[id]
	return ok
}

// IDs returns every catalog agent ID in display order.
func (d *Directory) IDs() []string {
	list := d.sorted(nil)
	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	return ids
}

// Lookup returns the effective configuration of id for userID. An unknown id
// yields an error wrapping errdefs.ErrNotFound.
func (d *Directory) Lookup(ctx context.Context, userID, id string) (Agent, error) {
	a, ok := d.agents[id]
	if !ok {
		return Agent{}, fmt.Errorf("agents: agent %q: %w", id, errdefs.ErrNotFound)
	}
	if d.settings == nil || userID == "" {
		return a, nil
	}
	s, err := d.settings.AgentSetting(ctx, userID, id)
	if err != nil {
		return Agent{}, fmt.Errorf("agents: overrides for %s: %w", id, err)
	}
	if s != nil {
		a = merge(a, *s)
	}
	return a, nil
}

// List returns every agent merged with userID's overrides, sorted by display
// order then ID.
func (d *Directory) List(ctx context.Context, userID string) ([]Agent, error) {
	var overrides map[string]models.AgentSetting
	if d.settings != nil && userID != "" {
		var err error
		overrides, err = d.settings.AgentSettings(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("agents: overrides for %s: %w", userID, err)
		}
	}
	return d.sorted(overrides), nil
}

func (d *Directory) sorted(overrides map[string]models.AgentSetting) []Agent {
	list := make([]Agent, 0, len(d.agents))
	for id, a := range d.agents {
		if s, ok := overrides[id]; ok {
			a = merge(a, s)
		}
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DisplayOrder != list[j].DisplayOrder {
			return list[i].DisplayOrder < list[j].DisplayOrder
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func merge(a Agent, s models.AgentSetting) Agent {
	if s.Model != "" {
		a.Model = s.Model
	}
	if s.Temperature != nil {
		a.Temperature = *s.Temperature
	}
	if s.MaxTokens != nil && *s.MaxTokens > 0 {
		a.MaxTokens = *s.MaxTokens
	}
	if s.SystemPrompt != "" {
		a.SystemPrompt = s.SystemPrompt
	}
	if s.DisplayOrder != nil {
		a.DisplayOrder = *s.DisplayOrder
	}
	return a
}
