package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bulwise/bulwise/config"
)

// Registry maps configured model keys to ModelInfo, shared by the concrete
// clients.
type Registry struct {
	models map[string]ModelInfo
}

// NewRegistry builds a model registry from provider configuration.
func NewRegistry(cfg config.LLMProvider) *Registry {
	r := &Registry{models: make(map[string]ModelInfo, len(cfg.Models))}
	for key, m := range cfg.Models {
		apiName := m.APIName
		if apiName == "" {
			apiName = m.Name
		}
		r.models[key] = ModelInfo{
			Name:            m.Name,
			APIName:         apiName,
			MaxTokens:       m.MaxTokens,
			Temperature:     m.Temperature,
			CostPer1KInput:  m.CostPer1K,
			CostPer1KOutput: m.CostPer1KOutput,
			Encoding:        m.Encoding,
		}
	}
	return r
}

// ModelInfo returns the configured model, or an error for unknown keys.
func (r *Registry) ModelInfo(model string) (ModelInfo, error) {
	info, ok := r.models[model]
	if !ok {
		return ModelInfo{}, fmt.Errorf("model not configured: %s", model)
	}
	return info, nil
}

// Models lists the configured model keys.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.models))
	for k := range r.models {
		out = append(out, k)
	}
	return out
}

// Factory builds a Provider from configuration. Registered constructors are
// keyed by the provider type string; the concrete packages register
// themselves via RegisterType.
type Constructor func(cfg config.LLMProvider) (Provider, error)

var constructors = map[string]Constructor{}

// RegisterType installs a constructor for a provider type. Called from the
// concrete client packages' init functions.
func RegisterType(typ string, ctor Constructor) {
	constructors[typ] = ctor
}

// New creates the configured provider. Exactly one provider must be
// configured; picking one from map iteration would be nondeterministic.
func New(cfg config.LLMConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}
	if len(cfg.Providers) > 1 {
		names := make([]string, 0, len(cfg.Providers))
		for name := range cfg.Providers {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("multiple LLM providers configured (%s); keep exactly one", strings.Join(names, ", "))
	}
	for name, pc := range cfg.Providers {
		ctor, ok := constructors[pc.Type]
		if !ok {
			return nil, fmt.Errorf("unsupported LLM provider type for %s: %s", name, pc.Type)
		}
		return ctor(pc)
	}
	return nil, fmt.Errorf("no valid LLM providers found")
}
