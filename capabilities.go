package llmprovider

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed config/providers/*.yaml
var providerMetadataFS embed.FS

// Capabilities Philosophy:
//
// This file provides PROVIDER AND MODEL METADATA for defaults, CLI listings and
// validation warnings. It does NOT enforce validation - provider APIs are the
// source of truth.
//
// Metadata may be outdated as providers release new models.
// Library users can override the embedded metadata by:
//  1. Calling LoadCapabilitiesFromFile() with custom YAML
//  2. Calling RegisterProviderCapabilities() programmatically

// ProviderCapabilities represents the metadata of one provider
type ProviderCapabilities struct {
	Version      string            `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated  string            `yaml:"last_updated"` // ISO 8601 date (e.g., "2025-01-15")
	Provider     string            `yaml:"provider"`
	DisplayName  string            `yaml:"display_name"`
	Description  string            `yaml:"description"`
	DocURL       string            `yaml:"doc_url"`
	DefaultModel string            `yaml:"default_model"`
	ConfigKeys   []ConfigKey       `yaml:"config_keys"`
	Models       []ModelCapability `yaml:"models"`
}

// ConfigKey documents one environment setting a provider reads
type ConfigKey struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Secret   bool   `yaml:"secret"`
	Default  string `yaml:"default"`
}

// ModelCapability represents the capabilities of a specific model
type ModelCapability struct {
	ID              string        `yaml:"id"`
	ContextWindow   int           `yaml:"context_window"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Features        ModelFeatures `yaml:"features"`
}

// ModelFeatures indicates which features a model supports
type ModelFeatures struct {
	Tools     bool `yaml:"tools"`
	Streaming bool `yaml:"streaming"`
}

// Model returns the capability entry for id.
func (c *ProviderCapabilities) Model(id string) (*ModelCapability, bool) {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i], true
		}
	}
	return nil, false
}

// ModelIDs returns the known model ids in file order.
func (c *ProviderCapabilities) ModelIDs() []string {
	ids := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		ids = append(ids, m.ID)
	}
	return ids
}

// CapabilityRegistry manages provider capabilities
type CapabilityRegistry struct {
	capabilities map[string]*ProviderCapabilities
	mu           sync.RWMutex
}

var (
	globalRegistry     *CapabilityRegistry
	globalRegistryOnce sync.Once
)

// GetCapabilityRegistry returns the global capability registry (singleton)
func GetCapabilityRegistry() *CapabilityRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = &CapabilityRegistry{
			capabilities: make(map[string]*ProviderCapabilities),
		}
		// Load embedded provider metadata
		if err := globalRegistry.loadEmbedded(); err != nil {
			// Log error but don't panic - lookups will report missing providers
			log.Warn().Err(err).Msg("failed to load embedded provider metadata")
		}
	})
	return globalRegistry
}

// loadEmbedded loads every embedded provider YAML
func (r *CapabilityRegistry) loadEmbedded() error {
	entries, err := providerMetadataFS.ReadDir("config/providers")
	if err != nil {
		return fmt.Errorf("failed to list embedded metadata: %w", err)
	}

	for _, entry := range entries {
		data, err := providerMetadataFS.ReadFile(path.Join("config/providers", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		if err := r.load(data); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (r *CapabilityRegistry) load(data []byte) error {
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return err
	}
	if caps.Provider == "" {
		return fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[caps.Provider] = &caps
	return nil
}

// GetProviderCapabilities returns capabilities for a provider
func (r *CapabilityRegistry) GetProviderCapabilities(provider string) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.capabilities[provider]
	if !ok {
		return nil, fmt.Errorf("no capabilities found for provider: %s", provider)
	}
	return caps, nil
}

// GetModelCapability returns capabilities for a specific model
func (r *CapabilityRegistry) GetModelCapability(provider, model string) (*ModelCapability, error) {
	providerCaps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return nil, err
	}

	modelCap, ok := providerCaps.Model(model)
	if !ok {
		return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
	}
	return modelCap, nil
}

// SupportsModel checks if a provider lists a specific model
func (r *CapabilityRegistry) SupportsModel(provider, model string) bool {
	_, err := r.GetModelCapability(provider, model)
	return err == nil
}

// SupportsTools checks if a model supports tools
func (r *CapabilityRegistry) SupportsTools(provider, model string) bool {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return false
	}
	return modelCap.Features.Tools
}

// DefaultModel returns the provider's default model, or "" if unknown.
func (r *CapabilityRegistry) DefaultModel(provider string) string {
	caps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return ""
	}
	return caps.DefaultModel
}

// Providers returns the names of all registered providers, sorted
func (r *CapabilityRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadCapabilitiesFromFile loads provider capabilities from a YAML file.
// This allows library users to override embedded capabilities with custom data.
// The file format should match the embedded YAML structure.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}

	if err := r.load(data); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	return nil
}

// RegisterProviderCapabilities programmatically registers provider capabilities.
// This allows library users to define capabilities in code rather than YAML.
func (r *CapabilityRegistry) RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = caps
}

// LoadCapabilitiesFromFile is a convenience function that calls the global registry's LoadCapabilitiesFromFile.
func LoadCapabilitiesFromFile(path string) error {
	return GetCapabilityRegistry().LoadCapabilitiesFromFile(path)
}

// RegisterProviderCapabilities is a convenience function that calls the global registry's RegisterProviderCapabilities.
func RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	GetCapabilityRegistry().RegisterProviderCapabilities(provider, caps)
}
