package llmprovider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCapabilityRegistry_EmbeddedProviders(t *testing.T) {
	registry := GetCapabilityRegistry()

	providers := registry.Providers()
	for _, want := range []string{"anthropic", "aws_bedrock", "lorem"} {
		found := false
		for _, p := range providers {
			if p == want {
				found = true
			}
		}
		if !found {
			t.Errorf("provider %s not loaded, have %v", want, providers)
		}
	}

	tests := []struct {
		provider     string
		defaultModel string
	}{
		{"aws_bedrock", "us.anthropic.claude-sonnet-4-5-20250929-v1:0"},
		{"anthropic", "claude-sonnet-4-5-20250929"},
		{"lorem", "lorem-fast"},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if got := registry.DefaultModel(tt.provider); got != tt.defaultModel {
				t.Errorf("DefaultModel() = %q, want %q", got, tt.defaultModel)
			}
		})
	}
}

func TestCapabilityRegistry_DefaultModelIsListed(t *testing.T) {
	registry := GetCapabilityRegistry()
	for _, provider := range registry.Providers() {
		def := registry.DefaultModel(provider)
		if !registry.SupportsModel(provider, def) {
			t.Errorf("%s default model %q is not in its model list", provider, def)
		}
	}
}

func TestCapabilityRegistry_ModelLookup(t *testing.T) {
	registry := GetCapabilityRegistry()

	modelCap, err := registry.GetModelCapability("aws_bedrock", "us.anthropic.claude-opus-4-1-20250805-v1:0")
	if err != nil {
		t.Fatalf("GetModelCapability() error = %v", err)
	}
	if modelCap.MaxOutputTokens != 32000 {
		t.Errorf("MaxOutputTokens = %d, want 32000", modelCap.MaxOutputTokens)
	}
	if !registry.SupportsTools("aws_bedrock", modelCap.ID) {
		t.Error("bedrock Claude models support tools")
	}

	if _, err := registry.GetModelCapability("aws_bedrock", "not-a-model"); err == nil {
		t.Error("expected error for unknown model")
	}
	if registry.SupportsTools("missing", "anything") {
		t.Error("unknown providers support nothing")
	}
}

func TestCapabilityRegistry_LoadFromFile(t *testing.T) {
	registry := &CapabilityRegistry{capabilities: make(map[string]*ProviderCapabilities)}

	file := filepath.Join(t.TempDir(), "custom.yaml")
	yaml := `
provider: custom
default_model: custom-1
models:
  - id: custom-1
    max_output_tokens: 100
    features:
      tools: false
      streaming: true
`
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := registry.LoadCapabilitiesFromFile(file); err != nil {
		t.Fatalf("LoadCapabilitiesFromFile() error = %v", err)
	}

	caps, err := registry.GetProviderCapabilities("custom")
	if err != nil {
		t.Fatal(err)
	}
	if ids := caps.ModelIDs(); len(ids) != 1 || ids[0] != "custom-1" {
		t.Errorf("ModelIDs() = %v", ids)
	}
	if registry.SupportsTools("custom", "custom-1") {
		t.Error("custom-1 declares no tool support")
	}

	noName := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(noName, []byte("models: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := registry.LoadCapabilitiesFromFile(noName); err == nil {
		t.Error("expected error for metadata without a provider name")
	}
}

func TestCapabilityRegistry_Register(t *testing.T) {
	registry := &CapabilityRegistry{capabilities: make(map[string]*ProviderCapabilities)}
	registry.RegisterProviderCapabilities("inline", &ProviderCapabilities{
		Provider:     "inline",
		DefaultModel: "m",
		Models:       []ModelCapability{{ID: "m"}},
	})

	if !registry.SupportsModel("inline", "m") {
		t.Error("registered model should be supported")
	}
	if _, ok := (&ProviderCapabilities{}).Model("m"); ok {
		t.Error("empty capabilities list no models")
	}
}
