package llmprovider

import (
	"fmt"
	"sort"
	"sync"
)

// ToolDefinition describes how to create a tool
type ToolDefinition struct {
	Name        string                // Unique tool name
	Description string                // Human-readable description
	Factory     func() (*Tool, error) // Factory function to create tool
}

// ToolRegistry manages named tool definitions.
// The CLI and examples resolve --tool flags through it; library users may register their own.
type ToolRegistry struct {
	tools map[string]ToolDefinition
	mu    sync.RWMutex
}

var (
	globalToolRegistry     *ToolRegistry
	globalToolRegistryOnce sync.Once
)

// GetToolRegistry returns the global tool registry (singleton)
func GetToolRegistry() *ToolRegistry {
	globalToolRegistryOnce.Do(func() {
		globalToolRegistry = NewToolRegistry()
		globalToolRegistry.registerSampleTools()
	})
	return globalToolRegistry
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]ToolDefinition),
	}
}

// registerSampleTools registers the demonstration tools
func (r *ToolRegistry) registerSampleTools() {
	_ = r.Register(ToolDefinition{
		Name:        "get_weather",
		Description: "Current weather for a location",
		Factory: func() (*Tool, error) {
			return NewCustomTool("get_weather", "Get the current weather for a location", map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"location": map[string]interface{}{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
					"unit": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{"celsius", "fahrenheit"},
					},
				},
				"required": []interface{}{"location"},
			})
		},
	})

	_ = r.Register(ToolDefinition{
		Name:        "search_files",
		Description: "Full-text search over local files",
		Factory: func() (*Tool, error) {
			return NewCustomTool("search_files", "Search files in the workspace for a query", map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type": "string",
					},
					"max_results": map[string]interface{}{
						"type": "integer",
					},
				},
				"required": []interface{}{"query"},
			})
		},
	})
}

// Register adds a tool definition to the registry
func (r *ToolRegistry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	if def.Factory == nil {
		return fmt.Errorf("factory function is required for tool %s", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}

	r.tools[def.Name] = def
	return nil
}

// Get retrieves a tool definition by name
func (r *ToolRegistry) Get(name string) (ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.tools[name]
	if !exists {
		return ToolDefinition{}, fmt.Errorf("unknown tool: %s", name)
	}

	return def, nil
}

// List returns all registered tool names, sorted
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create creates a tool instance using the registered factory
func (r *ToolRegistry) Create(name string) (*Tool, error) {
	def, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return def.Factory()
}

// CreateTools resolves several names at once, failing on the first unknown one.
func (r *ToolRegistry) CreateTools(names []string) ([]Tool, error) {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tool, err := r.Create(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, *tool)
	}
	return tools, nil
}

// RegisterTool is a convenience function that registers a tool with the global registry
func RegisterTool(def ToolDefinition) error {
	return GetToolRegistry().Register(def)
}

// CreateTool is a convenience function that creates a tool using the global registry
func CreateTool(name string) (*Tool, error) {
	return GetToolRegistry().Create(name)
}
