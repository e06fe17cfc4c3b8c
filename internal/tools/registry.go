package tools

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds tool backends by name. It supports config-driven
// instantiation, hot reload, and thread-safe access.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a tool under its own name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	if r.logger != nil {
		r.logger.Info("registered tool", "name", t.Name())
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	if r.logger != nil {
		r.logger.Info("unregistered tool", "name", name)
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t, nil
}

// Has checks whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackendConfig describes one configured tool backend.
type BackendConfig struct {
	Type     string  // "mock", "pdftext", "vlm", "remote"
	Model    string  // model name for vlm backends
	APIKey   string  // resolved API key for vlm backends
	BaseURL  string  // endpoint for remote backends (and vlm override)
	CostUSD  float64 // per-request cost override where the backend cannot self-report
	Enabled  bool
	MaxRetry int // transport retries for remote backends
}

// RegistryConfig maps tool names to backend configurations.
type RegistryConfig struct {
	Tools map[string]BackendConfig
}

// NewRegistryFromConfig creates a registry with backends built from
// configuration. Disabled entries and unknown types are skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	for name, bc := range cfg.Tools {
		if !bc.Enabled {
			continue
		}
		t := createTool(name, bc)
		if t == nil {
			if r.logger != nil {
				r.logger.Warn("unknown tool type, skipping", "name", name, "type", bc.Type)
			}
			continue
		}
		r.tools[name] = t
	}
	return r
}

// Reload updates the registry from new configuration. Tools no longer
// configured are unregistered; changed ones are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(cfg.Tools))
	for name, bc := range cfg.Tools {
		if !bc.Enabled {
			continue
		}
		want[name] = true

		existing, hasExisting := r.tools[name]
		if hasExisting && !needsUpdate(existing, bc) {
			continue
		}
		t := createTool(name, bc)
		if t == nil {
			continue
		}
		r.tools[name] = t
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated tool", "name", name, "type", bc.Type)
			} else {
				r.logger.Info("registered tool", "name", name, "type", bc.Type)
			}
		}
	}

	for name := range r.tools {
		if !want[name] {
			delete(r.tools, name)
			if r.logger != nil {
				r.logger.Info("unregistered tool", "name", name)
			}
		}
	}
}

// createTool builds a backend for the given type.
func createTool(name string, bc BackendConfig) Tool {
	switch bc.Type {
	case "mock":
		m := NewMockTool()
		m.ToolName = name
		return m
	case "pdftext":
		return NewPDFTextTool(name)
	case "vlm":
		return NewVLMTool(VLMConfig{
			Name:    name,
			APIKey:  bc.APIKey,
			Model:   bc.Model,
			BaseURL: bc.BaseURL,
		})
	case "remote":
		return NewRemoteTool(RemoteConfig{
			Name:       name,
			BaseURL:    bc.BaseURL,
			MaxRetries: bc.MaxRetry,
			CostUSD:    bc.CostUSD,
		})
	default:
		return nil
	}
}

// needsUpdate checks whether a backend must be recreated for new config.
func needsUpdate(t Tool, bc BackendConfig) bool {
	switch impl := t.(type) {
	case *VLMTool:
		return impl.apiKey != bc.APIKey || impl.model != bc.Model || impl.baseURL != bc.BaseURL
	case *RemoteTool:
		return impl.baseURL != bc.BaseURL || impl.maxRetries != bc.MaxRetry || impl.costUSD != bc.CostUSD
	case *PDFTextTool:
		return false
	case *MockTool:
		return false
	default:
		return true
	}
}
