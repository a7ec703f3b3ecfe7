package features

import (
	"sort"
	"sync"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string
	Enabled     bool
	Description string
}

// Manager manages feature flags. A nil *Manager reports every flag disabled.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// NewDefaultManager creates a manager with every predefined flag registered.
func NewDefaultManager() *Manager {
	m := NewManager()
	m.Register(FeatureEventHooksEnabled, true, "publish reward events to subscribers")
	m.Register(FeatureRequestLogging, true, "log every HTTP request")
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	if m == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false // Default to disabled if flag doesn't exist
	}

	return flag.Enabled
}

// Set enables or disables a registered flag. Unknown names are ignored.
func (m *Manager) Set(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = enabled
	}
}

// Apply sets every flag named in overrides.
func (m *Manager) Apply(overrides map[string]bool) {
	for name, enabled := range overrides {
		m.Set(name, enabled)
	}
}

// GetAll returns a copy of all feature flags sorted by name.
func (m *Manager) GetAll() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Predefined feature flag names
const (
	// FeatureEventHooksEnabled enables/disables reward event publishing
	FeatureEventHooksEnabled = "event_hooks_enabled"
	// FeatureRequestLogging enables/disables per-request access logs
	FeatureRequestLogging = "request_logging"
)
