// Package modules manages node class packs: a module contributes a set of
// node classes (and conversions) to a factory when loaded and withdraws
// them when unloaded. The engine core does not know which classes exist;
// modules are the only way classes arrive.
package modules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/flowcore/flowcore/internal/core/graph"
)

var (
	// ErrModuleLoadFailed wraps any failure while a module registers its
	// classes.
	ErrModuleLoadFailed = errors.New("module load failed")
	// ErrModuleNotLoaded is returned when a module name has no live
	// registration.
	ErrModuleNotLoaded = errors.New("module not loaded")
)

// Info describes a module for discovery and logging.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

// Module is one loadable pack of node classes.
type Module interface {
	// Metadata identifies the module; Name must be unique per manager.
	Metadata() Info
	// RegisterNodes adds the module's classes and conversions to f.
	RegisterNodes(f *graph.NodeFactory) error
	// UnregisterNodes removes what RegisterNodes added.
	UnregisterNodes(f *graph.NodeFactory) error
}

// Manager tracks which modules are loaded into one factory.
type Manager struct {
	factory *graph.NodeFactory

	mu     sync.Mutex
	loaded map[string]Module
}

// NewManager creates a manager bound to the given factory.
func NewManager(factory *graph.NodeFactory) *Manager {
	return &Manager{
		factory: factory,
		loaded:  make(map[string]Module),
	}
}

// Load registers the module's classes. Loading an already-loaded module is
// a no-op; a registration failure leaves the module unloaded and is
// reported wrapped in ErrModuleLoadFailed.
func (m *Manager) Load(mod Module) error {
	if mod == nil {
		return fmt.Errorf("%w: nil module", ErrModuleLoadFailed)
	}
	name := mod.Metadata().Name
	if name == "" {
		return fmt.Errorf("%w: module has no name", ErrModuleLoadFailed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loaded[name]; ok {
		return nil
	}
	if err := mod.RegisterNodes(m.factory); err != nil {
		// Withdraw whatever the partial registration left behind.
		_ = mod.UnregisterNodes(m.factory)
		return fmt.Errorf("%w: %s: %v", ErrModuleLoadFailed, name, err)
	}
	m.loaded[name] = mod
	return nil
}

// Unload withdraws the module's classes. Unloading a module that is not
// loaded is a no-op, so shutdown paths can unload unconditionally.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.loaded[name]
	if !ok {
		return nil
	}
	delete(m.loaded, name)
	return mod.UnregisterNodes(m.factory)
}

// IsLoaded reports whether the named module is currently loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[name]
	return ok
}

// Module returns the loaded module with the given name.
func (m *Manager) Module(name string) (Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.loaded[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotLoaded, name)
	}
	return mod, nil
}

// Loaded returns the metadata of every loaded module, sorted by name.
func (m *Manager) Loaded() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]Info, 0, len(m.loaded))
	for _, mod := range m.loaded {
		infos = append(infos, mod.Metadata())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// UnloadAll withdraws every loaded module. The first unregister error is
// returned after all modules have been attempted.
func (m *Manager) UnloadAll() error {
	m.mu.Lock()
	mods := make([]Module, 0, len(m.loaded))
	for _, mod := range m.loaded {
		mods = append(mods, mod)
	}
	m.loaded = make(map[string]Module)
	m.mu.Unlock()

	var firstErr error
	for _, mod := range mods {
		if err := mod.UnregisterNodes(m.factory); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
