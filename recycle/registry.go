package recycle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rhesis-ai/rhesis-backend/lifecycle"
)

// ErrUnknownType is returned for entity types nothing was registered for
var ErrUnknownType = fmt.Errorf("unknown entity type: %w", lifecycle.ErrNotFound)

// Cascade makes lifecycle transitions of a parent row follow through to
// the child rows referencing it with ForeignKey
type Cascade struct {
	Parent     string
	Child      string
	ForeignKey string
	OnDelete   bool
	OnRestore  bool
}

// Registry maps table names to their managers
type Registry struct {
	mu       sync.RWMutex
	managers map[string]Manager
	cascades map[string][]Cascade
}

func NewRegistry() *Registry {
	return &Registry{
		managers: make(map[string]Manager),
		cascades: make(map[string][]Cascade),
	}
}

// Register adds m under its name, replacing any previous manager
func (r *Registry) Register(m Manager) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[m.Name()] = m
	return r
}

// AddCascade declares a parent to child cascade. Both types must be registered.
func (r *Registry) AddCascade(c Cascade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.managers[c.Parent]; !ok {
		return fmt.Errorf("cascade parent %q: %w", c.Parent, ErrUnknownType)
	}
	if _, ok := r.managers[c.Child]; !ok {
		return fmt.Errorf("cascade child %q: %w", c.Child, ErrUnknownType)
	}
	if c.ForeignKey == "" {
		return fmt.Errorf("cascade %s -> %s: foreign key is required", c.Parent, c.Child)
	}
	r.cascades[c.Parent] = append(r.cascades[c.Parent], c)
	return nil
}

// Lookup returns the manager registered for name
func (r *Registry) Lookup(name string) (Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownType)
	}
	return m, nil
}

// Names returns the registered table names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) cascadesOf(parent string) []Cascade {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Cascade(nil), r.cascades[parent]...)
}
