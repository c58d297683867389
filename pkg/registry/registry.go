package registry

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
)

// DuplicatePolicy decides what Register does with a name that already exists.
type DuplicatePolicy int

const (
	// Replace keeps the newest registration (last-registration-wins).
	Replace DuplicatePolicy = iota
	// Keep ignores the new registration and keeps the first one.
	Keep
)

// Registry maps action names to actions.
//
// Lookups read an immutable map through an atomic pointer and never block.
// Writers copy the current map, modify the copy and swap it in, so a reader
// observes either the whole old mapping or the whole new one.
type Registry struct {
	actions atomic.Pointer[map[string]domain.Action]

	mu     sync.Mutex // serializes writers
	policy DuplicatePolicy
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithDuplicatePolicy overrides the default Replace policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// WithLogger configures the logger used for configuration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry holding the given actions.
func New(opts ...Option) *Registry {
	r := &Registry{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	empty := map[string]domain.Action{}
	r.actions.Store(&empty)
	return r
}

// Register adds an action. A duplicate name is a configuration warning, not
// an error: the policy decides which registration survives.
func (r *Registry) Register(action domain.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.actions.Load()
	name := action.Name()
	if _, exists := current[name]; exists {
		if r.policy == Keep {
			r.logger.Warn("duplicate action registration ignored", "action", name)
			return
		}
		r.logger.Warn("duplicate action registration replaced prior entry", "action", name)
	}

	next := make(map[string]domain.Action, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[name] = action
	r.actions.Store(&next)
}

// Lookup returns the action registered under the exact, case-sensitive name.
func (r *Registry) Lookup(name string) (domain.Action, bool) {
	action, ok := (*r.actions.Load())[name]
	return action, ok
}

// BulkReplace atomically swaps the entire contents of the registry.
// The mapping is copied; later changes to it do not leak in.
func (r *Registry) BulkReplace(actions map[string]domain.Action) {
	next := make(map[string]domain.Action, len(actions))
	for name, action := range actions {
		if action == nil {
			continue
		}
		if name != action.Name() {
			r.logger.Warn("action registered under a different name", "key", name, "action", action.Name())
		}
		next[name] = action
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions.Store(&next)
	r.logger.Debug("registry replaced", "actions", len(next))
}

// Snapshot returns a copy of the current mapping.
func (r *Registry) Snapshot() map[string]domain.Action {
	current := *r.actions.Load()
	out := make(map[string]domain.Action, len(current))
	for k, v := range current {
		out[k] = v
	}
	return out
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	current := *r.actions.Load()
	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	return len(*r.actions.Load())
}

// FromActions builds a mapping suitable for BulkReplace.
func FromActions(actions ...domain.Action) map[string]domain.Action {
	m := make(map[string]domain.Action, len(actions))
	for _, a := range actions {
		m[a.Name()] = a
	}
	return m
}
