package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	scrapequeue "github.com/alex-monroe/scrapequeue"
)

// HandlerFunc is a type-erased handler that accepts raw JSON params. A
// typed Definition is converted to a HandlerFunc at registration time.
type HandlerFunc func(ctx context.Context, env *Env, params json.RawMessage) (*Result, error)

// Entry is a registered handler.
type Entry struct {
	Type         Type
	NeedsBrowser bool
	Handler      HandlerFunc
}

// Registry maps task types to handlers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[Type]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Type]Entry)}
}

// Register adds a typed definition. The handler is wrapped in a closure
// that decodes and version-checks params before calling it. Registering a
// type twice replaces the earlier handler.
//
// This is a package-level function because Go does not allow generic
// methods on non-generic receiver types.
func Register[P any](r *Registry, def *Definition[P]) {
	h := func(ctx context.Context, env *Env, raw json.RawMessage) (*Result, error) {
		p, err := decodeParams[P](def.Type, raw)
		if err != nil {
			return nil, err
		}
		if err := checkVersion(def.Type, p, def.MaxVersion); err != nil {
			return nil, err
		}
		return def.Handler(ctx, env, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Type] = Entry{Type: def.Type, NeedsBrowser: def.NeedsBrowser, Handler: h}
}

// Get returns the entry for t.
func (r *Registry) Get(t Type) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok {
		return Entry{}, fmt.Errorf("%w: no handler for %q", scrapequeue.ErrUnknownTaskType, t)
	}
	return e, nil
}

// NeedsBrowser reports whether t was registered as browser dependent.
func (r *Registry) NeedsBrowser(t Type) bool {
	e, err := r.Get(t)
	return err == nil && e.NeedsBrowser
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate returns an error naming every task type without a handler.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, t := range Types {
		if _, ok := r.entries[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unhandled task types %s", scrapequeue.ErrUnknownTaskType, strings.Join(missing, ", "))
	}
	return nil
}
