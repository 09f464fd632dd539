package pvm

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/exp/maps"

	"ricklepick.dev/ricklepick/pklmem"
)

// Transform reconstructs a value from the arguments of a REDUCE.
// args is usually a Tuple.
type Transform = func(ctx context.Context, args pklmem.Value) (pklmem.Value, error)

// Registry maps fully qualified global names ("module.Name") to Transforms.
// A Registry is safe for concurrent use, and may be shared by many Machines.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]Transform)}
}

func (r *Registry) Register(module, name string, t Transform) {
	r.RegisterKey(module+"."+name, t)
}

// RegisterKey registers t under a fully qualified name.
// Registering a key twice replaces the earlier Transform.
func (r *Registry) RegisterKey(key string, t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transforms == nil {
		r.transforms = make(map[string]Transform)
	}
	r.transforms[key] = t
}

// Lookup returns the Transform registered under key.
// Lookup on a nil Registry finds nothing.
func (r *Registry) Lookup(key string) (Transform, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[key]
	return t, ok
}

// Merge copies every entry of other into r, replacing entries with the same key.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	other.mu.RLock()
	src := maps.Clone(other.transforms)
	other.mu.RUnlock()
	for k, t := range src {
		r.RegisterKey(k, t)
	}
}

// Keys returns the registered names in sorted order
func (r *Registry) Keys() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := maps.Keys(r.transforms)
	slices.Sort(keys)
	return keys
}

func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	out.Merge(r)
	return out
}
