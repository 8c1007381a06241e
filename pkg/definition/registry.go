package definition

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry maps set identities to loaded sets. It is owned by the process
// entry point and passed to whatever needs it.
type Registry struct {
	mu   sync.RWMutex
	sets map[uuid.UUID]*Set
}

func NewRegistry() *Registry {
	return &Registry{sets: map[uuid.UUID]*Set{}}
}

// Register publishes s. Only loaded sets can be registered, and an identity is
// registered at most once.
func (r *Registry) Register(s *Set) error {
	if !s.Loaded() {
		return ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[s.ID()]; ok {
		return fmt.Errorf("definitions %s already registered", s.ID())
	}
	r.sets[s.ID()] = s
	return nil
}

// Replace publishes s, returning the set it replaced, if any.
func (r *Registry) Replace(s *Set) (*Set, error) {
	if !s.Loaded() {
		return nil, ErrNotLoaded
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.sets[s.ID()]
	r.sets[s.ID()] = s
	return old, nil
}

func (r *Registry) Get(id uuid.UUID) (*Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sets[id]
	return s, ok
}

func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sets[id]
	delete(r.sets, id)
	return ok
}

// IDs returns the registered identities sorted by their string form.
func (r *Registry) IDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}
