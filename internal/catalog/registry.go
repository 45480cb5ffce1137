package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry holds loaded datasets by key and by id.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Dataset
	byID  map[uuid.UUID]*Dataset
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]*Dataset),
		byID:  make(map[uuid.UUID]*Dataset),
	}
}

// Register adds a dataset. It fails if the key is already taken.
func (r *Registry) Register(d *Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[d.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDatasetExists, d.Key)
	}
	r.byKey[d.Key] = d
	r.byID[d.ID] = d
	return nil
}

// Get looks a dataset up by key, falling back to its id.
func (r *Registry) Get(keyOrID string) (*Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.byKey[keyOrID]; ok {
		return d, true
	}
	id, err := uuid.Parse(keyOrID)
	if err != nil {
		return nil, false
	}
	d, ok := r.byID[id]
	return d, ok
}

// Lookup is Get returning ErrDatasetNotFound for a miss.
func (r *Registry) Lookup(keyOrID string) (*Dataset, error) {
	d, ok := r.Get(keyOrID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, keyOrID)
	}
	return d, nil
}

// Remove drops a dataset by key or id. It reports whether one was removed.
func (r *Registry) Remove(keyOrID string) bool {
	d, ok := r.Get(keyOrID)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, d.Key)
	delete(r.byID, d.ID)
	return true
}

// All returns every dataset sorted by key.
func (r *Registry) All() []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Dataset, 0, len(r.byKey))
	for _, d := range r.byKey {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Count returns the number of datasets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
