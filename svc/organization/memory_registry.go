package organization

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry keeps organizations in process memory.
type MemoryRegistry struct {
	mu    sync.RWMutex
	byID  map[string]*Organization
	byKey map[string]string // partition key -> id
	opts  registryOptions
}

func NewMemoryRegistry(opts ...RegistryOption) *MemoryRegistry {
	return &MemoryRegistry{
		byID:  make(map[string]*Organization),
		byKey: make(map[string]string),
		opts:  newRegistryOptions(opts),
	}
}

func (r *MemoryRegistry) Create(_ context.Context, org *Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[org.PartitionKey]; ok {
		return errConflict(fmt.Sprintf("organization %q already exists", org.Name))
	}
	if _, ok := r.byID[org.ID]; ok {
		return errConflict(fmt.Sprintf("organization id %q already exists", org.ID))
	}

	stamp(org, r.opts.timestamp())
	r.byID[org.ID] = org.Clone()
	r.byKey[org.PartitionKey] = org.ID
	return nil
}

func (r *MemoryRegistry) FindByName(_ context.Context, name string) (*Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[PartitionKey(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRegistry) FindByID(_ context.Context, id string) (*Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return org.Clone(), nil
}

func (r *MemoryRegistry) Update(_ context.Context, id string, patch Patch) (*Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	next, err := patch.Apply(current, r.opts.timestamp())
	if err != nil {
		return nil, err
	}
	if next.PartitionKey != current.PartitionKey {
		if owner, taken := r.byKey[next.PartitionKey]; taken && owner != id {
			return nil, errConflict(fmt.Sprintf("organization %q already exists", next.Name))
		}
		delete(r.byKey, current.PartitionKey)
		r.byKey[next.PartitionKey] = id
	}

	r.byID[id] = next
	return next.Clone(), nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byKey, org.PartitionKey)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRegistry) CountByMode(_ context.Context) (map[DBMode]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[DBMode]int64{ModeShared: 0, ModeDedicated: 0}
	for _, org := range r.byID {
		counts[org.DBMode]++
	}
	return counts, nil
}
