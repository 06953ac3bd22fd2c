package governance

import (
	"context"
	"sync"
)

// Registry is the identity and ownership oracle. The engine only reads from it.
type Registry interface {
	ResolveRole(ctx context.Context, identity string) (Role, error)
	ResolveParcels(ctx context.Context, identity string) ([]Parcel, error)
}

// StoreRegistry answers registry queries from an in-process role table and a
// ParcelStore.
type StoreRegistry struct {
	parcels ParcelStore

	mu    sync.RWMutex
	roles map[string]Role
}

// NewStoreRegistry returns a registry backed by parcels.
func NewStoreRegistry(parcels ParcelStore) *StoreRegistry {
	return &StoreRegistry{parcels: parcels, roles: make(map[string]Role)}
}

// SetRole records identity's role.
func (r *StoreRegistry) SetRole(identity string, role Role) {
	r.mu.Lock()
	r.roles[identity] = role
	r.mu.Unlock()
}

func (r *StoreRegistry) ResolveRole(_ context.Context, identity string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.roles[identity]; ok {
		return role, nil
	}
	return RoleUnknown, nil
}

func (r *StoreRegistry) ResolveParcels(ctx context.Context, identity string) ([]Parcel, error) {
	return r.parcels.OwnedBy(ctx, identity)
}
