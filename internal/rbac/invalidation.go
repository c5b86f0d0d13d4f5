package rbac

import "github.com/google/uuid"

// Invalidation collects the cache scopes touched by edge mutations inside one
// transaction. It is applied with Engine.Apply after the transaction commits.
type Invalidation struct {
	tenants map[uuid.UUID]struct{}
	global  bool
}

func (i *Invalidation) Tenant(id uuid.UUID) {
	if i.tenants == nil {
		i.tenants = make(map[uuid.UUID]struct{})
	}
	i.tenants[id] = struct{}{}
}

// Global marks every tenant's cached permissions stale, used when a global
// role's permissions change.
func (i *Invalidation) Global() { i.global = true }

// Role marks the scope owning a role: its tenant, or everything for a global
// role.
func (i *Invalidation) Role(tenantID *uuid.UUID) {
	if tenantID == nil {
		i.Global()
		return
	}
	i.Tenant(*tenantID)
}

func (i *Invalidation) Empty() bool {
	return !i.global && len(i.tenants) == 0
}
