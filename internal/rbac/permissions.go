package rbac

import (
	"maps"
	"slices"
)

type Permission string

const (
	PermManageUsers    Permission = "manage_users"
	PermManageRoles    Permission = "manage_roles"
	PermManageBilling  Permission = "manage_billing"
	PermManageStorage  Permission = "manage_storage"
	PermManageProjects Permission = "manage_projects"
	PermViewAudit      Permission = "view_audit"
)

// DefaultCatalog is seeded once at deployment. Names are immutable once
// seeded; descriptions are informational.
var DefaultCatalog = map[Permission]string{
	PermManageUsers:    "Invite, activate, disable and delete users",
	PermManageRoles:    "Create roles and change role and permission assignments",
	PermManageBilling:  "Change the tenant's subscription plan",
	PermManageStorage:  "Reserve and release tenant storage",
	PermManageProjects: "Create projects and tasks",
	PermViewAudit:      "Read the tenant audit trail",
}

// Set is a deduplicated set of permission names.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Add(name string) { s[name] = struct{}{} }

// Names returns the set's members in sorted order.
func (s Set) Names() []string {
	return slices.Sorted(maps.Keys(s))
}
