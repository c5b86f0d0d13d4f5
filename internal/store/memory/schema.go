package memory

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	hcmemdb "github.com/hashicorp/go-memdb"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

const (
	tableTenants         = "tenants"
	tablePlans           = "plans"
	tableSubscriptions   = "subscriptions"
	tableUsers           = "users"
	tableRoles           = "roles"
	tablePermissions     = "permissions"
	tableUserRoles       = "user_roles"
	tableRolePermissions = "role_permissions"
	tableAuditLogs       = "audit_logs"
	tableStorage         = "storage_reservations"
	tableProjects        = "projects"
	tableTasks           = "tasks"

	indexID          = "id"
	indexTenant      = "tenant_id"
	indexTenantEmail = "tenant_email"
	indexName        = "name"
	indexUser        = "user_id"
	indexRole        = "role_id"
	indexPermission  = "permission_id"
	indexProject     = "project_id"
	indexCreatedBy   = "created_by_user_id"
	indexAssignee    = "assignee_user_id"
)

// auditRow carries an insertion sequence so listings are ordered newest first
// even when timestamps collide.
type auditRow struct {
	models.AuditLog
	Seq uint64
}

// uuidFieldIndex indexes a uuid.UUID or *uuid.UUID struct field. A nil pointer
// is reported as missing.
type uuidFieldIndex struct {
	Field string
}

func (u *uuidFieldIndex) FromObject(obj interface{}) (bool, []byte, error) {
	v := reflect.Indirect(reflect.ValueOf(obj))
	fv := v.FieldByName(u.Field)
	if !fv.IsValid() {
		return false, nil, fmt.Errorf("field '%s' for %#v is invalid", u.Field, obj)
	}
	switch id := fv.Interface().(type) {
	case uuid.UUID:
		b := id
		return true, b[:], nil
	case *uuid.UUID:
		if id == nil {
			return false, nil, nil
		}
		b := *id
		return true, b[:], nil
	}
	return false, nil, fmt.Errorf("field '%s' is %s, not a uuid", u.Field, fv.Type())
}

func (u *uuidFieldIndex) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	switch id := args[0].(type) {
	case uuid.UUID:
		b := id
		return b[:], nil
	case *uuid.UUID:
		if id == nil {
			return nil, fmt.Errorf("nil uuid argument")
		}
		b := *id
		return b[:], nil
	}
	return nil, fmt.Errorf("argument must be a uuid: %#v", args[0])
}

func uuidIndex(name, field string, unique, allowMissing bool) *hcmemdb.IndexSchema {
	return &hcmemdb.IndexSchema{
		Name:         name,
		Unique:       unique,
		AllowMissing: allowMissing,
		Indexer:      &uuidFieldIndex{Field: field},
	}
}

func pairIndex(name, left, right string) *hcmemdb.IndexSchema {
	return &hcmemdb.IndexSchema{
		Name:   name,
		Unique: true,
		Indexer: &hcmemdb.CompoundIndex{
			Indexes: []hcmemdb.Indexer{
				&uuidFieldIndex{Field: left},
				&uuidFieldIndex{Field: right},
			},
		},
	}
}

func table(name string, indexes ...*hcmemdb.IndexSchema) *hcmemdb.TableSchema {
	t := &hcmemdb.TableSchema{Name: name, Indexes: map[string]*hcmemdb.IndexSchema{}}
	for _, idx := range indexes {
		t.Indexes[idx.Name] = idx
	}
	return t
}

func schema() *hcmemdb.DBSchema {
	tables := []*hcmemdb.TableSchema{
		table(tableTenants, uuidIndex(indexID, "ID", true, false)),
		table(tablePlans, uuidIndex(indexID, "ID", true, false)),
		table(tableSubscriptions,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, false),
		),
		table(tableUsers,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, false),
			&hcmemdb.IndexSchema{
				Name:   indexTenantEmail,
				Unique: true,
				Indexer: &hcmemdb.CompoundIndex{
					Indexes: []hcmemdb.Indexer{
						&uuidFieldIndex{Field: "TenantID"},
						&hcmemdb.StringFieldIndex{Field: "Email"},
					},
				},
			},
		),
		table(tableRoles,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, true),
		),
		table(tablePermissions,
			uuidIndex(indexID, "ID", true, false),
			&hcmemdb.IndexSchema{Name: indexName, Unique: true, Indexer: &hcmemdb.StringFieldIndex{Field: "Name"}},
		),
		table(tableUserRoles,
			pairIndex(indexID, "UserID", "RoleID"),
			uuidIndex(indexUser, "UserID", false, false),
			uuidIndex(indexRole, "RoleID", false, false),
		),
		table(tableRolePermissions,
			pairIndex(indexID, "RoleID", "PermissionID"),
			uuidIndex(indexRole, "RoleID", false, false),
			uuidIndex(indexPermission, "PermissionID", false, false),
		),
		table(tableAuditLogs,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, false),
			uuidIndex(indexUser, "UserID", false, false),
		),
		table(tableStorage, uuidIndex(indexID, "TenantID", true, false)),
		table(tableProjects,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, false),
			uuidIndex(indexCreatedBy, "CreatedByUserID", false, false),
		),
		table(tableTasks,
			uuidIndex(indexID, "ID", true, false),
			uuidIndex(indexTenant, "TenantID", false, false),
			uuidIndex(indexProject, "ProjectID", false, false),
			uuidIndex(indexAssignee, "AssigneeUserID", false, true),
		),
	}

	s := &hcmemdb.DBSchema{Tables: map[string]*hcmemdb.TableSchema{}}
	for _, t := range tables {
		s.Tables[t.Name] = t
	}
	return s
}
