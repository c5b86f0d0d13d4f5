// Package store defines the transactional persistence boundary shared by the
// directory, authorization, quota and audit components. Implementations live
// in the postgres and memory subpackages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

// Store opens transactions. Update runs fn in a read-write transaction and
// commits only if fn returns nil and ctx is still live; otherwise every write
// made through tx is rolled back. View runs fn against a consistent read-only
// snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

type AuditFilter struct {
	Action string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// Tx is the query surface available inside one transaction. Lookups return an
// apperr NotFound error when the row is absent; unique violations surface as
// Conflict and transport failures as StoreUnavailable.
type Tx interface {
	CreateTenant(ctx context.Context, name string, status models.TenantStatus) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	// LockTenant loads the tenant and holds a row lock until the transaction
	// ends. Quota checks serialize on it.
	LockTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]models.Tenant, error)
	UpdateTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) error

	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)

	CreateSubscription(ctx context.Context, s models.Subscription) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID uuid.UUID) ([]models.Subscription, error)
	ActiveSubscription(ctx context.Context, tenantID uuid.UUID, now time.Time) (*models.Subscription, error)
	SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status models.SubscriptionStatus) error

	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*models.User, error)
	ListUsers(ctx context.Context, tenantID uuid.UUID) ([]models.User, error)
	// CountSeats counts users of the tenant that are not disabled.
	CountSeats(ctx context.Context, tenantID uuid.UUID) (int, error)
	UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateRole(ctx context.Context, r models.Role) (*models.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error)
	// ListRoles returns the tenant's roles followed by all global roles.
	ListRoles(ctx context.Context, tenantID uuid.UUID) ([]models.Role, error)
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
	RevokeRole(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
	UserRoles(ctx context.Context, userID uuid.UUID) ([]models.Role, error)

	// CreatePermission is idempotent on name and returns the stored row.
	CreatePermission(ctx context.Context, p models.Permission) (*models.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*models.Permission, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GrantPermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error)
	RevokePermission(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error)
	PermissionsForRoles(ctx context.Context, roleIDs []uuid.UUID) (map[uuid.UUID][]models.Permission, error)

	InsertAudit(ctx context.Context, a models.AuditLog) (*models.AuditLog, error)
	ListAudit(ctx context.Context, tenantID uuid.UUID, f AuditFilter) ([]models.AuditLog, error)

	StorageUsed(ctx context.Context, tenantID uuid.UUID) (int, error)
	SetStorageUsed(ctx context.Context, tenantID uuid.UUID, gb int) error

	CreateProject(ctx context.Context, p models.Project) (*models.Project, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) ([]models.Project, error)
	CreateTask(ctx context.Context, t models.Task) (*models.Task, error)
	ListTasks(ctx context.Context, tenantID uuid.UUID) ([]models.Task, error)
}

const DefaultAuditLimit = 50
