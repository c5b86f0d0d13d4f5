// Package audit records the append-only, tenant-scoped audit trail. Records
// are written inside the caller's transaction so that a mutation and its
// audit row commit or roll back together.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/models"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

type Action string

const (
	TenantCreated       Action = "tenant.created"
	TenantStatusChanged Action = "tenant.status_changed"
	PlanSubscribed      Action = "plan.subscribed"
	UserInvited         Action = "user.invited"
	UserActivated       Action = "user.activated"
	UserDisabled        Action = "user.disabled"
	UserDeleted         Action = "user.deleted"
	RoleCreated         Action = "role.created"
	RoleGranted         Action = "role.granted"
	RoleRevoked         Action = "role.revoked"
	PermissionGranted   Action = "permission.granted"
	PermissionRevoked   Action = "permission.revoked"
	StorageReserved     Action = "storage.reserved"
	StorageReleased     Action = "storage.released"
	ProjectCreated      Action = "project.created"
	TaskCreated         Action = "task.created"
)

var vocabulary = map[Action]struct{}{
	TenantCreated: {}, TenantStatusChanged: {}, PlanSubscribed: {},
	UserInvited: {}, UserActivated: {}, UserDisabled: {}, UserDeleted: {},
	RoleCreated: {}, RoleGranted: {}, RoleRevoked: {},
	PermissionGranted: {}, PermissionRevoked: {},
	StorageReserved: {}, StorageReleased: {},
	ProjectCreated: {}, TaskCreated: {},
}

func (a Action) Valid() bool {
	_, ok := vocabulary[a]
	return ok
}

// DetailsVersion is the version stamped into every details envelope:
//
//	{"v": 1, "data": {...}}
const DetailsVersion = 1

const MaxListLimit = 500

type envelope struct {
	V    int `json:"v"`
	Data any `json:"data"`
}

type Entry struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Action   Action
	Details  any
}

type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one audit row in tx. Any failure must fail the enclosing
// transaction.
func (r *Recorder) Record(ctx context.Context, tx store.Tx, e Entry) (*models.AuditLog, error) {
	if !e.Action.Valid() {
		return nil, apperr.Invalid("audit.record", "unknown audit action %q", e.Action)
	}
	if e.TenantID == uuid.Nil || e.UserID == uuid.Nil {
		return nil, apperr.Invalid("audit.record", "audit entries need a tenant and an acting user")
	}
	data := e.Details
	if data == nil {
		data = struct{}{}
	}
	details, err := json.Marshal(envelope{V: DetailsVersion, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	return tx.InsertAudit(ctx, models.AuditLog{
		TenantID: e.TenantID,
		UserID:   e.UserID,
		Action:   string(e.Action),
		Details:  details,
	})
}

type Query struct {
	Action    Action
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// List returns the tenant's records, newest first.
func (r *Recorder) List(ctx context.Context, tx store.Tx, tenantID uuid.UUID, q Query) ([]models.AuditLog, error) {
	if q.Action != "" && !q.Action.Valid() {
		return nil, apperr.Invalid("audit.list", "unknown audit action %q", q.Action)
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return nil, apperr.Invalid("audit.list", "end_date is before start_date")
	}
	if q.Limit < 0 || q.Limit > MaxListLimit || q.Offset < 0 {
		return nil, apperr.Invalid("audit.list", "limit must be 0-%d and offset non-negative", MaxListLimit)
	}
	return tx.ListAudit(ctx, tenantID, store.AuditFilter{
		Action: string(q.Action),
		Since:  q.StartDate,
		Until:  q.EndDate,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// DecodeDetails splits a stored details document into its version and
// payload. Rows written before versioning carry no "v" and decode as
// version 0 with the whole document as payload.
func DecodeDetails(raw json.RawMessage) (int, json.RawMessage, error) {
	if len(raw) == 0 {
		return DetailsVersion, json.RawMessage(`{}`), nil
	}
	if !gjson.ValidBytes(raw) {
		return 0, nil, apperr.Invalid("audit.details", "details is not valid JSON")
	}
	v := gjson.GetBytes(raw, "v")
	if !v.Exists() {
		return 0, raw, nil
	}
	return int(v.Int()), json.RawMessage(gjson.GetBytes(raw, "data").Raw), nil
}
