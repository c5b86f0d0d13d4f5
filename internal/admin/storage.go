package admin

import (
	"context"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/audit"
	"github.com/nikhilbhutani/tenantguard/internal/quota"
	"github.com/nikhilbhutani/tenantguard/internal/rbac"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

// ReserveStorage moves the tenant's storage counter by gb. Positive values
// reserve against storage_limit_gb, negative values release.
func (s *Service) ReserveStorage(ctx context.Context, actor Actor, gb int) (quota.Reservation, error) {
	var r quota.Reservation
	err := s.run(ctx, "reserve storage", actor, rbac.PermManageStorage, func(o *op) error {
		if gb == 0 {
			return apperr.Invalid("admin.storage", "gb must be non-zero")
		}
		var err error
		if r, err = s.quota.CheckAndReserve(ctx, o.tx, actor.TenantID, quota.StorageGB, gb); err != nil {
			return err
		}
		action := audit.StorageReserved
		if gb < 0 {
			action = audit.StorageReleased
		}
		return o.record(action, map[string]any{"gb": gb, "before": r.Current, "limit": r.Limit})
	})
	return r, err
}

// CheckQuota answers whether delta more units of kind would fit, without
// reserving anything. It runs in a write transaction because the check takes
// the tenant lock.
func (s *Service) CheckQuota(ctx context.Context, actor Actor, kind quota.Kind, delta int) (quota.Reservation, error) {
	var r quota.Reservation
	err := s.run(ctx, "check quota", actor, "", func(o *op) error {
		if err := actor.valid(); err != nil {
			return err
		}
		var err error
		r, err = s.quota.Check(ctx, o.tx, actor.TenantID, kind, delta)
		return err
	})
	return r, err
}

func (s *Service) Usage(ctx context.Context, actor Actor) (quota.Usage, error) {
	var u quota.Usage
	err := s.view(ctx, "quota usage", actor, "", func(tx store.Tx) error {
		if err := actor.valid(); err != nil {
			return err
		}
		var err error
		u, err = s.quota.Usage(ctx, tx, actor.TenantID)
		return err
	})
	return u, err
}
