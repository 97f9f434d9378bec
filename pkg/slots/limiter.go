// Package slots gates scarce per-tenant concurrency (simultaneous
// streaming sessions) behind plan caps.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/murmur-ai/murmur/pkg/models"
	"github.com/murmur-ai/murmur/pkg/store"
)

// ErrCapacityExceeded is returned by Acquire when the tenant already
// holds as many slots as its plan allows. Callers turn this into a
// "plan limit reached" message, never a crash.
var ErrCapacityExceeded = errors.New("slots: plan concurrency limit reached")

// Entitlements resolves a tenant's current caps.
type Entitlements interface {
	Get(ctx context.Context, tenantID string) models.Entitlement
}

// Limiter admits or rejects slot acquisitions against the tenant's
// concurrency cap. Each held slot carries a lease TTL so a crashed
// holder's slot self-reclaims; there is no separate reaper.
type Limiter struct {
	ents  Entitlements
	store store.SlotStore
	lease time.Duration
}

// New creates a Limiter. A non-positive lease defaults to one hour.
func New(ents Entitlements, st store.SlotStore, lease time.Duration) *Limiter {
	if lease <= 0 {
		lease = time.Hour
	}
	return &Limiter{ents: ents, store: st, lease: lease}
}

// NewToken returns a fresh opaque slot token.
func NewToken() string {
	return uuid.NewString()
}

func slotKey(tenantID string) string {
	return "slots:" + tenantID
}

// Acquire admits token into the tenant's slot set iff the set holds
// fewer members than the plan's concurrency cap. Admission authority
// sits with the store's atomic bounded add, so two processes cannot
// both pass the capacity check.
func (l *Limiter) Acquire(ctx context.Context, tenantID, token string) error {
	ent := l.ents.Get(ctx, tenantID)
	limit := ent.Caps.Concurrency
	if limit <= 0 {
		return ErrCapacityExceeded
	}

	ok, err := l.store.AddBounded(ctx, slotKey(tenantID), token, limit, l.lease)
	if err != nil {
		return fmt.Errorf("acquire slot for %s: %w", tenantID, err)
	}
	if !ok {
		return ErrCapacityExceeded
	}
	return nil
}

// Release returns a slot. Releasing a token that is absent (already
// released, or reclaimed by lease expiry) is a no-op, because the
// caller may race with the lease.
func (l *Limiter) Release(ctx context.Context, tenantID, token string) error {
	if err := l.store.Remove(ctx, slotKey(tenantID), token); err != nil {
		return fmt.Errorf("release slot for %s: %w", tenantID, err)
	}
	return nil
}

// Held reports how many slots the tenant currently holds.
func (l *Limiter) Held(ctx context.Context, tenantID string) (int64, error) {
	n, err := l.store.Count(ctx, slotKey(tenantID))
	if err != nil {
		return 0, fmt.Errorf("count slots for %s: %w", tenantID, err)
	}
	return n, nil
}
