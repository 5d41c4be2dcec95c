// Package quota enforces the per-(actor, day) mutation ceilings and the
// rolling return-window limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/enums"
	pkgerrors "github.com/balcaopos/balcao-backend/pkg/errors"
	"github.com/balcaopos/balcao-backend/pkg/metrics"
)

const (
	dayFormat = "2006-01-02"

	// Counter keys outlive their day by a margin and then expire on their
	// own; correctness never depends on the key being purged.
	quotaTTL = 48 * time.Hour
)

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	QuotaKey(actorID, day string) string
}

type mirrorRepo interface {
	Upsert(ctx context.Context, actorID uuid.UUID, day string, count int) error
}

// Tracker hands out daily mutation slots. Reserve atomically takes a slot and
// rejects past the role's ceiling; Release gives a slot back when the guarded
// mutation failed after reservation. The increment itself carries the ceiling
// check, so two concurrent requests by the same actor cannot both squeeze
// through the last slot.
type Tracker interface {
	Reserve(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) error
	Release(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) error
	Remaining(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) (int, error)
}

type tracker struct {
	store    counterStore
	mirror   mirrorRepo
	cfg      config.QuotaConfig
	location *time.Location
	metrics  *metrics.EngineMetrics
}

// NewTracker builds the quota tracker. The mirror repository is optional and
// only feeds reporting.
func NewTracker(store counterStore, mirror mirrorRepo, cfg config.QuotaConfig, location *time.Location, engineMetrics *metrics.EngineMetrics) (Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store required")
	}
	if location == nil {
		location = time.UTC
	}
	return &tracker{store: store, mirror: mirror, cfg: cfg, location: location, metrics: engineMetrics}, nil
}

// limitFor returns the role's daily ceiling; false means unlimited.
func (t *tracker) limitFor(role enums.UserRole) (int, bool) {
	switch role {
	case enums.UserRoleAdmin:
		return 0, false
	case enums.UserRoleManager:
		return t.cfg.ManagerDailyLimit, true
	default:
		return t.cfg.ClerkDailyLimit, true
	}
}

func (t *tracker) day(now time.Time) string {
	return now.In(t.location).Format(dayFormat)
}

func (t *tracker) Reserve(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) error {
	limit, limited := t.limitFor(role)
	if !limited {
		return nil
	}

	day := t.day(now)
	key := t.store.QuotaKey(actorID.String(), day)
	count, err := t.store.IncrWithTTL(ctx, key, quotaTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment daily quota")
	}
	if count > int64(limit) {
		// Give the slot back so the rejection has no side effect.
		_, _ = t.store.Decr(ctx, key)
		t.metrics.IncQuotaRejection(role.String())
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, fmt.Sprintf("daily limit of %d mutations reached", limit))
	}

	if t.mirror != nil {
		if err := t.mirror.Upsert(ctx, actorID, day, int(count)); err != nil {
			_, _ = t.store.Decr(ctx, key)
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirror daily quota")
		}
	}
	return nil
}

func (t *tracker) Release(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) error {
	if _, limited := t.limitFor(role); !limited {
		return nil
	}
	key := t.store.QuotaKey(actorID.String(), t.day(now))
	if _, err := t.store.Decr(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release daily quota")
	}
	return nil
}

func (t *tracker) Remaining(ctx context.Context, actorID uuid.UUID, role enums.UserRole, now time.Time) (int, error) {
	limit, limited := t.limitFor(role)
	if !limited {
		return -1, nil
	}

	key := t.store.QuotaKey(actorID.String(), t.day(now))
	raw, err := t.store.Get(ctx, key)
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read daily quota")
	}

	count := 0
	if raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse daily quota counter")
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
