package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/domain"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
)

const slotLockKeyFormat = "20060102150405" // second precision

// SlotLockCoordinator serializes reservation attempts for one court slot
// through the shared lock store. The lock is advisory with a TTL, so a
// crashed holder frees the slot automatically; the database overlap check
// stays the hard guarantee underneath it.
type SlotLockCoordinator struct {
	cache  domain.LockStore
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewSlotLockCoordinator(cache domain.LockStore, logger *zerolog.Logger) *SlotLockCoordinator {
	return &SlotLockCoordinator{
		cache:  cache,
		ttl:    models.SlotLockTTL,
		logger: logger,
	}
}

func slotLockKey(courtID int64, slotStart time.Time) string {
	return fmt.Sprintf("slot_lock:%d:%s", courtID, slotStart.UTC().Format(slotLockKeyFormat))
}

// TryAcquire attempts to take the slot mutex. It never blocks: a held lock
// means another reservation is in flight and the caller should give up.
func (c *SlotLockCoordinator) TryAcquire(ctx context.Context, courtID int64, slotStart time.Time) (bool, error) {
	key := slotLockKey(courtID, slotStart)
	acquired, err := c.cache.SetNX(ctx, key, "1", c.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire slot lock: %w", err)
	}

	if acquired {
		metrics.IncSlotLock("acquired")
	} else {
		metrics.IncSlotLock("contended")
	}
	return acquired, nil
}

// Release drops the slot mutex early. Failures are logged, not returned:
// the TTL reclaims the lock anyway.
func (c *SlotLockCoordinator) Release(ctx context.Context, courtID int64, slotStart time.Time) {
	key := slotLockKey(courtID, slotStart)
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("slot lock release failed, relying on TTL")
	}
}
