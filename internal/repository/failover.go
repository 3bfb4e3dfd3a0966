package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/domain"
)

// FailoverLockStore wraps a primary lock store (Redis) with an in-memory
// fallback. After a primary failure all calls go to the fallback; the primary
// is retried after a minute. A failover loses locks held in the primary, so
// the database overlap check remains the final safety net.
type FailoverLockStore struct {
	primary   domain.LockStore
	fallback  domain.LockStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverLockStore(primary, fallback domain.LockStore, logger *zerolog.Logger) *FailoverLockStore {
	return &FailoverLockStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverLockStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary lock store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverLockStore) Get(ctx context.Context, key string) (string, error) {
	if !r.isDown.Load() {
		val, err := r.primary.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		val, err := r.primary.Get(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return val, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverLockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Set(ctx, key, value, ttl)
}

func (r *FailoverLockStore) Delete(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, key)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Delete(ctx, key)
}

func (r *FailoverLockStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if !r.isDown.Load() {
		count, err := r.primary.Increment(ctx, key, ttl)
		if err == nil {
			return count, nil
		}
		r.markDown(err)
	}

	return r.fallback.Increment(ctx, key, ttl)
}

func (r *FailoverLockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if !r.isDown.Load() {
		ok, err := r.primary.SetNX(ctx, key, value, ttl)
		if err == nil {
			return ok, nil
		}
		r.markDown(err)
	}

	return r.fallback.SetNX(ctx, key, value, ttl)
}
