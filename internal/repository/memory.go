package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryLockStore is an in-process lock store used for single-node
// deployments, tests, and as a failover target when Redis is down.
type MemoryLockStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", nil
	}
	if entry.expired(time.Now()) {
		delete(m.entries, key)
		return "", nil
	}
	return entry.value, nil
}

func (m *MemoryLockStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return nil
}

func (m *MemoryLockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Increment treats the entry's value as a decimal counter, the way Redis
// INCR does, so Get sees the same keyspace. Each increment refreshes the
// expiry: the window decays from the most recent bump.
func (m *MemoryLockStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := int64(1)
	entry, ok := m.entries[key]
	if ok && !entry.expired(time.Now()) {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not a counter: %w", key, err)
		}
		count = parsed + 1
	}
	m.entries[key] = memoryEntry{value: strconv.FormatInt(count, 10), expiresAt: expiry(ttl)}
	return count, nil
}

func (m *MemoryLockStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if ok && !entry.expired(time.Now()) {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
