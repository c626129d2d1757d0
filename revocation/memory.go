package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryList is a mutex-guarded in-process blacklist. Expiry is checked
// on read; PurgeExpired reclaims memory for entries never read again.
type MemoryList struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryList returns an empty in-memory blacklist.
func NewMemoryList() *MemoryList {
	return &MemoryList{entries: make(map[string]Entry)}
}

func (l *MemoryList) Add(ctx context.Context, entry Entry) error {
	if !time.Now().Before(entry.ExpiresAt) {
		return nil
	}
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.JTI] = entry
	return nil
}

func (l *MemoryList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[jti]
	if !ok {
		return false, nil
	}
	return time.Now().Before(entry.ExpiresAt), nil
}

func (l *MemoryList) PurgeExpired(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for jti, entry := range l.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(l.entries, jti)
			removed++
		}
	}
	return removed, nil
}
