// Package memory provides a mutex-guarded in-memory Store. It backs
// tests and single-process deployments; everything lives in process
// memory and is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hexkit/authkit/store"
)

// Store is an in-memory store.Store implementation.
type Store struct {
	mu     sync.RWMutex
	byJTI  map[string]*store.Record
	byHash map[string]string // token hash -> jti
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		byJTI:  make(map[string]*store.Record),
		byHash: make(map[string]string),
	}
}

func (s *Store) Create(ctx context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byJTI[rec.JTI]; exists {
		return store.ErrDuplicateJTI
	}

	clone := *rec
	s.byJTI[rec.JTI] = &clone
	s.byHash[rec.TokenHash] = rec.JTI
	return nil
}

func (s *Store) FindByJTI(ctx context.Context, jti string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byJTI[jti]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *Store) FindByTokenHash(ctx context.Context, hash string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jti, ok := s.byHash[hash]
	if !ok {
		return nil, nil
	}
	rec := s.byJTI[jti]
	clone := *rec
	return &clone, nil
}

func (s *Store) FindByUserID(ctx context.Context, userID int64) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Record
	for _, rec := range s.byJTI {
		if rec.UserID == userID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) FindByUserAndDevice(ctx context.Context, userID int64, deviceID string) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Record
	for _, rec := range s.byJTI {
		if rec.UserID == userID && rec.DeviceID == deviceID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) TouchLastUsed(ctx context.Context, jti string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byJTI[jti]; ok {
		rec.LastUsedAt = at
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, jti, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byJTI[jti]
	if !ok || rec.Status != store.StatusActive {
		return false, nil
	}
	revoke(rec, reason)
	return true, nil
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID int64, excludeJTI, reason string) ([]*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []*store.Record
	for _, rec := range s.byJTI {
		if rec.UserID != userID || rec.Status != store.StatusActive || rec.JTI == excludeJTI {
			continue
		}
		revoke(rec, reason)
		clone := *rec
		revoked = append(revoked, &clone)
	}
	return revoked, nil
}

func (s *Store) RevokeAllForDevice(ctx context.Context, userID int64, deviceID, reason string) ([]*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []*store.Record
	for _, rec := range s.byJTI {
		if rec.UserID != userID || rec.DeviceID != deviceID || rec.Status != store.StatusActive {
			continue
		}
		revoke(rec, reason)
		clone := *rec
		revoked = append(revoked, &clone)
	}
	return revoked, nil
}

func (s *Store) Family(ctx context.Context, rootJTI string) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Record
	for _, rec := range s.byJTI {
		if rec.RootJTI == rootJTI {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out, nil
}

func (s *Store) RevokeFamily(ctx context.Context, rootJTI, reason string) ([]*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []*store.Record
	for _, rec := range s.byJTI {
		if rec.RootJTI != rootJTI {
			continue
		}
		if rec.Status != store.StatusActive {
			// Stamp the family reason over earlier ones so an in-flight
			// rotation can tell its lineage was condemned.
			rec.Reason = reason
			continue
		}
		revoke(rec, reason)
		clone := *rec
		revoked = append(revoked, &clone)
	}
	return revoked, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jti, rec := range s.byJTI {
		if rec.Expired(now) {
			delete(s.byJTI, jti)
			delete(s.byHash, rec.TokenHash)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jti, rec := range s.byJTI {
		if rec.Status == store.StatusRevoked && rec.RevokedAt.Before(cutoff) {
			delete(s.byJTI, jti)
			delete(s.byHash, rec.TokenHash)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Stats(ctx context.Context, userID int64) (*store.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := &store.UserStats{}
	devices := make(map[string]struct{})
	for _, rec := range s.byJTI {
		if rec.UserID != userID {
			continue
		}
		stats.Total++
		switch {
		case rec.Status == store.StatusRevoked:
			stats.Revoked++
		case rec.Expired(now):
			stats.Expired++
		default:
			stats.Active++
			if rec.DeviceID != "" {
				devices[rec.DeviceID] = struct{}{}
			}
		}
	}
	stats.Devices = len(devices)
	return stats, nil
}

func (s *Store) SystemStats(ctx context.Context) (*store.SystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := &store.SystemStats{}
	users := make(map[int64]struct{})
	for _, rec := range s.byJTI {
		stats.Total++
		users[rec.UserID] = struct{}{}
		switch {
		case rec.Status == store.StatusRevoked:
			stats.Revoked++
		case rec.Expired(now):
			stats.Expired++
		default:
			stats.Active++
		}
	}
	stats.Users = len(users)
	return stats, nil
}

func revoke(rec *store.Record, reason string) {
	rec.Status = store.StatusRevoked
	rec.Reason = reason
	rec.RevokedAt = time.Now()
}

func sortNewestFirst(recs []*store.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].IssuedAt.After(recs[j].IssuedAt)
	})
}
