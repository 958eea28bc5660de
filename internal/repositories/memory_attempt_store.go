package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/deviceguard/internal/models"
)

// MemoryAttemptStore keeps attempt records in process memory. It backs the
// session policy and holds counts while the persistent store is unreachable.
type MemoryAttemptStore struct {
	mu      sync.RWMutex
	records map[string]*models.DeviceAttempt
	nextID  int64
}

// NewMemoryAttemptStore creates an empty store
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{records: make(map[string]*models.DeviceAttempt)}
}

// Get returns a copy of the record for deviceID, or models.ErrNotFound
func (s *MemoryAttemptStore) Get(ctx context.Context, deviceID string) (*models.DeviceAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return rec.Clone(), nil
}

// Upsert stores a copy of rec, keeping the id and creation time of an existing entry
func (s *MemoryAttemptStore) Upsert(ctx context.Context, rec *models.DeviceAttempt) (*models.DeviceAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := rec.Clone()
	if existing, ok := s.records[rec.DeviceID]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		saved.ID = s.nextID
		saved.CreatedAt = rec.LastAttempt
	}
	s.records[rec.DeviceID] = saved
	return saved.Clone(), nil
}

// Delete removes the record for deviceID; missing records are not an error
func (s *MemoryAttemptStore) Delete(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, deviceID)
}

// Len returns the number of records held
func (s *MemoryAttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Prune drops records that are not blocked at now and whose last attempt is
// older than now-retention. It returns the number of records removed.
func (s *MemoryAttemptStore) Prune(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.IsBlocked(now) {
			continue
		}
		if rec.BlockExpired(now) || rec.LastAttempt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
