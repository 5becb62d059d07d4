package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps locks in process memory. It is only correct for a single
// backend instance; use PostgresStore when running more than one.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[Key]Lock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[Key]Lock)}
}

func (s *MemoryStore) TryAcquire(_ context.Context, l Lock, now time.Time) (Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.locks[l.Key]; ok {
		if current.Live(now) {
			if !current.Holder.Same(l.Holder) {
				return current, false, nil
			}
			l.AcquiredAt = current.AcquiredAt
		}
	}
	s.locks[l.Key] = l
	return l, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key, now time.Time) (Lock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		return Lock{}, false, nil
	}
	if !l.Live(now) {
		delete(s.locks, key)
		return Lock{}, false, nil
	}
	return l, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key, holderID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		return false, nil
	}
	if l.Holder.UserID != holderID && l.Live(now) {
		return false, nil
	}
	delete(s.locks, key)
	return true, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, tenantID uuid.UUID, holder Holder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, l := range s.locks {
		if key.TenantID == tenantID && l.Holder.UserID == holder.UserID && l.Holder.SessionID == holder.SessionID {
			delete(s.locks, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, l := range s.locks {
		if !l.Live(now) {
			delete(s.locks, key)
			n++
		}
	}
	return n, nil
}
