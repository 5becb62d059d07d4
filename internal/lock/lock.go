// Package lock implements cooperative, tenant-scoped edit locks for orders.
//
// A lock is advisory: it does not block database writes by itself. Services call
// Manager.Require before mutating an order so that two staff members cannot
// silently overwrite each other's edits. Locks expire after a fixed TTL measured
// from the last acquire by the same holder; expiry is evaluated lazily.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL is used when NewManager receives a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Kind separates internal and external (customer) orders sharing the lock space.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInternal, KindExternal:
		return true
	}
	return false
}

var (
	ErrOrderLocked   = errors.New("order is locked by another user")
	ErrNotLockHolder = errors.New("lock is held by another user")
	ErrInvalidKind   = errors.New("invalid order kind")

	ErrAcquireContended = errors.New("lock changed hands during acquire, try again")
)

// Key identifies a lockable order within a tenant.
type Key struct {
	TenantID uuid.UUID
	Kind     Kind
	OrderID  uuid.UUID
}

// Holder is the identity owning a lock. Two holders are the same when their
// user ids match; SessionID only scopes Cleanup.
type Holder struct {
	UserID    uuid.UUID
	Name      string
	SessionID string
}

func (h Holder) Same(other Holder) bool {
	return h.UserID == other.UserID
}

type Lock struct {
	Key        Key
	Holder     Holder
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Live reports whether the lock is still in force at now.
func (l Lock) Live(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// LockedError is returned when another holder owns a live lock.
type LockedError struct {
	Lock Lock
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("order is locked by %s until %s", e.Lock.Holder.Name, e.Lock.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrOrderLocked
}

// Store persists locks. Implementations must make TryAcquire atomic: the lock is
// written only if no live lock exists for the key or the live lock has the same
// holder. When refused, the current live lock is returned with ok=false.
type Store interface {
	TryAcquire(ctx context.Context, l Lock, now time.Time) (Lock, bool, error)
	Get(ctx context.Context, key Key, now time.Time) (Lock, bool, error)
	// Delete removes the lock if it is held by holderID or already expired.
	Delete(ctx context.Context, key Key, holderID uuid.UUID, now time.Time) (bool, error)
	DeleteSession(ctx context.Context, tenantID uuid.UUID, holder Holder) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager grants, refreshes and releases order locks.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewManager(store Store, ttl time.Duration, logger *zap.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, ttl: ttl, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Acquire grants the lock to holder, or refreshes its expiry when holder already
// owns it. A busy lock is not an error: ok is false and the returned Lock is the
// one currently in force.
func (m *Manager) Acquire(ctx context.Context, key Key, holder Holder) (Lock, bool, error) {
	if !key.Kind.Valid() {
		return Lock{}, false, ErrInvalidKind
	}
	now := m.now()
	l, ok, err := m.store.TryAcquire(ctx, Lock{
		Key:        key,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}, now)
	if err != nil {
		return Lock{}, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		m.logger.Debug("lock busy",
			zap.String("order_id", key.OrderID.String()),
			zap.String("kind", string(key.Kind)),
			zap.String("holder", l.Holder.Name))
	}
	return l, ok, nil
}

// Require acquires or refreshes the lock for holder and fails with a
// *LockedError when someone else holds it.
func (m *Manager) Require(ctx context.Context, key Key, holder Holder) (Lock, error) {
	l, ok, err := m.Acquire(ctx, key, holder)
	if err != nil {
		return Lock{}, err
	}
	if !ok {
		return Lock{}, &LockedError{Lock: l}
	}
	return l, nil
}

// Release drops the lock held by holder. Releasing a lock that is absent or
// expired is a no-op; releasing someone else's live lock returns ErrNotLockHolder.
func (m *Manager) Release(ctx context.Context, key Key, holder Holder) error {
	if !key.Kind.Valid() {
		return ErrInvalidKind
	}
	now := m.now()
	deleted, err := m.store.Delete(ctx, key, holder.UserID, now)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if deleted {
		return nil
	}
	current, ok, err := m.store.Get(ctx, key, now)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if ok && !current.Holder.Same(holder) {
		return ErrNotLockHolder
	}
	return nil
}

// Lookup returns the live lock for key, or nil.
func (m *Manager) Lookup(ctx context.Context, key Key) (*Lock, error) {
	l, ok, err := m.store.Get(ctx, key, m.now())
	if err != nil {
		return nil, fmt.Errorf("lookup lock: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *Manager) IsLockedBy(ctx context.Context, key Key, holder Holder) (bool, error) {
	l, err := m.Lookup(ctx, key)
	if err != nil {
		return false, err
	}
	return l != nil && l.Holder.Same(holder), nil
}

// Cleanup drops every lock held by holder's session in the tenant.
func (m *Manager) Cleanup(ctx context.Context, tenantID uuid.UUID, holder Holder) (int, error) {
	n, err := m.store.DeleteSession(ctx, tenantID, holder)
	if err != nil {
		return 0, fmt.Errorf("cleanup locks: %w", err)
	}
	if n > 0 {
		m.logger.Info("session locks released",
			zap.String("user_id", holder.UserID.String()),
			zap.Int("count", n))
	}
	return n, nil
}

// PurgeExpired removes expired rows. Expired locks are already invisible to
// every other method, so this only reclaims storage.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired locks: %w", err)
	}
	return n, nil
}
