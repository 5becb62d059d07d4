package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ovenly/api/internal/enum"
	"github.com/ovenly/api/internal/events"
	"github.com/ovenly/api/internal/lock"
	"go.uber.org/zap"
)

// LockManager is the lock API exposed over HTTP.
// Satisfied by *lock.Manager.
type LockManager interface {
	Acquire(ctx context.Context, key lock.Key, holder lock.Holder) (lock.Lock, bool, error)
	Release(ctx context.Context, key lock.Key, holder lock.Holder) error
	Lookup(ctx context.Context, key lock.Key) (*lock.Lock, error)
	Cleanup(ctx context.Context, tenantID uuid.UUID, holder lock.Holder) (int, error)
}

// LockEvent is the payload of lock.* events.
type LockEvent struct {
	OrderID    uuid.UUID  `json:"order_id,omitempty"`
	Kind       lock.Kind  `json:"kind,omitempty"`
	HolderID   uuid.UUID  `json:"holder_id"`
	HolderName string     `json:"holder_name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Count      int        `json:"count,omitempty"`
}

// LockService tells other clients of the tenant when locks change hands.
type LockService struct {
	locks  LockManager
	events events.Publisher
	logger *zap.Logger
}

func NewLockService(locks LockManager, pub events.Publisher, logger *zap.Logger) *LockService {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockService{locks: locks, events: pub, logger: logger}
}

func (s *LockService) key(tenantID uuid.UUID, kind lock.Kind, orderID uuid.UUID) lock.Key {
	return lock.Key{TenantID: tenantID, Kind: kind, OrderID: orderID}
}

// Acquire grants or refreshes the actor's lock. When busy, ok is false and the
// current lock is returned.
func (s *LockService) Acquire(ctx context.Context, actor Actor, kind lock.Kind, orderID uuid.UUID) (lock.Lock, bool, error) {
	l, ok, err := s.locks.Acquire(ctx, s.key(actor.TenantID, kind, orderID), actor.Holder())
	if err != nil || !ok {
		return l, ok, err
	}
	expires := l.ExpiresAt
	s.publish(ctx, actor.TenantID, enum.EventLockAcquired, LockEvent{
		OrderID:    orderID,
		Kind:       kind,
		HolderID:   actor.UserID,
		HolderName: actor.Name,
		ExpiresAt:  &expires,
	})
	return l, true, nil
}

func (s *LockService) Release(ctx context.Context, actor Actor, kind lock.Kind, orderID uuid.UUID) error {
	if err := s.locks.Release(ctx, s.key(actor.TenantID, kind, orderID), actor.Holder()); err != nil {
		return err
	}
	s.publish(ctx, actor.TenantID, enum.EventLockReleased, LockEvent{
		OrderID:    orderID,
		Kind:       kind,
		HolderID:   actor.UserID,
		HolderName: actor.Name,
	})
	return nil
}

func (s *LockService) Lookup(ctx context.Context, tenantID uuid.UUID, kind lock.Kind, orderID uuid.UUID) (*lock.Lock, error) {
	return s.locks.Lookup(ctx, s.key(tenantID, kind, orderID))
}

// Cleanup releases every lock held by the actor's session.
func (s *LockService) Cleanup(ctx context.Context, actor Actor) (int, error) {
	n, err := s.locks.Cleanup(ctx, actor.TenantID, actor.Holder())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, actor.TenantID, enum.EventLockReleased, LockEvent{
			HolderID:   actor.UserID,
			HolderName: actor.Name,
			Count:      n,
		})
	}
	return n, nil
}

func (s *LockService) publish(ctx context.Context, tenantID uuid.UUID, eventType string, payload LockEvent) {
	if err := s.events.Publish(ctx, events.New(eventType, tenantID, payload)); err != nil {
		s.logger.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}
