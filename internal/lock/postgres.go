package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ovenly/api/internal/database"
)

// Queries defines the database methods needed by PostgresStore.
// Satisfied by *database.Queries.
type Queries interface {
	AcquireOrderLock(ctx context.Context, arg database.AcquireOrderLockParams) (database.OrderLock, error)
	GetLiveOrderLock(ctx context.Context, arg database.GetLiveOrderLockParams) (database.OrderLock, error)
	DeleteOrderLock(ctx context.Context, arg database.DeleteOrderLockParams) (int64, error)
	DeleteOrderLocksBySession(ctx context.Context, arg database.DeleteOrderLocksBySessionParams) (int64, error)
	DeleteExpiredOrderLocks(ctx context.Context, now time.Time) (int64, error)
}

// PostgresStore shares locks between backend instances through the
// order_locks table. Acquisition is a single conditional upsert.
type PostgresStore struct {
	q Queries
}

func NewPostgresStore(q Queries) *PostgresStore {
	return &PostgresStore{q: q}
}

// acquireAttempts bounds the upsert/read cycle. The competing lock can be
// released or purged between the two statements; one retry covers that.
const acquireAttempts = 2

func (s *PostgresStore) TryAcquire(ctx context.Context, l Lock, now time.Time) (Lock, bool, error) {
	params := database.AcquireOrderLockParams{
		TenantID:   l.Key.TenantID,
		OrderKind:  string(l.Key.Kind),
		OrderID:    l.Key.OrderID,
		HolderID:   l.Holder.UserID,
		HolderName: l.Holder.Name,
		SessionID:  l.Holder.SessionID,
		AcquiredAt: now,
		ExpiresAt:  l.ExpiresAt,
	}

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		row, err := s.q.AcquireOrderLock(ctx, params)
		if err == nil {
			return fromRow(row), true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Lock{}, false, err
		}

		current, ok, err := s.Get(ctx, l.Key, now)
		if err != nil {
			return Lock{}, false, err
		}
		if ok {
			return current, false, nil
		}
	}
	return Lock{}, false, ErrAcquireContended
}

func (s *PostgresStore) Get(ctx context.Context, key Key, now time.Time) (Lock, bool, error) {
	row, err := s.q.GetLiveOrderLock(ctx, database.GetLiveOrderLockParams{
		TenantID:  key.TenantID,
		OrderKind: string(key.Kind),
		OrderID:   key.OrderID,
		Now:       now,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lock{}, false, nil
		}
		return Lock{}, false, err
	}
	return fromRow(row), true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key Key, holderID uuid.UUID, now time.Time) (bool, error) {
	n, err := s.q.DeleteOrderLock(ctx, database.DeleteOrderLockParams{
		TenantID:  key.TenantID,
		OrderKind: string(key.Kind),
		OrderID:   key.OrderID,
		HolderID:  holderID,
		Now:       now,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, tenantID uuid.UUID, holder Holder) (int, error) {
	n, err := s.q.DeleteOrderLocksBySession(ctx, database.DeleteOrderLocksBySessionParams{
		TenantID:  tenantID,
		HolderID:  holder.UserID,
		SessionID: holder.SessionID,
	})
	return int(n), err
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.q.DeleteExpiredOrderLocks(ctx, now)
	return int(n), err
}

func fromRow(r database.OrderLock) Lock {
	return Lock{
		Key: Key{
			TenantID: r.TenantID,
			Kind:     Kind(r.OrderKind),
			OrderID:  r.OrderID,
		},
		Holder: Holder{
			UserID:    r.HolderID,
			Name:      r.HolderName,
			SessionID: r.SessionID,
		},
		AcquiredAt: r.AcquiredAt,
		ExpiresAt:  r.ExpiresAt,
	}
}
