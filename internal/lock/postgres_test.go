package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ovenly/api/internal/database"
)

type mockQueries struct {
	acquireFn       func(ctx context.Context, arg database.AcquireOrderLockParams) (database.OrderLock, error)
	getFn           func(ctx context.Context, arg database.GetLiveOrderLockParams) (database.OrderLock, error)
	deleteFn        func(ctx context.Context, arg database.DeleteOrderLockParams) (int64, error)
	deleteSessionFn func(ctx context.Context, arg database.DeleteOrderLocksBySessionParams) (int64, error)
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockQueries) AcquireOrderLock(ctx context.Context, arg database.AcquireOrderLockParams) (database.OrderLock, error) {
	return m.acquireFn(ctx, arg)
}
func (m *mockQueries) GetLiveOrderLock(ctx context.Context, arg database.GetLiveOrderLockParams) (database.OrderLock, error) {
	return m.getFn(ctx, arg)
}
func (m *mockQueries) DeleteOrderLock(ctx context.Context, arg database.DeleteOrderLockParams) (int64, error) {
	return m.deleteFn(ctx, arg)
}
func (m *mockQueries) DeleteOrderLocksBySession(ctx context.Context, arg database.DeleteOrderLocksBySessionParams) (int64, error) {
	return m.deleteSessionFn(ctx, arg)
}
func (m *mockQueries) DeleteExpiredOrderLocks(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteExpiredFn(ctx, now)
}

func aliceRow(now time.Time) database.OrderLock {
	return database.OrderLock{
		TenantID:   tenantA,
		OrderKind:  string(KindInternal),
		OrderID:    order1,
		HolderID:   alice.UserID,
		HolderName: alice.Name,
		SessionID:  alice.SessionID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(5 * time.Minute),
	}
}

func TestPostgresStore_TryAcquire_Granted(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := &mockQueries{
		acquireFn: func(_ context.Context, arg database.AcquireOrderLockParams) (database.OrderLock, error) {
			if arg.OrderKind != "internal" {
				t.Errorf("order kind = %q, want internal", arg.OrderKind)
			}
			if !arg.AcquiredAt.Equal(now) {
				t.Errorf("acquired at = %s, want %s", arg.AcquiredAt, now)
			}
			return aliceRow(now), nil
		},
	}
	s := NewPostgresStore(q)

	l, ok, err := s.TryAcquire(context.Background(), Lock{
		Key:       keyFor(tenantA),
		Holder:    alice,
		ExpiresAt: now.Add(5 * time.Minute),
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected lock to be granted")
	}
	if l.Holder.Name != "Alice" || l.Key.Kind != KindInternal {
		t.Errorf("unexpected lock %+v", l)
	}
}

func TestPostgresStore_TryAcquire_BusyReturnsHolder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := &mockQueries{
		acquireFn: func(context.Context, database.AcquireOrderLockParams) (database.OrderLock, error) {
			return database.OrderLock{}, pgx.ErrNoRows
		},
		getFn: func(context.Context, database.GetLiveOrderLockParams) (database.OrderLock, error) {
			return aliceRow(now), nil
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil, WithClock(func() time.Time { return now }))

	_, err := m.Require(context.Background(), keyFor(tenantA), bob)
	var le *LockedError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LockedError, got %v", err)
	}
	if le.Lock.Holder.UserID != alice.UserID {
		t.Errorf("holder = %s, want alice", le.Lock.Holder.Name)
	}
}

func TestPostgresStore_TryAcquire_RetriesWhenCompetitorVanishes(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	attempts := 0
	q := &mockQueries{
		acquireFn: func(_ context.Context, arg database.AcquireOrderLockParams) (database.OrderLock, error) {
			attempts++
			if attempts == 1 {
				return database.OrderLock{}, pgx.ErrNoRows
			}
			row := aliceRow(now)
			row.HolderID = arg.HolderID
			row.HolderName = arg.HolderName
			row.SessionID = arg.SessionID
			return row, nil
		},
		getFn: func(context.Context, database.GetLiveOrderLockParams) (database.OrderLock, error) {
			// The lock that refused the upsert was released before the read.
			return database.OrderLock{}, pgx.ErrNoRows
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil, WithClock(func() time.Time { return now }))

	l, ok, err := m.Acquire(context.Background(), keyFor(tenantA), bob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected lock to be granted, got busy with holder %q", l.Holder.Name)
	}
	if l.Holder.UserID != bob.UserID {
		t.Errorf("holder = %s, want bob", l.Holder.Name)
	}
	if attempts != 2 {
		t.Errorf("upsert attempts = %d, want 2", attempts)
	}
}

func TestPostgresStore_TryAcquire_ContendedNeverReportsEmptyHolder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := &mockQueries{
		acquireFn: func(context.Context, database.AcquireOrderLockParams) (database.OrderLock, error) {
			return database.OrderLock{}, pgx.ErrNoRows
		},
		getFn: func(context.Context, database.GetLiveOrderLockParams) (database.OrderLock, error) {
			return database.OrderLock{}, pgx.ErrNoRows
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil, WithClock(func() time.Time { return now }))

	_, ok, err := m.Acquire(context.Background(), keyFor(tenantA), bob)
	if ok {
		t.Fatal("expected no lock")
	}
	if !errors.Is(err, ErrAcquireContended) {
		t.Errorf("expected ErrAcquireContended, got %v", err)
	}
}

func TestPostgresStore_TryAcquire_DatabaseError(t *testing.T) {
	q := &mockQueries{
		acquireFn: func(context.Context, database.AcquireOrderLockParams) (database.OrderLock, error) {
			return database.OrderLock{}, errors.New("connection reset")
		},
	}
	m := NewManager(NewPostgresStore(q), time.Minute, nil)

	if _, _, err := m.Acquire(context.Background(), keyFor(tenantA), alice); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresStore_Release_NotHolder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := &mockQueries{
		deleteFn: func(_ context.Context, arg database.DeleteOrderLockParams) (int64, error) {
			if arg.HolderID != bob.UserID {
				t.Errorf("holder id = %s, want bob", arg.HolderID)
			}
			return 0, nil
		},
		getFn: func(context.Context, database.GetLiveOrderLockParams) (database.OrderLock, error) {
			return aliceRow(now), nil
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil, WithClock(func() time.Time { return now }))

	err := m.Release(context.Background(), keyFor(tenantA), bob)
	if !errors.Is(err, ErrNotLockHolder) {
		t.Errorf("expected ErrNotLockHolder, got %v", err)
	}
}

func TestPostgresStore_Release_AbsentIsNoop(t *testing.T) {
	q := &mockQueries{
		deleteFn: func(context.Context, database.DeleteOrderLockParams) (int64, error) { return 0, nil },
		getFn: func(context.Context, database.GetLiveOrderLockParams) (database.OrderLock, error) {
			return database.OrderLock{}, pgx.ErrNoRows
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil)

	if err := m.Release(context.Background(), keyFor(tenantA), bob); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPostgresStore_Cleanup(t *testing.T) {
	q := &mockQueries{
		deleteSessionFn: func(_ context.Context, arg database.DeleteOrderLocksBySessionParams) (int64, error) {
			if arg.SessionID != "s-alice" || arg.TenantID != tenantA {
				t.Errorf("unexpected params %+v", arg)
			}
			return 3, nil
		},
	}
	m := NewManager(NewPostgresStore(q), 5*time.Minute, nil)

	n, err := m.Cleanup(context.Background(), tenantA, alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("released %d, want 3", n)
	}
}
