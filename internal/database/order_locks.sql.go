package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const orderLockColumns = `tenant_id, order_kind, order_id, holder_id, holder_name, session_id, acquired_at, expires_at`

func scanOrderLock(row rowScanner) (OrderLock, error) {
	var i OrderLock
	err := row.Scan(
		&i.TenantID,
		&i.OrderKind,
		&i.OrderID,
		&i.HolderID,
		&i.HolderName,
		&i.SessionID,
		&i.AcquiredAt,
		&i.ExpiresAt,
	)
	return i, err
}

const acquireOrderLock = `-- name: AcquireOrderLock :one
INSERT INTO order_locks (tenant_id, order_kind, order_id, holder_id, holder_name, session_id, acquired_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (tenant_id, order_kind, order_id) DO UPDATE
SET holder_name = EXCLUDED.holder_name,
    session_id = EXCLUDED.session_id,
    acquired_at = CASE
        WHEN order_locks.holder_id = EXCLUDED.holder_id AND order_locks.expires_at > EXCLUDED.acquired_at
            THEN order_locks.acquired_at
        ELSE EXCLUDED.acquired_at
    END,
    holder_id = EXCLUDED.holder_id,
    expires_at = EXCLUDED.expires_at
WHERE order_locks.holder_id = EXCLUDED.holder_id
   OR order_locks.expires_at <= EXCLUDED.acquired_at
RETURNING ` + orderLockColumns

// AcquireOrderLockParams inserts a lock, or takes over an existing row only when
// it is expired or already held by the same holder. A live lock held by someone
// else leaves the row untouched and returns pgx.ErrNoRows.
type AcquireOrderLockParams struct {
	TenantID   uuid.UUID
	OrderKind  string
	OrderID    uuid.UUID
	HolderID   uuid.UUID
	HolderName string
	SessionID  string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (q *Queries) AcquireOrderLock(ctx context.Context, arg AcquireOrderLockParams) (OrderLock, error) {
	row := q.db.QueryRow(ctx, acquireOrderLock,
		arg.TenantID,
		arg.OrderKind,
		arg.OrderID,
		arg.HolderID,
		arg.HolderName,
		arg.SessionID,
		arg.AcquiredAt,
		arg.ExpiresAt,
	)
	return scanOrderLock(row)
}

const getLiveOrderLock = `-- name: GetLiveOrderLock :one
SELECT ` + orderLockColumns + `
FROM order_locks
WHERE tenant_id = $1 AND order_kind = $2 AND order_id = $3 AND expires_at > $4
`

type GetLiveOrderLockParams struct {
	TenantID  uuid.UUID
	OrderKind string
	OrderID   uuid.UUID
	Now       time.Time
}

func (q *Queries) GetLiveOrderLock(ctx context.Context, arg GetLiveOrderLockParams) (OrderLock, error) {
	row := q.db.QueryRow(ctx, getLiveOrderLock, arg.TenantID, arg.OrderKind, arg.OrderID, arg.Now)
	return scanOrderLock(row)
}

const deleteOrderLock = `-- name: DeleteOrderLock :execrows
DELETE FROM order_locks
WHERE tenant_id = $1 AND order_kind = $2 AND order_id = $3
  AND (holder_id = $4 OR expires_at <= $5)
`

type DeleteOrderLockParams struct {
	TenantID  uuid.UUID
	OrderKind string
	OrderID   uuid.UUID
	HolderID  uuid.UUID
	Now       time.Time
}

func (q *Queries) DeleteOrderLock(ctx context.Context, arg DeleteOrderLockParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderLock, arg.TenantID, arg.OrderKind, arg.OrderID, arg.HolderID, arg.Now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrderLocksBySession = `-- name: DeleteOrderLocksBySession :execrows
DELETE FROM order_locks
WHERE tenant_id = $1 AND holder_id = $2 AND session_id = $3
`

type DeleteOrderLocksBySessionParams struct {
	TenantID  uuid.UUID
	HolderID  uuid.UUID
	SessionID string
}

func (q *Queries) DeleteOrderLocksBySession(ctx context.Context, arg DeleteOrderLocksBySessionParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderLocksBySession, arg.TenantID, arg.HolderID, arg.SessionID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteExpiredOrderLocks = `-- name: DeleteExpiredOrderLocks :execrows
DELETE FROM order_locks
WHERE expires_at <= $1
`

func (q *Queries) DeleteExpiredOrderLocks(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, deleteExpiredOrderLocks, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
