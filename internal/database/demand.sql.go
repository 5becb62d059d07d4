package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listCustomerOrderLinesForDate = `-- name: ListCustomerOrderLinesForDate :many
SELECT o.id, o.status, COALESCE(o.delivery_date, o.pickup_date) AS due_date, i.product_id, i.quantity
FROM customer_orders o
JOIN customer_order_items i ON i.order_id = o.id
WHERE o.tenant_id = $1
  AND o.status <> 'cancelled'
  AND COALESCE(o.delivery_date, o.pickup_date) = $2
ORDER BY o.id
`

type ListCustomerOrderLinesForDateParams struct {
	TenantID uuid.UUID
	Date     pgtype.Date
}

type ListCustomerOrderLinesForDateRow struct {
	OrderID   uuid.UUID
	Status    CustomerOrderStatus
	DueDate   pgtype.Date
	ProductID uuid.UUID
	Quantity  int32
}

func (q *Queries) ListCustomerOrderLinesForDate(ctx context.Context, arg ListCustomerOrderLinesForDateParams) ([]ListCustomerOrderLinesForDateRow, error) {
	rows, err := q.db.Query(ctx, listCustomerOrderLinesForDate, arg.TenantID, arg.Date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListCustomerOrderLinesForDateRow{}
	for rows.Next() {
		var i ListCustomerOrderLinesForDateRow
		if err := rows.Scan(
			&i.OrderID,
			&i.Status,
			&i.DueDate,
			&i.ProductID,
			&i.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInternalOrderLinesForDate = `-- name: ListInternalOrderLinesForDate :many
SELECT o.id, o.status, o.priority, COALESCE(o.production_date, o.needed_by) AS due_date, i.product_id, i.quantity
FROM internal_orders o
JOIN internal_order_items i ON i.order_id = o.id
WHERE o.tenant_id = $1
  AND o.status <> 'cancelled'
  AND COALESCE(o.production_date, o.needed_by) = $2
ORDER BY o.id
`

type ListInternalOrderLinesForDateParams struct {
	TenantID uuid.UUID
	Date     pgtype.Date
}

type ListInternalOrderLinesForDateRow struct {
	OrderID   uuid.UUID
	Status    InternalOrderStatus
	Priority  OrderPriority
	DueDate   pgtype.Date
	ProductID uuid.UUID
	Quantity  int32
}

func (q *Queries) ListInternalOrderLinesForDate(ctx context.Context, arg ListInternalOrderLinesForDateParams) ([]ListInternalOrderLinesForDateRow, error) {
	rows, err := q.db.Query(ctx, listInternalOrderLinesForDate, arg.TenantID, arg.Date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListInternalOrderLinesForDateRow{}
	for rows.Next() {
		var i ListInternalOrderLinesForDateRow
		if err := rows.Scan(
			&i.OrderID,
			&i.Status,
			&i.Priority,
			&i.DueDate,
			&i.ProductID,
			&i.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
