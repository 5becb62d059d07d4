package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const internalOrderColumns = `id, tenant_id, order_number, source, status, priority,
       requester_name, requester_email, department, needed_by, production_date,
       production_shift, batch_number, assigned_to, workstation, target_quantity,
       actual_quantity, waste_quantity, quality_notes, recurrence_frequency,
       recurrence_next_date, recurrence_end_date, notes, completed_at, created_by,
       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInternalOrder(row rowScanner) (InternalOrder, error) {
	var i InternalOrder
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.OrderNumber,
		&i.Source,
		&i.Status,
		&i.Priority,
		&i.RequesterName,
		&i.RequesterEmail,
		&i.Department,
		&i.NeededBy,
		&i.ProductionDate,
		&i.ProductionShift,
		&i.BatchNumber,
		&i.AssignedTo,
		&i.Workstation,
		&i.TargetQuantity,
		&i.ActualQuantity,
		&i.WasteQuantity,
		&i.QualityNotes,
		&i.RecurrenceFrequency,
		&i.RecurrenceNextDate,
		&i.RecurrenceEndDate,
		&i.Notes,
		&i.CompletedAt,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextInternalOrderNumber = `-- name: GetNextInternalOrderNumber :one
SELECT (COALESCE(MAX(CAST(SUBSTRING(order_number FROM 4) AS INTEGER)), 0) + 1)::int4
FROM internal_orders
WHERE tenant_id = $1
`

func (q *Queries) GetNextInternalOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextInternalOrderNumber, tenantID)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const createInternalOrder = `-- name: CreateInternalOrder :one
INSERT INTO internal_orders (
    tenant_id, order_number, source, priority, requester_name, requester_email,
    department, needed_by, target_quantity, recurrence_frequency,
    recurrence_next_date, recurrence_end_date, notes, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + internalOrderColumns

type CreateInternalOrderParams struct {
	TenantID            uuid.UUID
	OrderNumber         string
	Source              InternalOrderSource
	Priority            OrderPriority
	RequesterName       string
	RequesterEmail      pgtype.Text
	Department          string
	NeededBy            pgtype.Date
	TargetQuantity      pgtype.Int4
	RecurrenceFrequency pgtype.Text
	RecurrenceNextDate  pgtype.Date
	RecurrenceEndDate   pgtype.Date
	Notes               pgtype.Text
	CreatedBy           uuid.UUID
}

func (q *Queries) CreateInternalOrder(ctx context.Context, arg CreateInternalOrderParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, createInternalOrder,
		arg.TenantID,
		arg.OrderNumber,
		arg.Source,
		arg.Priority,
		arg.RequesterName,
		arg.RequesterEmail,
		arg.Department,
		arg.NeededBy,
		arg.TargetQuantity,
		arg.RecurrenceFrequency,
		arg.RecurrenceNextDate,
		arg.RecurrenceEndDate,
		arg.Notes,
		arg.CreatedBy,
	)
	return scanInternalOrder(row)
}

const createInternalOrderItem = `-- name: CreateInternalOrderItem :one
INSERT INTO internal_order_items (order_id, product_id, product_name, quantity, unit_cost, customizations, instructions)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, product_id, product_name, quantity, unit_cost, customizations, instructions
`

type CreateInternalOrderItemParams struct {
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int32
	UnitCost       pgtype.Numeric
	Customizations pgtype.Text
	Instructions   pgtype.Text
}

func (q *Queries) CreateInternalOrderItem(ctx context.Context, arg CreateInternalOrderItemParams) (InternalOrderItem, error) {
	row := q.db.QueryRow(ctx, createInternalOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.Quantity,
		arg.UnitCost,
		arg.Customizations,
		arg.Instructions,
	)
	var i InternalOrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitCost,
		&i.Customizations,
		&i.Instructions,
	)
	return i, err
}

const getInternalOrder = `-- name: GetInternalOrder :one
SELECT ` + internalOrderColumns + `
FROM internal_orders
WHERE id = $1 AND tenant_id = $2
`

type GetInternalOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetInternalOrder(ctx context.Context, arg GetInternalOrderParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, getInternalOrder, arg.ID, arg.TenantID)
	return scanInternalOrder(row)
}

const getInternalOrderForUpdate = `-- name: GetInternalOrderForUpdate :one
SELECT ` + internalOrderColumns + `
FROM internal_orders
WHERE id = $1 AND tenant_id = $2
FOR UPDATE
`

func (q *Queries) GetInternalOrderForUpdate(ctx context.Context, arg GetInternalOrderParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, getInternalOrderForUpdate, arg.ID, arg.TenantID)
	return scanInternalOrder(row)
}

const listInternalOrders = `-- name: ListInternalOrders :many
SELECT ` + internalOrderColumns + `
FROM internal_orders
WHERE tenant_id = $1
  AND ($2::text IS NULL OR status = $2::text)
  AND ($3::date IS NULL OR COALESCE(production_date, needed_by) = $3::date)
ORDER BY needed_by, created_at
LIMIT $4 OFFSET $5
`

type ListInternalOrdersParams struct {
	TenantID uuid.UUID
	Status   pgtype.Text
	Date     pgtype.Date
	Limit    int32
	Offset   int32
}

func (q *Queries) ListInternalOrders(ctx context.Context, arg ListInternalOrdersParams) ([]InternalOrder, error) {
	rows, err := q.db.Query(ctx, listInternalOrders,
		arg.TenantID,
		arg.Status,
		arg.Date,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InternalOrder{}
	for rows.Next() {
		i, err := scanInternalOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInternalOrderItems = `-- name: ListInternalOrderItems :many
SELECT id, order_id, product_id, product_name, quantity, unit_cost, customizations, instructions
FROM internal_order_items
WHERE order_id = $1
ORDER BY product_name, id
`

func (q *Queries) ListInternalOrderItems(ctx context.Context, orderID uuid.UUID) ([]InternalOrderItem, error) {
	rows, err := q.db.Query(ctx, listInternalOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InternalOrderItem{}
	for rows.Next() {
		var i InternalOrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.ProductName,
			&i.Quantity,
			&i.UnitCost,
			&i.Customizations,
			&i.Instructions,
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

const updateInternalOrder = `-- name: UpdateInternalOrder :one
UPDATE internal_orders
SET priority = $3,
    requester_name = $4,
    requester_email = $5,
    department = $6,
    needed_by = $7,
    production_shift = $8,
    batch_number = $9,
    assigned_to = $10,
    workstation = $11,
    target_quantity = $12,
    recurrence_frequency = $13,
    recurrence_next_date = $14,
    recurrence_end_date = $15,
    notes = $16,
    updated_at = now()
WHERE id = $1 AND tenant_id = $2
RETURNING ` + internalOrderColumns

type UpdateInternalOrderParams struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	Priority            OrderPriority
	RequesterName       string
	RequesterEmail      pgtype.Text
	Department          string
	NeededBy            pgtype.Date
	ProductionShift     pgtype.Text
	BatchNumber         pgtype.Text
	AssignedTo          pgtype.Text
	Workstation         pgtype.Text
	TargetQuantity      pgtype.Int4
	RecurrenceFrequency pgtype.Text
	RecurrenceNextDate  pgtype.Date
	RecurrenceEndDate   pgtype.Date
	Notes               pgtype.Text
}

func (q *Queries) UpdateInternalOrder(ctx context.Context, arg UpdateInternalOrderParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, updateInternalOrder,
		arg.ID,
		arg.TenantID,
		arg.Priority,
		arg.RequesterName,
		arg.RequesterEmail,
		arg.Department,
		arg.NeededBy,
		arg.ProductionShift,
		arg.BatchNumber,
		arg.AssignedTo,
		arg.Workstation,
		arg.TargetQuantity,
		arg.RecurrenceFrequency,
		arg.RecurrenceNextDate,
		arg.RecurrenceEndDate,
		arg.Notes,
	)
	return scanInternalOrder(row)
}

const updateInternalOrderStatus = `-- name: UpdateInternalOrderStatus :one
UPDATE internal_orders
SET status = $3,
    completed_at = COALESCE($4, completed_at),
    production_date = COALESCE($5, production_date),
    production_shift = COALESCE($6, production_shift),
    updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND status = $7
RETURNING ` + internalOrderColumns

// UpdateInternalOrderStatusParams writes a status change. The update only
// matches while the row still holds PreviousStatus; a concurrent change
// surfaces as pgx.ErrNoRows.
type UpdateInternalOrderStatusParams struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Status          InternalOrderStatus
	CompletedAt     pgtype.Timestamptz
	ProductionDate  pgtype.Date
	ProductionShift pgtype.Text
	PreviousStatus  InternalOrderStatus
}

func (q *Queries) UpdateInternalOrderStatus(ctx context.Context, arg UpdateInternalOrderStatusParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, updateInternalOrderStatus,
		arg.ID,
		arg.TenantID,
		arg.Status,
		arg.CompletedAt,
		arg.ProductionDate,
		arg.ProductionShift,
		arg.PreviousStatus,
	)
	return scanInternalOrder(row)
}

const recordInternalOrderOutcome = `-- name: RecordInternalOrderOutcome :one
UPDATE internal_orders
SET actual_quantity = $3,
    waste_quantity = $4,
    quality_notes = $5,
    updated_at = now()
WHERE id = $1 AND tenant_id = $2
RETURNING ` + internalOrderColumns

type RecordInternalOrderOutcomeParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ActualQuantity pgtype.Int4
	WasteQuantity  pgtype.Int4
	QualityNotes   pgtype.Text
}

func (q *Queries) RecordInternalOrderOutcome(ctx context.Context, arg RecordInternalOrderOutcomeParams) (InternalOrder, error) {
	row := q.db.QueryRow(ctx, recordInternalOrderOutcome,
		arg.ID,
		arg.TenantID,
		arg.ActualQuantity,
		arg.WasteQuantity,
		arg.QualityNotes,
	)
	return scanInternalOrder(row)
}

const deleteInternalOrder = `-- name: DeleteInternalOrder :execrows
DELETE FROM internal_orders
WHERE id = $1 AND tenant_id = $2
`

type DeleteInternalOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteInternalOrder(ctx context.Context, arg DeleteInternalOrderParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteInternalOrder, arg.ID, arg.TenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listDueRecurringOrders = `-- name: ListDueRecurringOrders :many
SELECT ` + internalOrderColumns + `
FROM internal_orders
WHERE recurrence_frequency IS NOT NULL
  AND recurrence_next_date IS NOT NULL
  AND recurrence_next_date <= $1
  AND (recurrence_end_date IS NULL OR recurrence_next_date <= recurrence_end_date)
  AND status <> 'cancelled'
ORDER BY tenant_id, recurrence_next_date
`

func (q *Queries) ListDueRecurringOrders(ctx context.Context, asOf pgtype.Date) ([]InternalOrder, error) {
	rows, err := q.db.Query(ctx, listDueRecurringOrders, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InternalOrder{}
	for rows.Next() {
		i, err := scanInternalOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setRecurrenceNextDate = `-- name: SetRecurrenceNextDate :exec
UPDATE internal_orders
SET recurrence_next_date = $2,
    updated_at = now()
WHERE id = $1
`

type SetRecurrenceNextDateParams struct {
	ID       uuid.UUID
	NextDate pgtype.Date
}

func (q *Queries) SetRecurrenceNextDate(ctx context.Context, arg SetRecurrenceNextDateParams) error {
	_, err := q.db.Exec(ctx, setRecurrenceNextDate, arg.ID, arg.NextDate)
	return err
}
