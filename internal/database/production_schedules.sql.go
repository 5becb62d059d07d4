package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProductionSchedule = `-- name: CreateProductionSchedule :one
INSERT INTO production_schedules (tenant_id, internal_order_id, production_date, shift, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, tenant_id, internal_order_id, production_date, shift, status, notes, created_by, created_at
`

type CreateProductionScheduleParams struct {
	TenantID        uuid.UUID
	InternalOrderID uuid.UUID
	ProductionDate  pgtype.Date
	Shift           pgtype.Text
	Notes           pgtype.Text
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateProductionSchedule(ctx context.Context, arg CreateProductionScheduleParams) (ProductionSchedule, error) {
	row := q.db.QueryRow(ctx, createProductionSchedule,
		arg.TenantID,
		arg.InternalOrderID,
		arg.ProductionDate,
		arg.Shift,
		arg.Notes,
		arg.CreatedBy,
	)
	var i ProductionSchedule
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.InternalOrderID,
		&i.ProductionDate,
		&i.Shift,
		&i.Status,
		&i.Notes,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createProductionScheduleItem = `-- name: CreateProductionScheduleItem :one
INSERT INTO production_schedule_items (schedule_id, product_id, recipe_id, quantity)
VALUES ($1, $2, $3, $4)
RETURNING id, schedule_id, product_id, recipe_id, quantity
`

type CreateProductionScheduleItemParams struct {
	ScheduleID uuid.UUID
	ProductID  uuid.UUID
	RecipeID   uuid.UUID
	Quantity   int32
}

func (q *Queries) CreateProductionScheduleItem(ctx context.Context, arg CreateProductionScheduleItemParams) (ProductionScheduleItem, error) {
	row := q.db.QueryRow(ctx, createProductionScheduleItem,
		arg.ScheduleID,
		arg.ProductID,
		arg.RecipeID,
		arg.Quantity,
	)
	var i ProductionScheduleItem
	err := row.Scan(
		&i.ID,
		&i.ScheduleID,
		&i.ProductID,
		&i.RecipeID,
		&i.Quantity,
	)
	return i, err
}

const cancelProductionSchedulesForOrder = `-- name: CancelProductionSchedulesForOrder :execrows
UPDATE production_schedules
SET status = 'cancelled'
WHERE tenant_id = $1 AND internal_order_id = $2
  AND status IN ('planned', 'in_progress')
`

type CancelProductionSchedulesForOrderParams struct {
	TenantID        uuid.UUID
	InternalOrderID uuid.UUID
}

func (q *Queries) CancelProductionSchedulesForOrder(ctx context.Context, arg CancelProductionSchedulesForOrderParams) (int64, error) {
	result, err := q.db.Exec(ctx, cancelProductionSchedulesForOrder, arg.TenantID, arg.InternalOrderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listProductionSchedulesByDate = `-- name: ListProductionSchedulesByDate :many
SELECT id, tenant_id, internal_order_id, production_date, shift, status, notes, created_by, created_at
FROM production_schedules
WHERE tenant_id = $1 AND production_date = $2
ORDER BY created_at
`

type ListProductionSchedulesByDateParams struct {
	TenantID uuid.UUID
	Date     pgtype.Date
}

func (q *Queries) ListProductionSchedulesByDate(ctx context.Context, arg ListProductionSchedulesByDateParams) ([]ProductionSchedule, error) {
	rows, err := q.db.Query(ctx, listProductionSchedulesByDate, arg.TenantID, arg.Date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductionSchedule{}
	for rows.Next() {
		var i ProductionSchedule
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.InternalOrderID,
			&i.ProductionDate,
			&i.Shift,
			&i.Status,
			&i.Notes,
			&i.CreatedBy,
			&i.CreatedAt,
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

const listProductionScheduleItems = `-- name: ListProductionScheduleItems :many
SELECT id, schedule_id, product_id, recipe_id, quantity
FROM production_schedule_items
WHERE schedule_id = $1
ORDER BY id
`

func (q *Queries) ListProductionScheduleItems(ctx context.Context, scheduleID uuid.UUID) ([]ProductionScheduleItem, error) {
	rows, err := q.db.Query(ctx, listProductionScheduleItems, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductionScheduleItem{}
	for rows.Next() {
		var i ProductionScheduleItem
		if err := rows.Scan(
			&i.ID,
			&i.ScheduleID,
			&i.ProductID,
			&i.RecipeID,
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
