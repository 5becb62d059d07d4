package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/enum"
	"github.com/ovenly/api/internal/events"
	"github.com/ovenly/api/internal/orderstate"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	maxOrderNumberRetries         = 3
	internalOrderNumberConstraint = "internal_orders_tenant_id_order_number_key"
	defaultInternalOrderListLimit = 50
	maxInternalOrderListLimit     = 200
)

var ErrInvalidStatus = errors.New("invalid status")

// InternalOrderStore defines the DB methods needed for internal orders.
// Satisfied by *database.Queries (and its WithTx variant).
type InternalOrderStore interface {
	GetNextInternalOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateInternalOrder(ctx context.Context, arg database.CreateInternalOrderParams) (database.InternalOrder, error)
	CreateInternalOrderItem(ctx context.Context, arg database.CreateInternalOrderItemParams) (database.InternalOrderItem, error)
	GetInternalOrder(ctx context.Context, arg database.GetInternalOrderParams) (database.InternalOrder, error)
	GetInternalOrderForUpdate(ctx context.Context, arg database.GetInternalOrderParams) (database.InternalOrder, error)
	ListInternalOrders(ctx context.Context, arg database.ListInternalOrdersParams) ([]database.InternalOrder, error)
	ListInternalOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.InternalOrderItem, error)
	UpdateInternalOrder(ctx context.Context, arg database.UpdateInternalOrderParams) (database.InternalOrder, error)
	UpdateInternalOrderStatus(ctx context.Context, arg database.UpdateInternalOrderStatusParams) (database.InternalOrder, error)
	RecordInternalOrderOutcome(ctx context.Context, arg database.RecordInternalOrderOutcomeParams) (database.InternalOrder, error)
	DeleteInternalOrder(ctx context.Context, arg database.DeleteInternalOrderParams) (int64, error)
	ListDueRecurringOrders(ctx context.Context, asOf pgtype.Date) ([]database.InternalOrder, error)
	SetRecurrenceNextDate(ctx context.Context, arg database.SetRecurrenceNextDateParams) error
	CreateProductionSchedule(ctx context.Context, arg database.CreateProductionScheduleParams) (database.ProductionSchedule, error)
	CreateProductionScheduleItem(ctx context.Context, arg database.CreateProductionScheduleItemParams) (database.ProductionScheduleItem, error)
	CancelProductionSchedulesForOrder(ctx context.Context, arg database.CancelProductionSchedulesForOrderParams) (int64, error)
}

// NewInternalOrderStore creates an InternalOrderStore from a DBTX (pool or tx).
type NewInternalOrderStore func(db database.DBTX) InternalOrderStore

// CreateInternalOrderRequest is the input for creating an internal order.
type CreateInternalOrderRequest struct {
	Source         string
	Priority       string
	RequesterName  string
	RequesterEmail string
	Department     string
	NeededBy       time.Time
	TargetQuantity *int32
	Recurrence     *RecurrenceRequest
	Notes          string
	Items          []CreateInternalOrderItemRequest
}

type CreateInternalOrderItemRequest struct {
	ProductID      string
	Quantity       int32
	UnitCost       string
	Customizations string
	Instructions   string
}

// RecurrenceRequest repeats an order every Frequency starting after its
// needed-by date, until EndDate if set.
type RecurrenceRequest struct {
	Frequency string
	EndDate   *time.Time
}

// UpdateInternalOrderRequest carries field edits. Nil fields are left as is.
type UpdateInternalOrderRequest struct {
	Priority        *string
	RequesterName   *string
	RequesterEmail  *string
	Department      *string
	NeededBy        *time.Time
	ProductionShift *string
	BatchNumber     *string
	AssignedTo      *string
	Workstation     *string
	TargetQuantity  *int32
	Notes           *string
	Recurrence      *RecurrenceRequest
	ClearRecurrence bool
}

type OutcomeRequest struct {
	ActualQuantity *int32
	WasteQuantity  *int32
	QualityNotes   *string
}

type ScheduleProductionRequest struct {
	OrderID        uuid.UUID
	ProductionDate time.Time
	Shift          string
	Notes          string
}

type ListInternalOrdersFilter struct {
	Status string
	Date   *time.Time
	Limit  int32
	Offset int32
}

// InternalOrderResult is an order with its items.
type InternalOrderResult struct {
	Order database.InternalOrder
	Items []database.InternalOrderItem
}

// ScheduleResult is the outcome of scheduling production for an order.
type ScheduleResult struct {
	Order    database.InternalOrder
	Schedule database.ProductionSchedule
	Items    []database.ProductionScheduleItem
}

// InternalOrderService handles internal production orders. Every mutation of
// an existing order requires the caller to hold the order's edit lock.
type InternalOrderService struct {
	pool     TxBeginner
	queries  InternalOrderStore
	newStore NewInternalOrderStore
	locks    Locker
	events   events.Publisher
	now      func() time.Time
	logger   *zap.Logger
}

func NewInternalOrderService(pool TxBeginner, queries InternalOrderStore, newStore NewInternalOrderStore, locks Locker, pub events.Publisher, logger *zap.Logger) *InternalOrderService {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalOrderService{
		pool:     pool,
		queries:  queries,
		newStore: newStore,
		locks:    locks,
		events:   pub,
		now:      time.Now,
		logger:   logger,
	}
}

// itemDraft is a validated item waiting for its product snapshot.
type itemDraft struct {
	productID      uuid.UUID
	quantity       int32
	unitCost       pgtype.Numeric
	customizations pgtype.Text
	instructions   pgtype.Text
}

// Create validates and stores a new draft order.
func (s *InternalOrderService) Create(ctx context.Context, actor Actor, req CreateInternalOrderRequest) (*InternalOrderResult, error) {
	source := database.InternalOrderSource(req.Source)
	if !source.Valid() {
		return nil, ErrInvalidSource
	}
	priority := database.OrderPriorityNormal
	if req.Priority != "" {
		priority = database.OrderPriority(req.Priority)
		if !priority.Valid() {
			return nil, ErrInvalidPriority
		}
	}
	if req.RequesterName == "" {
		return nil, ErrRequesterRequired
	}
	if req.Department == "" {
		return nil, ErrDepartmentRequired
	}
	if req.NeededBy.IsZero() {
		return nil, ErrNeededByRequired
	}
	if req.TargetQuantity != nil && *req.TargetQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items := make([]itemDraft, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		unitCost := pgtype.Numeric{}
		if item.UnitCost != "" {
			c, err := decimal.NewFromString(item.UnitCost)
			if err != nil || c.IsNegative() {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitCost)
			}
			unitCost = decimalToNumeric(c)
		}
		items = append(items, itemDraft{
			productID:      productID,
			quantity:       item.Quantity,
			unitCost:       unitCost,
			customizations: textOrNull(item.Customizations),
			instructions:   textOrNull(item.Instructions),
		})
	}

	params := database.CreateInternalOrderParams{
		TenantID:       actor.TenantID,
		Source:         source,
		Priority:       priority,
		RequesterName:  req.RequesterName,
		RequesterEmail: textOrNull(req.RequesterEmail),
		Department:     req.Department,
		NeededBy:       dateOf(req.NeededBy),
		TargetQuantity: int4OrNull(req.TargetQuantity),
		Notes:          textOrNull(req.Notes),
		CreatedBy:      actor.UserID,
	}
	if req.Recurrence != nil {
		freq, next, end, err := recurrenceFrom(*req.Recurrence, req.NeededBy)
		if err != nil {
			return nil, err
		}
		params.RecurrenceFrequency = freq
		params.RecurrenceNextDate = next
		params.RecurrenceEndDate = end
	}

	result, err := s.createWithRetry(ctx, params, items, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("internal order created",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("order_number", result.Order.OrderNumber))
	s.publish(ctx, enum.EventInternalOrderCreated, result.Order, nil)
	return result, nil
}

// createWithRetry retries on order_number unique constraint violations
// (concurrent transactions reading the same MAX).
func (s *InternalOrderService) createWithRetry(ctx context.Context, params database.CreateInternalOrderParams, items []itemDraft, afterCreate func(context.Context, InternalOrderStore) error) (*InternalOrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createTx(ctx, params, items, afterCreate)
		if err == nil {
			return result, nil
		}
		if isUniqueViolation(err, internalOrderNumberConstraint) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *InternalOrderService) createTx(ctx context.Context, params database.CreateInternalOrderParams, items []itemDraft, afterCreate func(context.Context, InternalOrderStore) error) (*InternalOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextInternalOrderNumber(ctx, params.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	params.OrderNumber = fmt.Sprintf("IO-%04d", nextNum)

	// Snapshot product names before inserting anything.
	names := make([]string, len(items))
	for i, item := range items {
		product, err := store.GetProduct(ctx, database.GetProductParams{
			ID:       item.productID,
			TenantID: params.TenantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		names[i] = product.Name
	}

	order, err := store.CreateInternalOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create internal order: %w", err)
	}

	created := make([]database.InternalOrderItem, 0, len(items))
	for i, item := range items {
		row, err := store.CreateInternalOrderItem(ctx, database.CreateInternalOrderItemParams{
			OrderID:        order.ID,
			ProductID:      item.productID,
			ProductName:    names[i],
			Quantity:       item.quantity,
			UnitCost:       item.unitCost,
			Customizations: item.customizations,
			Instructions:   item.instructions,
		})
		if err != nil {
			return nil, fmt.Errorf("create internal order item: %w", err)
		}
		created = append(created, row)
	}

	if afterCreate != nil {
		if err := afterCreate(ctx, store); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &InternalOrderResult{Order: order, Items: created}, nil
}

func (s *InternalOrderService) Get(ctx context.Context, tenantID, id uuid.UUID) (*InternalOrderResult, error) {
	order, err := s.queries.GetInternalOrder(ctx, database.GetInternalOrderParams{ID: id, TenantID: tenantID})
	if err != nil {
		return nil, notFound(err, "get internal order")
	}
	items, err := s.queries.ListInternalOrderItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list internal order items: %w", err)
	}
	return &InternalOrderResult{Order: order, Items: items}, nil
}

func (s *InternalOrderService) List(ctx context.Context, tenantID uuid.UUID, f ListInternalOrdersFilter) ([]database.InternalOrder, error) {
	status := pgtype.Text{}
	if f.Status != "" {
		if !database.InternalOrderStatus(f.Status).Valid() {
			return nil, ErrInvalidStatus
		}
		status = textOrNull(f.Status)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultInternalOrderListLimit
	}
	if limit > maxInternalOrderListLimit {
		limit = maxInternalOrderListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return s.queries.ListInternalOrders(ctx, database.ListInternalOrdersParams{
		TenantID: tenantID,
		Status:   status,
		Date:     dateOrNull(f.Date),
		Limit:    limit,
		Offset:   offset,
	})
}

// Update applies field edits to an open order.
func (s *InternalOrderService) Update(ctx context.Context, actor Actor, id uuid.UUID, req UpdateInternalOrderRequest) (*InternalOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetInternalOrderForUpdate(ctx, database.GetInternalOrderParams{ID: id, TenantID: actor.TenantID})
	if err != nil {
		return nil, notFound(err, "get internal order")
	}
	if _, err := s.locks.Require(ctx, internalKey(actor.TenantID, id), actor.Holder()); err != nil {
		return nil, err
	}
	if orderstate.IsTerminal(order.Status) {
		return nil, ErrOrderClosed
	}

	params, err := mergeUpdate(order, req)
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateInternalOrder(ctx, params)
	if err != nil {
		return nil, notFound(err, "update internal order")
	}
	items, err := store.ListInternalOrderItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list internal order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publish(ctx, enum.EventInternalOrderUpdated, updated, nil)
	return &InternalOrderResult{Order: updated, Items: items}, nil
}

func mergeUpdate(o database.InternalOrder, req UpdateInternalOrderRequest) (database.UpdateInternalOrderParams, error) {
	p := database.UpdateInternalOrderParams{
		ID:                  o.ID,
		TenantID:            o.TenantID,
		Priority:            o.Priority,
		RequesterName:       o.RequesterName,
		RequesterEmail:      o.RequesterEmail,
		Department:          o.Department,
		NeededBy:            o.NeededBy,
		ProductionShift:     o.ProductionShift,
		BatchNumber:         o.BatchNumber,
		AssignedTo:          o.AssignedTo,
		Workstation:         o.Workstation,
		TargetQuantity:      o.TargetQuantity,
		RecurrenceFrequency: o.RecurrenceFrequency,
		RecurrenceNextDate:  o.RecurrenceNextDate,
		RecurrenceEndDate:   o.RecurrenceEndDate,
		Notes:               o.Notes,
	}

	if req.Priority != nil {
		pr := database.OrderPriority(*req.Priority)
		if !pr.Valid() {
			return p, ErrInvalidPriority
		}
		p.Priority = pr
	}
	if req.RequesterName != nil {
		if *req.RequesterName == "" {
			return p, ErrRequesterRequired
		}
		p.RequesterName = *req.RequesterName
	}
	if req.RequesterEmail != nil {
		p.RequesterEmail = textOrNull(*req.RequesterEmail)
	}
	if req.Department != nil {
		if *req.Department == "" {
			return p, ErrDepartmentRequired
		}
		p.Department = *req.Department
	}
	if req.NeededBy != nil {
		p.NeededBy = dateOf(*req.NeededBy)
	}
	if req.ProductionShift != nil {
		if *req.ProductionShift != "" && !enum.ValidShift(*req.ProductionShift) {
			return p, ErrInvalidShift
		}
		p.ProductionShift = textOrNull(*req.ProductionShift)
	}
	if req.BatchNumber != nil {
		p.BatchNumber = textOrNull(*req.BatchNumber)
	}
	if req.AssignedTo != nil {
		p.AssignedTo = textOrNull(*req.AssignedTo)
	}
	if req.Workstation != nil {
		p.Workstation = textOrNull(*req.Workstation)
	}
	if req.TargetQuantity != nil {
		if *req.TargetQuantity <= 0 {
			return p, ErrInvalidQuantity
		}
		p.TargetQuantity = int4OrNull(req.TargetQuantity)
	}
	if req.Notes != nil {
		p.Notes = textOrNull(*req.Notes)
	}

	switch {
	case req.ClearRecurrence:
		p.RecurrenceFrequency = pgtype.Text{}
		p.RecurrenceNextDate = pgtype.Date{}
		p.RecurrenceEndDate = pgtype.Date{}
	case req.Recurrence != nil:
		freq, next, end, err := recurrenceFrom(*req.Recurrence, p.NeededBy.Time)
		if err != nil {
			return p, err
		}
		p.RecurrenceFrequency = freq
		p.RecurrenceNextDate = next
		p.RecurrenceEndDate = end
	}
	return p, nil
}

// Transition moves an order to target. approved -> scheduled is refused here
// because it needs a production schedule; see ScheduleProduction. Cancelling
// also cancels the order's open production schedules in the same transaction.
func (s *InternalOrderService) Transition(ctx context.Context, actor Actor, id uuid.UUID, target string) (*database.InternalOrder, error) {
	order, err := s.queries.GetInternalOrder(ctx, database.GetInternalOrderParams{ID: id, TenantID: actor.TenantID})
	if err != nil {
		return nil, notFound(err, "get internal order")
	}
	if _, err := s.locks.Require(ctx, internalKey(actor.TenantID, id), actor.Holder()); err != nil {
		return nil, err
	}

	change, err := orderstate.Transition(order.Status, database.InternalOrderStatus(target), s.now())
	if err != nil {
		return nil, err
	}
	if change.RequiresSchedule {
		return nil, ErrUseSchedule
	}

	params := database.UpdateInternalOrderStatusParams{
		ID:             id,
		TenantID:       actor.TenantID,
		Status:         change.To,
		PreviousStatus: change.From,
	}
	if change.CompletedAt != nil {
		params.CompletedAt = pgtype.Timestamptz{Time: *change.CompletedAt, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	updated, err := store.UpdateInternalOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update internal order status: %w", err)
	}

	// A cancelled order takes its open production schedules with it.
	if change.To == database.InternalOrderStatusCancelled {
		n, err := store.CancelProductionSchedulesForOrder(ctx, database.CancelProductionSchedulesForOrderParams{
			TenantID:        actor.TenantID,
			InternalOrderID: id,
		})
		if err != nil {
			return nil, fmt.Errorf("cancel production schedules: %w", err)
		}
		if n > 0 {
			s.logger.Info("production schedules cancelled",
				zap.String("order_number", updated.OrderNumber),
				zap.Int64("count", n))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("internal order status changed",
		zap.String("order_number", updated.OrderNumber),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)))
	s.publish(ctx, enum.EventInternalOrderStatusChanged, updated, map[string]string{"from": string(change.From)})
	return &updated, nil
}

// ScheduleProduction creates a production schedule for an approved order and
// moves it to scheduled in one transaction. Every item's product must have a
// linked recipe; the first one that does not aborts the whole operation.
func (s *InternalOrderService) ScheduleProduction(ctx context.Context, actor Actor, req ScheduleProductionRequest) (*ScheduleResult, error) {
	if req.ProductionDate.IsZero() {
		return nil, ErrProductionDate
	}
	if req.Shift != "" && !enum.ValidShift(req.Shift) {
		return nil, ErrInvalidShift
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetInternalOrderForUpdate(ctx, database.GetInternalOrderParams{ID: req.OrderID, TenantID: actor.TenantID})
	if err != nil {
		return nil, notFound(err, "get internal order")
	}
	if _, err := s.locks.Require(ctx, internalKey(actor.TenantID, order.ID), actor.Holder()); err != nil {
		return nil, err
	}
	change, err := orderstate.Transition(order.Status, database.InternalOrderStatusScheduled, s.now())
	if err != nil {
		return nil, err
	}

	items, err := store.ListInternalOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list internal order items: %w", err)
	}

	recipes := make([]uuid.UUID, len(items))
	for i, item := range items {
		product, err := store.GetProduct(ctx, database.GetProductParams{ID: item.ProductID, TenantID: actor.TenantID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &RecipeMissingError{ProductID: item.ProductID, ProductName: item.ProductName}
			}
			return nil, fmt.Errorf("get product: %w", err)
		}
		if !product.RecipeID.Valid {
			return nil, &RecipeMissingError{ProductID: product.ID, ProductName: product.Name}
		}
		recipes[i] = uuid.UUID(product.RecipeID.Bytes)
	}

	schedule, err := store.CreateProductionSchedule(ctx, database.CreateProductionScheduleParams{
		TenantID:        actor.TenantID,
		InternalOrderID: order.ID,
		ProductionDate:  dateOf(req.ProductionDate),
		Shift:           textOrNull(req.Shift),
		Notes:           textOrNull(req.Notes),
		CreatedBy:       actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create production schedule: %w", err)
	}

	scheduled := make([]database.ProductionScheduleItem, 0, len(items))
	for i, item := range items {
		row, err := store.CreateProductionScheduleItem(ctx, database.CreateProductionScheduleItemParams{
			ScheduleID: schedule.ID,
			ProductID:  item.ProductID,
			RecipeID:   recipes[i],
			Quantity:   item.Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("create production schedule item: %w", err)
		}
		scheduled = append(scheduled, row)
	}

	updated, err := store.UpdateInternalOrderStatus(ctx, database.UpdateInternalOrderStatusParams{
		ID:              order.ID,
		TenantID:        actor.TenantID,
		Status:          change.To,
		ProductionDate:  dateOf(req.ProductionDate),
		ProductionShift: textOrNull(req.Shift),
		PreviousStatus:  change.From,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update internal order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("production scheduled",
		zap.String("order_number", updated.OrderNumber),
		zap.String("schedule_id", schedule.ID.String()),
		zap.Int("items", len(scheduled)))
	s.publish(ctx, enum.EventInternalOrderScheduled, updated, map[string]string{"schedule_id": schedule.ID.String()})
	return &ScheduleResult{Order: updated, Schedule: schedule, Items: scheduled}, nil
}

// RecordOutcome stores produced and wasted quantities once production started.
func (s *InternalOrderService) RecordOutcome(ctx context.Context, actor Actor, id uuid.UUID, req OutcomeRequest) (*database.InternalOrder, error) {
	if (req.ActualQuantity != nil && *req.ActualQuantity < 0) || (req.WasteQuantity != nil && *req.WasteQuantity < 0) {
		return nil, ErrNegativeQuantity
	}

	order, err := s.queries.GetInternalOrder(ctx, database.GetInternalOrderParams{ID: id, TenantID: actor.TenantID})
	if err != nil {
		return nil, notFound(err, "get internal order")
	}
	if _, err := s.locks.Require(ctx, internalKey(actor.TenantID, id), actor.Holder()); err != nil {
		return nil, err
	}

	switch order.Status {
	case database.InternalOrderStatusInProduction,
		database.InternalOrderStatusQualityCheck,
		database.InternalOrderStatusReady,
		database.InternalOrderStatusCompleted:
	default:
		return nil, ErrOutcomeNotAllowed
	}

	params := database.RecordInternalOrderOutcomeParams{
		ID:             id,
		TenantID:       actor.TenantID,
		ActualQuantity: order.ActualQuantity,
		WasteQuantity:  order.WasteQuantity,
		QualityNotes:   order.QualityNotes,
	}
	if req.ActualQuantity != nil {
		params.ActualQuantity = int4OrNull(req.ActualQuantity)
	}
	if req.WasteQuantity != nil {
		params.WasteQuantity = int4OrNull(req.WasteQuantity)
	}
	if req.QualityNotes != nil {
		params.QualityNotes = textOrNull(*req.QualityNotes)
	}

	updated, err := s.queries.RecordInternalOrderOutcome(ctx, params)
	if err != nil {
		return nil, notFound(err, "record outcome")
	}
	s.publish(ctx, enum.EventInternalOrderUpdated, updated, nil)
	return &updated, nil
}

// Delete removes an order that never reached the kitchen. The caller's lock
// is released afterwards.
func (s *InternalOrderService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	order, err := s.queries.GetInternalOrder(ctx, database.GetInternalOrderParams{ID: id, TenantID: actor.TenantID})
	if err != nil {
		return notFound(err, "get internal order")
	}
	key := internalKey(actor.TenantID, id)
	if _, err := s.locks.Require(ctx, key, actor.Holder()); err != nil {
		return err
	}
	if !orderstate.Deletable(order.Status) {
		return ErrNotDeletable
	}

	n, err := s.queries.DeleteInternalOrder(ctx, database.DeleteInternalOrderParams{ID: id, TenantID: actor.TenantID})
	if err != nil {
		return fmt.Errorf("delete internal order: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := s.locks.Release(ctx, key, actor.Holder()); err != nil {
		s.logger.Warn("release lock after delete", zap.String("order_id", id.String()), zap.Error(err))
	}
	s.publish(ctx, enum.EventInternalOrderDeleted, order, nil)
	return nil
}

// GenerateRecurringOrders creates the draft copies due on or before asOf for
// every recurring order and advances each template's next date. A template
// that fails is left at its failed date and retried on the next run.
func (s *InternalOrderService) GenerateRecurringOrders(ctx context.Context, asOf time.Time) (int, error) {
	cutoff := dateOf(asOf).Time
	templates, err := s.queries.ListDueRecurringOrders(ctx, dateOf(asOf))
	if err != nil {
		return 0, fmt.Errorf("list due recurring orders: %w", err)
	}

	created := 0
	var errs error
	for _, tmpl := range templates {
		n, err := s.materialize(ctx, tmpl, cutoff)
		created += n
		if err != nil {
			s.logger.Error("recurring order failed",
				zap.String("order_number", tmpl.OrderNumber),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", tmpl.OrderNumber, err))
		}
	}
	if created > 0 {
		s.logger.Info("recurring orders generated", zap.Int("count", created))
	}
	return created, errs
}

func (s *InternalOrderService) materialize(ctx context.Context, tmpl database.InternalOrder, cutoff time.Time) (int, error) {
	freq := database.RecurrenceFrequency(tmpl.RecurrenceFrequency.String)
	if !freq.Valid() {
		return 0, ErrInvalidRecurrence
	}
	items, err := s.queries.ListInternalOrderItems(ctx, tmpl.ID)
	if err != nil {
		return 0, fmt.Errorf("list template items: %w", err)
	}
	drafts := make([]itemDraft, len(items))
	for i, item := range items {
		drafts[i] = itemDraft{
			productID:      item.ProductID,
			quantity:       item.Quantity,
			unitCost:       item.UnitCost,
			customizations: item.Customizations,
			instructions:   item.Instructions,
		}
	}

	n := 0
	next := tmpl.RecurrenceNextDate.Time
	for !next.After(cutoff) && (!tmpl.RecurrenceEndDate.Valid || !next.After(tmpl.RecurrenceEndDate.Time)) {
		following := nextOccurrence(next, freq)
		params := database.CreateInternalOrderParams{
			TenantID:       tmpl.TenantID,
			Source:         tmpl.Source,
			Priority:       tmpl.Priority,
			RequesterName:  tmpl.RequesterName,
			RequesterEmail: tmpl.RequesterEmail,
			Department:     tmpl.Department,
			NeededBy:       dateOf(next),
			TargetQuantity: tmpl.TargetQuantity,
			Notes:          tmpl.Notes,
			CreatedBy:      tmpl.CreatedBy,
		}
		advance := func(ctx context.Context, store InternalOrderStore) error {
			return store.SetRecurrenceNextDate(ctx, database.SetRecurrenceNextDateParams{
				ID:       tmpl.ID,
				NextDate: dateOf(following),
			})
		}
		result, err := s.createWithRetry(ctx, params, drafts, advance)
		if err != nil {
			return n, err
		}
		n++
		s.publish(ctx, enum.EventInternalOrderCreated, result.Order, map[string]string{"recurring_from": tmpl.OrderNumber})
		next = following
	}
	return n, nil
}

func recurrenceFrom(r RecurrenceRequest, neededBy time.Time) (pgtype.Text, pgtype.Date, pgtype.Date, error) {
	freq := database.RecurrenceFrequency(r.Frequency)
	if !freq.Valid() {
		return pgtype.Text{}, pgtype.Date{}, pgtype.Date{}, ErrInvalidRecurrence
	}
	next := nextOccurrence(neededBy, freq)
	if r.EndDate != nil && r.EndDate.Before(neededBy) {
		return pgtype.Text{}, pgtype.Date{}, pgtype.Date{}, ErrInvalidRecurrence
	}
	return textOrNull(string(freq)), dateOf(next), dateOrNull(r.EndDate), nil
}

func nextOccurrence(d time.Time, freq database.RecurrenceFrequency) time.Time {
	switch freq {
	case database.RecurrenceFrequencyDaily:
		return d.AddDate(0, 0, 1)
	case database.RecurrenceFrequencyWeekly:
		return d.AddDate(0, 0, 7)
	case database.RecurrenceFrequencyMonthly:
		return d.AddDate(0, 1, 0)
	}
	return d
}

// InternalOrderEvent is the payload of internal_order.* events.
type InternalOrderEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      string            `json:"status"`
	Priority    string            `json:"priority"`
	NeededBy    *time.Time        `json:"needed_by,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// publish sends an event after the change is committed. Delivery failures are
// logged and never undo the change.
func (s *InternalOrderService) publish(ctx context.Context, eventType string, o database.InternalOrder, extra map[string]string) {
	ev := events.New(eventType, o.TenantID, InternalOrderEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		Priority:    string(o.Priority),
		NeededBy:    datePtr(o.NeededBy),
		Extra:       extra,
	})
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}
