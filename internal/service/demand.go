package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/lock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DemandStore defines the DB methods needed for production planning.
// Satisfied by *database.Queries.
type DemandStore interface {
	ListCustomerOrderLinesForDate(ctx context.Context, arg database.ListCustomerOrderLinesForDateParams) ([]database.ListCustomerOrderLinesForDateRow, error)
	ListInternalOrderLinesForDate(ctx context.Context, arg database.ListInternalOrderLinesForDateParams) ([]database.ListInternalOrderLinesForDateRow, error)
	ListProducts(ctx context.Context, tenantID uuid.UUID) ([]database.Product, error)
	ListProductionSchedulesByDate(ctx context.Context, arg database.ListProductionSchedulesByDateParams) ([]database.ProductionSchedule, error)
	ListProductionScheduleItems(ctx context.Context, scheduleID uuid.UUID) ([]database.ProductionScheduleItem, error)
}

// DemandItem is one order line due on the planning date.
type DemandItem struct {
	OrderID   uuid.UUID
	Kind      lock.Kind
	ProductID uuid.UUID
	Quantity  int32
	Priority  database.OrderPriority
}

type DemandSources struct {
	ExternalOrders int `json:"external_orders"`
	InternalOrders int `json:"internal_orders"`
}

// DemandLine is the total quantity of one product needed on a date.
type DemandLine struct {
	ProductID            uuid.UUID              `json:"product_id"`
	ProductName          string                 `json:"product_name"`
	TotalQuantity        int64                  `json:"total_quantity"`
	Sources              DemandSources          `json:"sources"`
	Priority             database.OrderPriority `json:"priority"`
	EstimatedPrepMinutes decimal.NullDecimal    `json:"estimated_prep_minutes"`
	RecipeID             *uuid.UUID             `json:"recipe_id,omitempty"`
}

// Aggregate groups items by product. Quantities are summed, contributing orders
// counted per kind and the highest priority kept. Items whose product is not in
// products are skipped and logged. Lines come out in first-seen order.
func Aggregate(items []DemandItem, products map[uuid.UUID]database.Product, logger *zap.Logger) []DemandLine {
	if logger == nil {
		logger = zap.NewNop()
	}

	type acc struct {
		line   DemandLine
		orders map[uuid.UUID]bool
	}
	byProduct := make(map[uuid.UUID]*acc)
	var order []uuid.UUID

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		product, ok := products[item.ProductID]
		if !ok {
			logger.Warn("demand item skipped: unknown product",
				zap.String("order_id", item.OrderID.String()),
				zap.String("product_id", item.ProductID.String()))
			continue
		}

		a, ok := byProduct[item.ProductID]
		if !ok {
			a = &acc{
				line: DemandLine{
					ProductID:   product.ID,
					ProductName: product.Name,
				},
				orders: make(map[uuid.UUID]bool),
			}
			if product.RecipeID.Valid {
				id := uuid.UUID(product.RecipeID.Bytes)
				a.line.RecipeID = &id
			}
			byProduct[item.ProductID] = a
			order = append(order, item.ProductID)
		}

		a.line.TotalQuantity += int64(item.Quantity)

		priority := item.Priority
		if !priority.Valid() {
			priority = database.OrderPriorityNormal
		}
		if priority.Rank() > a.line.Priority.Rank() {
			a.line.Priority = priority
		}

		if !a.orders[item.OrderID] {
			a.orders[item.OrderID] = true
			if item.Kind == lock.KindInternal {
				a.line.Sources.InternalOrders++
			} else {
				a.line.Sources.ExternalOrders++
			}
		}
	}

	lines := make([]DemandLine, 0, len(order))
	for _, id := range order {
		a := byProduct[id]
		if prep := products[id].PrepTimeMinutes; prep.Valid {
			per := numericToDecimal(prep)
			a.line.EstimatedPrepMinutes = decimal.NewNullDecimal(per.Mul(decimal.NewFromInt(a.line.TotalQuantity)))
		}
		lines = append(lines, a.line)
	}
	return lines
}

// SortDemand orders lines by priority desc, quantity desc, then name.
func SortDemand(lines []DemandLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity > b.TotalQuantity
		}
		return a.ProductName < b.ProductName
	})
}

// ScheduleView is a production schedule with its items.
type ScheduleView struct {
	Schedule database.ProductionSchedule
	Items    []database.ProductionScheduleItem
}

// DemandService feeds the production planning view.
type DemandService struct {
	queries DemandStore
	logger  *zap.Logger
}

func NewDemandService(queries DemandStore, logger *zap.Logger) *DemandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemandService{queries: queries, logger: logger}
}

// ComputeDemand aggregates the non-cancelled customer and internal order lines
// due on date. Customer orders count as normal priority.
func (s *DemandService) ComputeDemand(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]DemandLine, error) {
	day := dateOf(date)

	customer, err := s.queries.ListCustomerOrderLinesForDate(ctx, database.ListCustomerOrderLinesForDateParams{TenantID: tenantID, Date: day})
	if err != nil {
		return nil, fmt.Errorf("list customer order lines: %w", err)
	}
	internal, err := s.queries.ListInternalOrderLinesForDate(ctx, database.ListInternalOrderLinesForDateParams{TenantID: tenantID, Date: day})
	if err != nil {
		return nil, fmt.Errorf("list internal order lines: %w", err)
	}
	products, err := s.queries.ListProducts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]DemandItem, 0, len(customer)+len(internal))
	for _, row := range customer {
		if row.Status == database.CustomerOrderStatusCancelled {
			continue
		}
		items = append(items, DemandItem{
			OrderID:   row.OrderID,
			Kind:      lock.KindExternal,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			Priority:  database.OrderPriorityNormal,
		})
	}
	for _, row := range internal {
		if row.Status == database.InternalOrderStatusCancelled {
			continue
		}
		items = append(items, DemandItem{
			OrderID:   row.OrderID,
			Kind:      lock.KindInternal,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			Priority:  row.Priority,
		})
	}

	byID := make(map[uuid.UUID]database.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	return Aggregate(items, byID, s.logger), nil
}

func (s *DemandService) ListSchedules(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]ScheduleView, error) {
	schedules, err := s.queries.ListProductionSchedulesByDate(ctx, database.ListProductionSchedulesByDateParams{
		TenantID: tenantID,
		Date:     dateOf(date),
	})
	if err != nil {
		return nil, fmt.Errorf("list production schedules: %w", err)
	}
	views := make([]ScheduleView, 0, len(schedules))
	for _, sch := range schedules {
		items, err := s.queries.ListProductionScheduleItems(ctx, sch.ID)
		if err != nil {
			return nil, fmt.Errorf("list production schedule items: %w", err)
		}
		views = append(views, ScheduleView{Schedule: sch, Items: items})
	}
	return views, nil
}
