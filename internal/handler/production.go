package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/service"
	"go.uber.org/zap"
)

// DemandServicer defines the planning reads needed by production handlers.
// Satisfied by *service.DemandService.
type DemandServicer interface {
	ComputeDemand(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]service.DemandLine, error)
	ListSchedules(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]service.ScheduleView, error)
}

// Scheduler turns an approved internal order into a production schedule.
// Satisfied by *service.InternalOrderService.
type Scheduler interface {
	ScheduleProduction(ctx context.Context, actor service.Actor, req service.ScheduleProductionRequest) (*service.ScheduleResult, error)
}

// ProductionHandler handles production planning endpoints.
type ProductionHandler struct {
	demand    DemandServicer
	scheduler Scheduler
	logger    *zap.Logger
}

func NewProductionHandler(demand DemandServicer, scheduler Scheduler, logger *zap.Logger) *ProductionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductionHandler{demand: demand, scheduler: scheduler, logger: logger}
}

// RegisterRoutes registers production endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/production
func (h *ProductionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/demand", h.Demand)
	r.Post("/schedule-from-order", h.ScheduleFromOrder)
	r.Get("/schedules", h.ListSchedules)
}

// --- Request / Response types ---

type scheduleFromOrderRequest struct {
	OrderID        string `json:"order_id"`
	ProductionDate string `json:"production_date"`
	Shift          string `json:"shift"`
	Notes          string `json:"notes"`
}

type demandResponse struct {
	Date  string               `json:"date"`
	Lines []service.DemandLine `json:"lines"`
}

type scheduleResponse struct {
	ID              uuid.UUID              `json:"id"`
	InternalOrderID uuid.UUID              `json:"internal_order_id"`
	ProductionDate  *string                `json:"production_date"`
	Shift           *string                `json:"shift"`
	Status          string                 `json:"status"`
	Notes           *string                `json:"notes"`
	CreatedBy       uuid.UUID              `json:"created_by"`
	CreatedAt       time.Time              `json:"created_at"`
	Items           []scheduleItemResponse `json:"items"`
}

type scheduleItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	RecipeID  uuid.UUID `json:"recipe_id"`
	Quantity  int32     `json:"quantity"`
}

type scheduleFromOrderResponse struct {
	Order    internalOrderResponse `json:"order"`
	Schedule scheduleResponse      `json:"schedule"`
}

// --- Handlers ---

// Demand handles GET /tenants/{tid}/production/demand?date=YYYY-MM-DD.
func (h *ProductionHandler) Demand(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	date, ok := parseDateQuery(w, r, "date")
	if !ok {
		return
	}

	lines, err := h.demand.ComputeDemand(r.Context(), actor.TenantID, date)
	if err != nil {
		writeServiceError(w, h.logger, err, "compute production demand")
		return
	}
	service.SortDemand(lines)
	if lines == nil {
		lines = []service.DemandLine{}
	}

	writeJSON(w, http.StatusOK, demandResponse{Date: date.Format(dateLayout), Lines: lines})
}

// ScheduleFromOrder handles POST /tenants/{tid}/production/schedule-from-order.
func (h *ProductionHandler) ScheduleFromOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req scheduleFromOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}
	if req.ProductionDate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "production_date is required"})
		return
	}
	productionDate, err := time.Parse(dateLayout, req.ProductionDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid production_date format, use YYYY-MM-DD"})
		return
	}

	result, err := h.scheduler.ScheduleProduction(r.Context(), actor, service.ScheduleProductionRequest{
		OrderID:        orderID,
		ProductionDate: productionDate,
		Shift:          req.Shift,
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "schedule production")
		return
	}

	writeJSON(w, http.StatusCreated, scheduleFromOrderResponse{
		Order:    toInternalOrderResponse(result.Order, nil),
		Schedule: toScheduleResponse(result.Schedule, result.Items),
	})
}

// ListSchedules handles GET /tenants/{tid}/production/schedules?date=YYYY-MM-DD.
func (h *ProductionHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	date, ok := parseDateQuery(w, r, "date")
	if !ok {
		return
	}

	views, err := h.demand.ListSchedules(r.Context(), actor.TenantID, date)
	if err != nil {
		writeServiceError(w, h.logger, err, "list production schedules")
		return
	}

	resp := make([]scheduleResponse, len(views))
	for i, v := range views {
		resp[i] = toScheduleResponse(v.Schedule, v.Items)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toScheduleResponse(s database.ProductionSchedule, items []database.ProductionScheduleItem) scheduleResponse {
	resp := scheduleResponse{
		ID:              s.ID,
		InternalOrderID: s.InternalOrderID,
		ProductionDate:  dateString(s.ProductionDate),
		Shift:           textPtr(s.Shift),
		Status:          string(s.Status),
		Notes:           textPtr(s.Notes),
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		Items:           make([]scheduleItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = scheduleItemResponse{
			ProductID: item.ProductID,
			RecipeID:  item.RecipeID,
			Quantity:  item.Quantity,
		}
	}
	return resp
}
