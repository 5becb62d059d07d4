package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ovenly/api/internal/database"
	"github.com/ovenly/api/internal/lock"
	"github.com/ovenly/api/internal/orderstate"
	"github.com/ovenly/api/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InternalOrderServicer defines the service methods needed by internal order handlers.
// Satisfied by *service.InternalOrderService; narrow interface for testability.
type InternalOrderServicer interface {
	Create(ctx context.Context, actor service.Actor, req service.CreateInternalOrderRequest) (*service.InternalOrderResult, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*service.InternalOrderResult, error)
	List(ctx context.Context, tenantID uuid.UUID, f service.ListInternalOrdersFilter) ([]database.InternalOrder, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, req service.UpdateInternalOrderRequest) (*service.InternalOrderResult, error)
	Transition(ctx context.Context, actor service.Actor, id uuid.UUID, target string) (*database.InternalOrder, error)
	RecordOutcome(ctx context.Context, actor service.Actor, id uuid.UUID, req service.OutcomeRequest) (*database.InternalOrder, error)
	Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error
}

// LockServicer defines the lock operations exposed over HTTP.
// Satisfied by *service.LockService.
type LockServicer interface {
	Acquire(ctx context.Context, actor service.Actor, kind lock.Kind, orderID uuid.UUID) (lock.Lock, bool, error)
	Release(ctx context.Context, actor service.Actor, kind lock.Kind, orderID uuid.UUID) error
	Lookup(ctx context.Context, tenantID uuid.UUID, kind lock.Kind, orderID uuid.UUID) (*lock.Lock, error)
	Cleanup(ctx context.Context, actor service.Actor) (int, error)
}

// InternalOrderHandler handles internal production order endpoints.
type InternalOrderHandler struct {
	svc    InternalOrderServicer
	locks  LockServicer
	logger *zap.Logger
}

// NewInternalOrderHandler creates a new InternalOrderHandler.
func NewInternalOrderHandler(svc InternalOrderServicer, locks LockServicer, logger *zap.Logger) *InternalOrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalOrderHandler{svc: svc, locks: locks, logger: logger}
}

// RegisterRoutes registers internal order endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/internal-orders
func (h *InternalOrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/status", h.Transition)
	r.Post("/{id}/outcome", h.RecordOutcome)
	r.Post("/{id}/lock", h.AcquireLock)
	r.Get("/{id}/lock", h.LockStatus)
	r.Delete("/{id}/lock", h.ReleaseLock)
}

// --- Request / Response types ---

type createInternalOrderRequest struct {
	Source         string                           `json:"source"`
	Priority       string                           `json:"priority"`
	RequesterName  string                           `json:"requester_name"`
	RequesterEmail string                           `json:"requester_email"`
	Department     string                           `json:"department"`
	NeededBy       string                           `json:"needed_by"`
	TargetQuantity *int32                           `json:"target_quantity"`
	Recurrence     *recurrenceRequest               `json:"recurrence"`
	Notes          string                           `json:"notes"`
	Items          []createInternalOrderItemRequest `json:"items"`
}

type createInternalOrderItemRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	UnitCost       string `json:"unit_cost"`
	Customizations string `json:"customizations"`
	Instructions   string `json:"instructions"`
}

type recurrenceRequest struct {
	Frequency string `json:"frequency"`
	EndDate   string `json:"end_date"`
}

type updateInternalOrderRequest struct {
	Priority        *string            `json:"priority"`
	RequesterName   *string            `json:"requester_name"`
	RequesterEmail  *string            `json:"requester_email"`
	Department      *string            `json:"department"`
	NeededBy        *string            `json:"needed_by"`
	ProductionShift *string            `json:"production_shift"`
	BatchNumber     *string            `json:"batch_number"`
	AssignedTo      *string            `json:"assigned_to"`
	Workstation     *string            `json:"workstation"`
	TargetQuantity  *int32             `json:"target_quantity"`
	Notes           *string            `json:"notes"`
	Recurrence      *recurrenceRequest `json:"recurrence"`
	ClearRecurrence bool               `json:"clear_recurrence"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type outcomeRequest struct {
	ActualQuantity *int32  `json:"actual_quantity"`
	WasteQuantity  *int32  `json:"waste_quantity"`
	QualityNotes   *string `json:"quality_notes"`
}

type internalOrderResponse struct {
	ID                  uuid.UUID                   `json:"id"`
	TenantID            uuid.UUID                   `json:"tenant_id"`
	OrderNumber         string                      `json:"order_number"`
	Source              string                      `json:"source"`
	Status              string                      `json:"status"`
	Priority            string                      `json:"priority"`
	RequesterName       string                      `json:"requester_name"`
	RequesterEmail      *string                     `json:"requester_email"`
	Department          string                      `json:"department"`
	NeededBy            *string                     `json:"needed_by"`
	ProductionDate      *string                     `json:"production_date"`
	ProductionShift     *string                     `json:"production_shift"`
	BatchNumber         *string                     `json:"batch_number"`
	AssignedTo          *string                     `json:"assigned_to"`
	Workstation         *string                     `json:"workstation"`
	TargetQuantity      *int32                      `json:"target_quantity"`
	ActualQuantity      *int32                      `json:"actual_quantity"`
	WasteQuantity       *int32                      `json:"waste_quantity"`
	QualityNotes        *string                     `json:"quality_notes"`
	RecurrenceFrequency *string                     `json:"recurrence_frequency"`
	RecurrenceNextDate  *string                     `json:"recurrence_next_date"`
	RecurrenceEndDate   *string                     `json:"recurrence_end_date"`
	Notes               *string                     `json:"notes"`
	CompletedAt         *time.Time                  `json:"completed_at"`
	CreatedBy           uuid.UUID                   `json:"created_by"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Items               []internalOrderItemResponse `json:"items,omitempty"`
}

type internalOrderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int32     `json:"quantity"`
	UnitCost       *string   `json:"unit_cost"`
	Customizations *string   `json:"customizations"`
	Instructions   *string   `json:"instructions"`
}

// internalOrderDetailResponse adds the lock state and next actions for the
// GET detail endpoint.
type internalOrderDetailResponse struct {
	internalOrderResponse
	NextActions []orderstate.Action `json:"next_actions"`
	Lock        lockStatusResponse  `json:"lock"`
}

type internalOrderListResponse struct {
	Orders []internalOrderResponse `json:"orders"`
	Limit  int32                   `json:"limit"`
	Offset int32                   `json:"offset"`
}

// --- Handlers ---

// Create handles POST /tenants/{tid}/internal-orders.
func (h *InternalOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req createInternalOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "product_id is required")})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "quantity must be > 0")})
			return
		}
	}

	if req.NeededBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "needed_by is required"})
		return
	}
	neededBy, err := time.Parse(dateLayout, req.NeededBy)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid needed_by format, use YYYY-MM-DD"})
		return
	}

	recurrence, err := toRecurrence(req.Recurrence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	items := make([]service.CreateInternalOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateInternalOrderItemRequest{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitCost:       item.UnitCost,
			Customizations: item.Customizations,
			Instructions:   item.Instructions,
		}
	}

	result, err := h.svc.Create(r.Context(), actor, service.CreateInternalOrderRequest{
		Source:         req.Source,
		Priority:       req.Priority,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		Department:     req.Department,
		NeededBy:       neededBy,
		TargetQuantity: req.TargetQuantity,
		Recurrence:     recurrence,
		Notes:          req.Notes,
		Items:          items,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "create internal order")
		return
	}

	writeJSON(w, http.StatusCreated, toInternalOrderResponse(result.Order, result.Items))
}

// List handles GET /tenants/{tid}/internal-orders.
func (h *InternalOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := service.ListInternalOrdersFilter{Status: q.Get("status")}
	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			f.Limit = int32(v)
		}
	}
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			f.Offset = int32(v)
		}
	}
	date, err := parseOptionalDate(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}
	f.Date = date

	orders, err := h.svc.List(r.Context(), actor.TenantID, f)
	if err != nil {
		writeServiceError(w, h.logger, err, "list internal orders")
		return
	}

	resp := make([]internalOrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toInternalOrderResponse(o, nil)
	}
	writeJSON(w, http.StatusOK, internalOrderListResponse{Orders: resp, Limit: f.Limit, Offset: f.Offset})
}

// Get handles GET /tenants/{tid}/internal-orders/{id}.
func (h *InternalOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return
	}

	result, err := h.svc.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get internal order")
		return
	}

	l, err := h.locks.Lookup(r.Context(), actor.TenantID, lock.KindInternal, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "lookup internal order lock")
		return
	}

	writeJSON(w, http.StatusOK, internalOrderDetailResponse{
		internalOrderResponse: toInternalOrderResponse(result.Order, result.Items),
		NextActions:           orderstate.NextActions(result.Order.Status),
		Lock:                  toLockStatus(l, actor.UserID),
	})
}

// Update handles PATCH /tenants/{tid}/internal-orders/{id}.
func (h *InternalOrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req updateInternalOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var neededBy *time.Time
	if req.NeededBy != nil {
		t, err := time.Parse(dateLayout, *req.NeededBy)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid needed_by format, use YYYY-MM-DD"})
			return
		}
		neededBy = &t
	}
	recurrence, err := toRecurrence(req.Recurrence)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.svc.Update(r.Context(), actor, id, service.UpdateInternalOrderRequest{
		Priority:        req.Priority,
		RequesterName:   req.RequesterName,
		RequesterEmail:  req.RequesterEmail,
		Department:      req.Department,
		NeededBy:        neededBy,
		ProductionShift: req.ProductionShift,
		BatchNumber:     req.BatchNumber,
		AssignedTo:      req.AssignedTo,
		Workstation:     req.Workstation,
		TargetQuantity:  req.TargetQuantity,
		Notes:           req.Notes,
		Recurrence:      recurrence,
		ClearRecurrence: req.ClearRecurrence,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "update internal order")
		return
	}

	writeJSON(w, http.StatusOK, toInternalOrderResponse(result.Order, result.Items))
}

// Transition handles POST /tenants/{tid}/internal-orders/{id}/status.
func (h *InternalOrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.Transition(r.Context(), actor, id, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "transition internal order")
		return
	}

	writeJSON(w, http.StatusOK, toInternalOrderResponse(*order, nil))
}

// RecordOutcome handles POST /tenants/{tid}/internal-orders/{id}/outcome.
func (h *InternalOrderHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.RecordOutcome(r.Context(), actor, id, service.OutcomeRequest{
		ActualQuantity: req.ActualQuantity,
		WasteQuantity:  req.WasteQuantity,
		QualityNotes:   req.QualityNotes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "record production outcome")
		return
	}

	writeJSON(w, http.StatusOK, toInternalOrderResponse(*order, nil))
}

// Delete handles DELETE /tenants/{tid}/internal-orders/{id}.
func (h *InternalOrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err, "delete internal order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcquireLock handles POST /tenants/{tid}/internal-orders/{id}/lock.
func (h *InternalOrderHandler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.existingOrder(w, r)
	if !ok {
		return
	}

	l, acquired, err := h.locks.Acquire(r.Context(), actor, lock.KindInternal, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "acquire internal order lock")
		return
	}
	resp := toLockResponse(l)
	writeJSON(w, http.StatusOK, acquireResponse{Acquired: acquired, Lock: &resp})
}

// LockStatus handles GET /tenants/{tid}/internal-orders/{id}/lock.
func (h *InternalOrderHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.existingOrder(w, r)
	if !ok {
		return
	}

	l, err := h.locks.Lookup(r.Context(), actor.TenantID, lock.KindInternal, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "lookup internal order lock")
		return
	}
	writeJSON(w, http.StatusOK, toLockStatus(l, actor.UserID))
}

// ReleaseLock handles DELETE /tenants/{tid}/internal-orders/{id}/lock.
func (h *InternalOrderHandler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.existingOrder(w, r)
	if !ok {
		return
	}

	if err := h.locks.Release(r.Context(), actor, lock.KindInternal, id); err != nil {
		writeServiceError(w, h.logger, err, "release internal order lock")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// existingOrder resolves the actor and {id}, answering 404 when the order is
// not in the caller's tenant.
func (h *InternalOrderHandler) existingOrder(w http.ResponseWriter, r *http.Request) (service.Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return service.Actor{}, uuid.Nil, false
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return service.Actor{}, uuid.Nil, false
	}
	if _, err := h.svc.Get(r.Context(), actor.TenantID, id); err != nil {
		writeServiceError(w, h.logger, err, "get internal order")
		return service.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", idx, msg)
}

func toRecurrence(req *recurrenceRequest) (*service.RecurrenceRequest, error) {
	if req == nil {
		return nil, nil
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid recurrence end_date format, use YYYY-MM-DD")
	}
	return &service.RecurrenceRequest{Frequency: req.Frequency, EndDate: end}, nil
}

func toInternalOrderResponse(o database.InternalOrder, items []database.InternalOrderItem) internalOrderResponse {
	resp := internalOrderResponse{
		ID:                  o.ID,
		TenantID:            o.TenantID,
		OrderNumber:         o.OrderNumber,
		Source:              string(o.Source),
		Status:              string(o.Status),
		Priority:            string(o.Priority),
		RequesterName:       o.RequesterName,
		RequesterEmail:      textPtr(o.RequesterEmail),
		Department:          o.Department,
		NeededBy:            dateString(o.NeededBy),
		ProductionDate:      dateString(o.ProductionDate),
		ProductionShift:     textPtr(o.ProductionShift),
		BatchNumber:         textPtr(o.BatchNumber),
		AssignedTo:          textPtr(o.AssignedTo),
		Workstation:         textPtr(o.Workstation),
		TargetQuantity:      int4Ptr(o.TargetQuantity),
		ActualQuantity:      int4Ptr(o.ActualQuantity),
		WasteQuantity:       int4Ptr(o.WasteQuantity),
		QualityNotes:        textPtr(o.QualityNotes),
		RecurrenceFrequency: textPtr(o.RecurrenceFrequency),
		RecurrenceNextDate:  dateString(o.RecurrenceNextDate),
		RecurrenceEndDate:   dateString(o.RecurrenceEndDate),
		Notes:               textPtr(o.Notes),
		CreatedBy:           o.CreatedBy,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if o.CompletedAt.Valid {
		t := o.CompletedAt.Time
		resp.CompletedAt = &t
	}
	if items != nil {
		resp.Items = make([]internalOrderItemResponse, len(items))
		for i, item := range items {
			var unitCost *string
			if item.UnitCost.Valid {
				s := numericToString(item.UnitCost)
				unitCost = &s
			}
			resp.Items[i] = internalOrderItemResponse{
				ID:             item.ID,
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				Quantity:       item.Quantity,
				UnitCost:       unitCost,
				Customizations: textPtr(item.Customizations),
				Instructions:   textPtr(item.Instructions),
			}
		}
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "0"
	}
	return decimal.NewFromBigInt(n.Int, n.Exp).String()
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func int4Ptr(v pgtype.Int4) *int32 {
	if !v.Valid {
		return nil
	}
	return &v.Int32
}

func dateString(d pgtype.Date) *string {
	if !d.Valid {
		return nil
	}
	s := d.Time.Format(dateLayout)
	return &s
}
