package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ovenly/api/internal/lock"
	"github.com/ovenly/api/internal/middleware"
	"github.com/ovenly/api/internal/orderstate"
	"github.com/ovenly/api/internal/scaling"
	"github.com/ovenly/api/internal/service"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

// actorFrom builds the acting staff member from the token. RequireTenant has
// already matched the token tenant against {tid}.
func actorFrom(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return service.Actor{}, false
	}
	return service.Actor{
		TenantID:  claims.TenantID,
		UserID:    claims.UserID,
		Name:      claims.Name,
		SessionID: claims.SessionID(),
	}, true
}

func parseID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + what})
		return uuid.Nil, false
	}
	return id, true
}

// parseDateQuery reads a required YYYY-MM-DD query parameter.
func parseDateQuery(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": key + " is required"})
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + key + " format, use YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type lockedResponse struct {
	Error string        `json:"error"`
	Lock  *lockResponse `json:"lock"`
}

type recipeMissingResponse struct {
	Error       string    `json:"error"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
}

// writeServiceError maps service errors to status codes. Anything unknown is
// logged and answered with 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, op string) {
	var locked *lock.LockedError
	var missing *service.RecipeMissingError

	switch {
	case errors.As(err, &locked):
		resp := toLockResponse(locked.Lock)
		writeJSON(w, http.StatusForbidden, lockedResponse{Error: err.Error(), Lock: &resp})
	case errors.Is(err, lock.ErrNotLockHolder):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, recipeMissingResponse{
			Error:       err.Error(),
			ProductID:   missing.ProductID,
			ProductName: missing.ProductName,
		})
	case errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, lock.ErrAcquireContended),
		errors.Is(err, service.ErrNotDeletable),
		errors.Is(err, service.ErrOrderClosed),
		errors.Is(err, service.ErrOutcomeNotAllowed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, orderstate.ErrInvalidTransition) ||
		errors.Is(err, scaling.ErrInvalidYield) ||
		errors.Is(err, lock.ErrInvalidKind) ||
		errors.Is(err, service.ErrUseSchedule) ||
		errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrInvalidSource) ||
		errors.Is(err, service.ErrInvalidPriority) ||
		errors.Is(err, service.ErrRequesterRequired) ||
		errors.Is(err, service.ErrDepartmentRequired) ||
		errors.Is(err, service.ErrNeededByRequired) ||
		errors.Is(err, service.ErrInvalidRecurrence) ||
		errors.Is(err, service.ErrInvalidShift) ||
		errors.Is(err, service.ErrInvalidUnitCost) ||
		errors.Is(err, service.ErrProductionDate) ||
		errors.Is(err, service.ErrNegativeQuantity) ||
		errors.Is(err, service.ErrInvalidStatus)
}

// --- Shared responses ---

type lockResponse struct {
	OrderID    uuid.UUID `json:"order_id"`
	Kind       lock.Kind `json:"kind"`
	HolderID   uuid.UUID `json:"holder_id"`
	HolderName string    `json:"holder_name"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toLockResponse(l lock.Lock) lockResponse {
	return lockResponse{
		OrderID:    l.Key.OrderID,
		Kind:       l.Key.Kind,
		HolderID:   l.Holder.UserID,
		HolderName: l.Holder.Name,
		AcquiredAt: l.AcquiredAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

// acquireResponse reports a lock attempt. A busy lock is a normal outcome:
// Acquired is false and Lock names the current holder.
type acquireResponse struct {
	Acquired bool          `json:"acquired"`
	Lock     *lockResponse `json:"lock"`
}

type lockStatusResponse struct {
	Locked     bool          `json:"locked"`
	LockedByMe bool          `json:"locked_by_me"`
	Lock       *lockResponse `json:"lock"`
}

func toLockStatus(l *lock.Lock, me uuid.UUID) lockStatusResponse {
	if l == nil {
		return lockStatusResponse{}
	}
	resp := toLockResponse(*l)
	return lockStatusResponse{Locked: true, LockedByMe: l.Holder.UserID == me, Lock: &resp}
}
