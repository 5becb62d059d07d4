package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ovenly/api/internal/scaling"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecipeServicer defines the recipe reads needed by recipe handlers.
// Satisfied by *service.RecipeService.
type RecipeServicer interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (scaling.Recipe, error)
	Scaled(ctx context.Context, tenantID, id uuid.UUID, quantity decimal.Decimal) (scaling.ScaledRecipe, error)
}

// RecipeHandler handles recipe endpoints.
type RecipeHandler struct {
	svc    RecipeServicer
	logger *zap.Logger
}

func NewRecipeHandler(svc RecipeServicer, logger *zap.Logger) *RecipeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipeHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers recipe endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/recipes
func (h *RecipeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Get("/{id}/scaled", h.Scaled)
}

// Get handles GET /tenants/{tid}/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "recipe ID")
	if !ok {
		return
	}

	recipe, err := h.svc.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get recipe")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// Scaled handles GET /tenants/{tid}/recipes/{id}/scaled?quantity=N.
func (h *RecipeHandler) Scaled(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id", "recipe ID")
	if !ok {
		return
	}

	s := r.URL.Query().Get("quantity")
	if s == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity is required"})
		return
	}
	quantity, err := decimal.NewFromString(s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}

	scaled, err := h.svc.Scaled(r.Context(), actor.TenantID, id, quantity)
	if err != nil {
		writeServiceError(w, h.logger, err, "scale recipe")
		return
	}
	writeJSON(w, http.StatusOK, scaled)
}
