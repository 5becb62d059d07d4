package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ovenly/api/internal/lock"
	"go.uber.org/zap"
)

// LockHandler exposes edit locks for any order kind. Customer orders live in
// another system, so only the lock registry is consulted here.
type LockHandler struct {
	locks  LockServicer
	logger *zap.Logger
}

func NewLockHandler(locks LockServicer, logger *zap.Logger) *LockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockHandler{locks: locks, logger: logger}
}

// RegisterRoutes registers lock endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/locks
func (h *LockHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/", h.Cleanup)
	r.Post("/{kind}/{id}", h.Acquire)
	r.Get("/{kind}/{id}", h.Status)
	r.Delete("/{kind}/{id}", h.Release)
}

type cleanupResponse struct {
	Released int `json:"released"`
}

// Acquire handles POST /tenants/{tid}/locks/{kind}/{id}.
func (h *LockHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	kind, id, ok := parseLockTarget(w, r)
	if !ok {
		return
	}

	l, acquired, err := h.locks.Acquire(r.Context(), actor, kind, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "acquire lock")
		return
	}
	resp := toLockResponse(l)
	writeJSON(w, http.StatusOK, acquireResponse{Acquired: acquired, Lock: &resp})
}

// Status handles GET /tenants/{tid}/locks/{kind}/{id}.
func (h *LockHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	kind, id, ok := parseLockTarget(w, r)
	if !ok {
		return
	}

	l, err := h.locks.Lookup(r.Context(), actor.TenantID, kind, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "lookup lock")
		return
	}
	writeJSON(w, http.StatusOK, toLockStatus(l, actor.UserID))
}

// Release handles DELETE /tenants/{tid}/locks/{kind}/{id}.
func (h *LockHandler) Release(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	kind, id, ok := parseLockTarget(w, r)
	if !ok {
		return
	}

	if err := h.locks.Release(r.Context(), actor, kind, id); err != nil {
		writeServiceError(w, h.logger, err, "release lock")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cleanup handles DELETE /tenants/{tid}/locks: releases every lock taken in the
// caller's session, e.g. on logout or tab close.
func (h *LockHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	n, err := h.locks.Cleanup(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err, "cleanup session locks")
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Released: n})
}

func parseLockTarget(w http.ResponseWriter, r *http.Request) (lock.Kind, uuid.UUID, bool) {
	kind := lock.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": lock.ErrInvalidKind.Error()})
		return "", uuid.Nil, false
	}
	id, ok := parseID(w, r, "id", "order ID")
	if !ok {
		return "", uuid.Nil, false
	}
	return kind, id, true
}
