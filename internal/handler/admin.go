package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/admin"
	"vtu/internal/domain"
	"vtu/internal/middleware"
	"vtu/pkg/logger"
)

// AdminHandler serves the operator console.
type AdminHandler struct {
	service *admin.Service
	logger  logger.Logger
}

func NewAdminHandler(service *admin.Service, log logger.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: log}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid user ID")
		return
	}

	var req struct {
		Role domain.Role `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetRole(r.Context(), actorID, userID, req.Role); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid user ID")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetActive(r.Context(), actorID, userID, req.Active); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	txs, err := h.service.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

func (h *AdminHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.PutSetting(r.Context(), req.Key, req.Value); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "setting saved"})
}
