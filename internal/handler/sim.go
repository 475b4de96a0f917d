package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/internal/simpool"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

// SimHandler is the admin surface of the resource pool.
type SimHandler struct {
	service   *simpool.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewSimHandler(service *simpool.Service, val *validator.Validator, log logger.Logger) *SimHandler {
	return &SimHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

func (h *SimHandler) List(w http.ResponseWriter, r *http.Request) {
	sims, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resources": sims,
		"count":     len(sims),
	})
}

func (h *SimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req simpool.CreateResourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	res, err := h.service.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// SetStatus is the admin recovery path; resuming a paused SIM goes through
// here.
func (h *SimHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid resource ID")
		return
	}

	var req struct {
		Status domain.ResourceStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetStatus(r.Context(), id, req.Status); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}

func (h *SimHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid resource ID")
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.TopUp(r.Context(), id, req.Amount); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "resource topped up"})
}

func (h *SimHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	unackedOnly, _ := strconv.ParseBool(r.URL.Query().Get("unacked"))
	alerts, err := h.service.Alerts(r.Context(), unackedOnly)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *SimHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid alert ID")
		return
	}
	if err := h.service.AcknowledgeAlert(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "alert acknowledged"})
}
