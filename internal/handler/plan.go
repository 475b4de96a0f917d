package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/domain"
	"vtu/internal/plan"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

type PlanHandler struct {
	service   *plan.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewPlanHandler(service *plan.Service, val *validator.Validator, log logger.Logger) *PlanHandler {
	return &PlanHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Catalog is the public listing; ?provider= narrows to one network.
func (h *PlanHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	var network *domain.Network
	if v := r.URL.Query().Get("provider"); v != "" {
		n := domain.Network(v)
		switch n {
		case domain.NetworkMTN, domain.NetworkGlo, domain.NetworkAirtel, domain.Network9Mobile:
			network = &n
		default:
			respondValidation(w, "Unknown provider")
			return
		}
	}

	plans, err := h.service.Catalog(r.Context(), network)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"count": len(plans),
	})
}

func (h *PlanHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
		"count": len(plans),
	})
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req plan.CreatePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid plan ID")
		return
	}

	var req plan.UpdatePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}
