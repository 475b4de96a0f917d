package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/beneficiary"
	"vtu/internal/middleware"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

type BeneficiaryHandler struct {
	service   *beneficiary.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewBeneficiaryHandler(service *beneficiary.Service, val *validator.Validator, log logger.Logger) *BeneficiaryHandler {
	return &BeneficiaryHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	list, err := h.service.List(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"beneficiaries": list,
		"count":         len(list),
	})
}

func (h *BeneficiaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req beneficiary.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	b, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (h *BeneficiaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid beneficiary ID")
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "beneficiary removed"})
}
