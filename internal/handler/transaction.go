package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/dispatch"
	"vtu/internal/domain"
	"vtu/internal/middleware"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

// TransactionHandler fronts the fulfillment dispatcher.
type TransactionHandler struct {
	service   *dispatch.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewTransactionHandler(service *dispatch.Service, val *validator.Validator, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

func (h *TransactionHandler) Fund(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.FundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.InitiateFund(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// ConfirmFund is the gateway confirmation path; admin-only in lieu of a
// webhook signature scheme.
func (h *TransactionHandler) ConfirmFund(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid transaction ID")
		return
	}

	var req struct {
		ProviderRef string `json:"provider_ref"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.service.ConfirmFund(r.Context(), txID, req.ProviderRef)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) BuyData(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.DataRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.PurchaseData(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) BuyAirtime(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.AirtimeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.PurchaseAirtime(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.BillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.PayBill(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// BuyResultChecker returns generated card pins in the creation response only.
func (h *TransactionHandler) BuyResultChecker(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.ResultCheckerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.PurchaseResultChecker(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) SendBulkSMS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req dispatch.BulkSMSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	tx, err := h.service.SendBulkSMS(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) My(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	limit, offset := pagination(r)
	txs, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	txID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid transaction ID")
		return
	}

	tx, err := h.service.Get(r.Context(), txID)
	if err != nil {
		respondError(w, err)
		return
	}

	role, _ := middleware.RoleFromContext(r.Context())
	if tx.UserID != userID && role != domain.RoleAdmin {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found", "kind": "not_found"})
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// Stats serves a user's dashboard numbers. Users can only read their own;
// admins can read anyone's.
func (h *TransactionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	targetID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		respondValidation(w, "Invalid user ID")
		return
	}

	role, _ := middleware.RoleFromContext(r.Context())
	if targetID != callerID && role != domain.RoleAdmin {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "kind": "forbidden"})
		return
	}

	stats, err := h.service.StatsByUser(r.Context(), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
