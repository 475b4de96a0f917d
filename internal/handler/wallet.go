package handler

import (
	"net/http"

	"vtu/internal/middleware"
	"vtu/internal/wallet"
	"vtu/pkg/logger"
)

// WalletHandler serves balance and ledger queries. All movement happens
// through the dispatcher; there is no direct debit/credit endpoint.
type WalletHandler struct {
	service *wallet.Service
	logger  logger.Logger
}

func NewWalletHandler(service *wallet.Service, log logger.Logger) *WalletHandler {
	return &WalletHandler{service: service, logger: log}
}

// Balance reports the recomputed balance so clients always see the ledger's
// truth, not a possibly stale cached figure.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	balance, err := h.service.RecomputeBalance(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"balance":  balance,
		"currency": "NGN",
	})
}

func (h *WalletHandler) Entries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	limit, offset := pagination(r)
	entries, err := h.service.Entries(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
