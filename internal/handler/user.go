package handler

import (
	"net/http"

	"vtu/internal/auth"
	"vtu/internal/middleware"
	"vtu/internal/referral"
	"vtu/pkg/logger"
)

// UserHandler serves reseller self-service: API keys and affiliate stats.
type UserHandler struct {
	auth     *auth.Service
	referral *referral.Service
	logger   logger.Logger
}

func NewUserHandler(authSvc *auth.Service, referralSvc *referral.Service, log logger.Logger) *UserHandler {
	return &UserHandler{
		auth:     authSvc,
		referral: referralSvc,
		logger:   log,
	}
}

// GetAPIKey returns the active key's metadata. The raw key is never
// retrievable after rotation.
func (h *UserHandler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	key, err := h.auth.GetAPIKey(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, key)
}

func (h *UserHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	raw, key, err := h.auth.RotateAPIKey(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"api_key": raw,
		"prefix":  key.Prefix,
		"note":    "store this key now; it is shown only once",
	})
}

func (h *UserHandler) AffiliateStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	stats, err := h.referral.Stats(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
