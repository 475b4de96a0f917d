package handler

import (
	"net/http"

	"vtu/internal/auth"
	"vtu/internal/middleware"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

// AuthHandler manages registration, login, and account self-service.
type AuthHandler struct {
	service   *auth.Service
	validator *validator.Validator
	logger    logger.Logger
	uploadDir string
}

func NewAuthHandler(service *auth.Service, val *validator.Validator, log logger.Logger, uploadDir string) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: val,
		logger:    log,
		uploadDir: uploadDir,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	user, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile accepts multipart form data so the avatar can ride along with
// the field updates.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondValidation(w, "Invalid multipart form")
		return
	}

	req := &auth.UpdateProfileRequest{}
	if v := r.FormValue("full_name"); v != "" {
		req.FullName = &v
	}
	if v := r.FormValue("phone"); v != "" {
		req.Phone = &v
	}
	if file, header, err := r.FormFile("avatar"); err == nil {
		defer file.Close()
		path, err := saveUpload(file, header, h.uploadDir+"/avatars")
		if err != nil {
			respondValidation(w, err.Error())
			return
		}
		req.Avatar = &path
	}

	if err := h.validator.Validate(req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req auth.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, &req); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AuthHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	setup, err := h.service.SetupTOTP(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, setup)
}

func (h *AuthHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code" validate:"required,len=6"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	if err := h.service.VerifyTOTP(r.Context(), userID, req.Code); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "totp enabled"})
}
