package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/kyc"
	"vtu/internal/middleware"
	"vtu/pkg/logger"
)

// KycHandler covers user submission and admin review of identity documents.
type KycHandler struct {
	service   *kyc.Service
	logger    logger.Logger
	uploadDir string
}

func NewKycHandler(service *kyc.Service, log logger.Logger, uploadDir string) *KycHandler {
	return &KycHandler{
		service:   service,
		logger:    log,
		uploadDir: uploadDir,
	}
}

// Submit accepts a multipart document upload and opens a review round.
func (h *KycHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondValidation(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		respondValidation(w, "document file is required")
		return
	}
	defer file.Close()

	path, err := saveUpload(file, header, h.uploadDir+"/kyc")
	if err != nil {
		respondValidation(w, err.Error())
		return
	}

	sub, err := h.service.Submit(r.Context(), userID, path)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *KycHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sub, err := h.service.Latest(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (h *KycHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	subs, err := h.service.Pending(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"count":       len(subs),
	})
}

func (h *KycHandler) Approve(w http.ResponseWriter, r *http.Request) {
	targetID, reviewerID, ok := h.reviewParties(w, r)
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), targetID, reviewerID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "kyc approved"})
}

func (h *KycHandler) Reject(w http.ResponseWriter, r *http.Request) {
	targetID, reviewerID, ok := h.reviewParties(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Reject(r.Context(), targetID, reviewerID, req.Reason); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "kyc rejected"})
}

func (h *KycHandler) Reset(w http.ResponseWriter, r *http.Request) {
	targetID, reviewerID, ok := h.reviewParties(w, r)
	if !ok {
		return
	}
	if err := h.service.Reset(r.Context(), targetID, reviewerID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "kyc reset"})
}

func (h *KycHandler) reviewParties(w http.ResponseWriter, r *http.Request) (target, reviewer uuid.UUID, ok bool) {
	reviewer, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	target, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid user ID")
		return uuid.Nil, uuid.Nil, false
	}
	return target, reviewer, true
}
