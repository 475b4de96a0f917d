package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vtu/internal/domain"
	"vtu/internal/middleware"
	"vtu/internal/support"
	"vtu/pkg/logger"
	"vtu/pkg/validator"
)

type SupportHandler struct {
	service   *support.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewSupportHandler(service *support.Service, val *validator.Validator, log logger.Logger) *SupportHandler {
	return &SupportHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

func (h *SupportHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req support.CreateTicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	ticket, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ticket)
}

func (h *SupportHandler) My(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	tickets, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

func (h *SupportHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	tickets, err := h.service.ListAll(r.Context(), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"count":   len(tickets),
	})
}

// Reply posts the admin response; it reopens the ticket.
func (h *SupportHandler) Reply(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	ticketID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid ticket ID")
		return
	}

	var req struct {
		Response string `json:"response" validate:"required,max=5000"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		respondValidation(w, err.Error())
		return
	}

	ticket, err := h.service.Reply(r.Context(), ticketID, adminID, req.Response)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func (h *SupportHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondValidation(w, "Invalid ticket ID")
		return
	}

	var req struct {
		Status domain.TicketStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ticket, err := h.service.SetStatus(r.Context(), ticketID, req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}
