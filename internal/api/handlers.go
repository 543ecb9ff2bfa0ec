package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/homzhub/ticket-engine/internal/models"
	"github.com/homzhub/ticket-engine/internal/ticket"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Catalog handlers

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.List())
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	category := s.catalog.Get(id)
	if category == nil {
		respondError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}

	respondJSON(w, http.StatusOK, category)
}

// Ticket handlers

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	principal := PrincipalFromContext(r.Context())
	createdBy := principal.Subject

	created, err := s.tickets.Create(r.Context(), req, createdBy)
	if err != nil {
		if errors.Is(err, ticket.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		slog.Error("failed to create ticket", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create ticket")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := s.tickets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		slog.Error("failed to get ticket", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get ticket")
		return
	}

	respondJSON(w, http.StatusOK, ticketResponse(t))
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filters := models.TicketFilters{
		Status:    models.TicketStatus(r.URL.Query().Get("status")),
		Category:  r.URL.Query().Get("category"),
		CreatedBy: r.URL.Query().Get("created_by"),
		Assignee:  r.URL.Query().Get("assignee"),
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filters.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n > 0 {
			filters.Offset = n
		}
	}

	tickets, err := s.tickets.List(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list tickets", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list tickets")
		return
	}

	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	respondJSON(w, http.StatusOK, tickets)
}

// handleTicketAction applies one status-mutating action from the
// {action, payload} envelope and returns the re-fetched ticket
func (s *Server) handleTicketAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.TicketActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "action is required")
		return
	}

	updated, err := s.tickets.Apply(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrTicketNotFound):
			respondError(w, http.StatusNotFound, "not_found", "ticket not found")
		case errors.Is(err, ticket.ErrActionNotAllowed):
			respondError(w, http.StatusConflict, "action_not_allowed", err.Error())
		case errors.Is(err, ticket.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			slog.Error("failed to apply ticket action", "error", err, "id", id, "action", req.Action)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to apply action")
		}
		return
	}

	respondJSON(w, http.StatusOK, ticketResponse(updated))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.tickets.Get(r.Context(), id); err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		slog.Error("failed to get ticket", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get ticket")
		return
	}

	reviews, err := s.repo.ListReviews(r.Context(), id)
	if err != nil {
		slog.Error("failed to list reviews", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list reviews")
		return
	}

	if reviews == nil {
		reviews = []*models.Review{}
	}
	respondJSON(w, http.StatusOK, reviews)
}

// ticketDetail is the ticket aggregate plus the actions currently available
// against it, so callers render buttons from server state instead of
// computing them
type ticketDetail struct {
	*models.Ticket
	AvailableActions []models.TicketAction `json:"available_actions"`
}

func ticketResponse(t *models.Ticket) ticketDetail {
	actions := t.AvailableActions()
	if actions == nil {
		actions = []models.TicketAction{}
	}
	return ticketDetail{Ticket: t, AvailableActions: actions}
}
