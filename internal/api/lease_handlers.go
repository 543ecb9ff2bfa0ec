package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homzhub/ticket-engine/internal/lease"
	"github.com/homzhub/ticket-engine/internal/models"
)

func (s *Server) handleCreateLeaseUnit(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLeaseUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	principal := PrincipalFromContext(r.Context())

	unit, err := s.leases.CreateUnit(r.Context(), req, principal.Subject)
	if err != nil {
		s.respondLeaseError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, unit)
}

func (s *Server) handleGetLeaseUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	unit, err := s.leases.GetUnit(r.Context(), id)
	if err != nil {
		s.respondLeaseError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, unit)
}

func (s *Server) handleListLeaseUnits(w http.ResponseWriter, r *http.Request) {
	propertyID := r.URL.Query().Get("property_id")
	if propertyID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "property_id is required")
		return
	}

	units, err := s.leases.ListUnits(r.Context(), propertyID)
	if err != nil {
		s.respondLeaseError(w, err)
		return
	}

	if units == nil {
		units = []*models.LeaseUnit{}
	}
	respondJSON(w, http.StatusOK, units)
}

func (s *Server) handleAddSpace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var space models.Space
	if err := json.NewDecoder(r.Body).Decode(&space); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	unit, err := s.leases.AddSpace(r.Context(), id, space)
	if err != nil {
		s.respondLeaseError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, unit)
}

func (s *Server) handleSubmitTerm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var term models.LeaseTerm
	if err := json.NewDecoder(r.Body).Decode(&term); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	unit, err := s.leases.SubmitTerm(r.Context(), id, term)
	if err != nil {
		s.respondLeaseError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, unit)
}

func (s *Server) respondLeaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lease.ErrUnitNotFound):
		respondError(w, http.StatusNotFound, "not_found", "lease unit not found")
	case errors.Is(err, lease.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		slog.Error("lease service error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "lease service error")
	}
}
