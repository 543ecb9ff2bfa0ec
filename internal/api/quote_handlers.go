package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/homzhub/ticket-engine/internal/attachments"
	"github.com/homzhub/ticket-engine/internal/quote"
)

// maxDocumentSize caps a single staged quote document
const maxDocumentSize = 20 << 20 // 20 MiB

// handleQuoteSession starts the quote wizard for a ticket, or returns the
// session already in progress
func (s *Server) handleQuoteSession(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	sess, err := s.quotes.Start(r.Context(), ticketID)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

type setPriceRequest struct {
	Price string `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	groupID := chi.URLParam(r, "group")

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "quote number must be an integer")
		return
	}

	var req setPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess, err := s.quotes.SetPrice(r.Context(), ticketID, groupID, number, req.Price)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	groupID := chi.URLParam(r, "group")

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "quote number must be an integer")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	sess, err := s.quotes.AttachDocument(r.Context(), ticketID, groupID, number,
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	groupID := chi.URLParam(r, "group")

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "quote number must be an integer")
		return
	}

	sess, err := s.quotes.RemoveDocument(r.Context(), ticketID, groupID, number)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	sess, err := s.quotes.Advance(r.Context(), ticketID)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

type submitQuotesRequest struct {
	Comment string `json:"comment,omitempty"`
}

func (s *Server) handleSubmitQuotes(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	quoteRequestID := chi.URLParam(r, "quoteRequestID")

	// the body is optional; an absent one means no comment
	var req submitQuotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess, err := s.quotes.Get(r.Context(), ticketID)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}
	if sess.QuoteRequestID != quoteRequestID {
		respondError(w, http.StatusConflict, "stale_quote_request", "the quote request is no longer open")
		return
	}

	submission, err := s.quotes.Submit(r.Context(), ticketID, req.Comment)
	if err != nil {
		s.respondQuoteError(w, err, ticketID)
		return
	}

	respondJSON(w, http.StatusCreated, submission)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	quoteRequestID := chi.URLParam(r, "quoteRequestID")

	submission, err := s.repo.GetQuoteSubmission(r.Context(), quoteRequestID)
	if err != nil {
		slog.Error("failed to get quote submission", "error", err, "quote_request_id", quoteRequestID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get submission")
		return
	}
	if submission == nil {
		respondError(w, http.StatusNotFound, "not_found", "no submission for this quote request")
		return
	}

	respondJSON(w, http.StatusOK, submission)
}

// respondQuoteError maps workflow sentinel errors to HTTP responses
func (s *Server) respondQuoteError(w http.ResponseWriter, err error, ticketID string) {
	switch {
	case errors.Is(err, quote.ErrTicketNotFound):
		respondError(w, http.StatusNotFound, "not_found", "ticket not found")
	case errors.Is(err, quote.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", "no quote session in progress")
	case errors.Is(err, quote.ErrQuoteNotRequested):
		respondError(w, http.StatusConflict, "quote_not_requested", "ticket has no open quote request")
	case errors.Is(err, quote.ErrSlotNotFound):
		respondError(w, http.StatusNotFound, "slot_not_found", "quote slot not found")
	case errors.Is(err, quote.ErrIncompleteSlots):
		respondError(w, http.StatusUnprocessableEntity, "incomplete_slots", quote.ErrIncompleteSlots.Error())
	case errors.Is(err, quote.ErrLastCategory):
		respondError(w, http.StatusConflict, "last_category", "already on the last category")
	case errors.Is(err, quote.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid_price", err.Error())
	case errors.Is(err, attachments.ErrFileCorrupt):
		respondError(w, http.StatusUnprocessableEntity, "file_corrupt", err.Error())
	default:
		slog.Error("quote workflow error", "error", err, "ticket_id", ticketID)
		respondError(w, http.StatusInternalServerError, "internal_error", "quote workflow error")
	}
}
