package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homzhub/ticket-engine/internal/models"
)

var (
	// ErrTicketNotFound is returned when the ticket does not exist
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrActionNotAllowed is returned when the requested action is not
	// applicable in the ticket's current state
	ErrActionNotAllowed = errors.New("action not allowed in current state")

	// ErrInvalidInput is returned for malformed action payloads
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistence surface the ticket service needs
type Repository interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
	ListTickets(ctx context.Context, filters models.TicketFilters) ([]*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	GetQuoteRequest(ctx context.Context, id string) (*models.QuoteRequest, error)
	CreateQuoteRequest(ctx context.Context, qr *models.QuoteRequest) error
	CreateReview(ctx context.Context, r *models.Review) error
}

// CategoryResolver validates that quote categories exist in the catalog
type CategoryResolver interface {
	Resolve(ids []string) ([]models.QuoteCategory, error)
}

// EventSink receives ticket lifecycle events for broadcast
type EventSink interface {
	Publish(event models.TicketEvent)
}

// Service drives the ticket lifecycle. Every action validates the current
// status flags, applies a single mutation, then re-fetches and returns the
// full ticket aggregate; callers never compute the next state themselves.
type Service struct {
	repo       Repository
	categories CategoryResolver
	events     EventSink
	logger     *slog.Logger
}

// NewService creates a ticket service
func NewService(repo Repository, categories CategoryResolver, events EventSink, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		categories: categories,
		events:     events,
		logger:     logger,
	}
}

// Create opens a new ticket in OPEN status
func (s *Service) Create(ctx context.Context, req models.CreateTicketRequest, createdBy string) (*models.Ticket, error) {
	if req.Title == "" || req.PropertyName == "" || req.Category == "" {
		return nil, fmt.Errorf("%w: property_name, title and category are required", ErrInvalidInput)
	}

	now := time.Now()
	ticket := &models.Ticket{
		ID:           uuid.New().String(),
		PropertyName: req.PropertyName,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Status:       models.TicketOpen,
		Currency:     req.Currency,
		Assignee:     req.Assignee,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ticket.Currency == "" {
		ticket.Currency = models.DefaultCurrency
	}
	if ticket.Assignee != "" {
		ticket.FFMStatus = models.FFMPending
	}

	if err := s.repo.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.publish(models.EventTicketCreated, ticket)
	s.logger.Info("ticket created", "ticket_id", ticket.ID, "category", ticket.Category)

	return s.Get(ctx, ticket.ID)
}

// Get returns one ticket
func (s *Service) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

// List returns tickets matching the filters
func (s *Service) List(ctx context.Context, filters models.TicketFilters) ([]*models.Ticket, error) {
	tickets, err := s.repo.ListTickets(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Apply dispatches a status-mutating action against a ticket and returns the
// re-fetched aggregate
func (s *Service) Apply(ctx context.Context, ticketID string, req models.TicketActionRequest) (*models.Ticket, error) {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if !actionAllowed(ticket, req.Action) {
		return nil, fmt.Errorf("%w: %s in status %s (ffm %s)", ErrActionNotAllowed, req.Action, ticket.Status, ticket.FFMStatus)
	}

	switch req.Action {
	case models.ActionCloseTicket:
		err = s.close(ctx, ticket)
	case models.ActionReassign:
		err = s.reassign(ctx, ticket, req.Payload)
	case models.ActionRequestQuote:
		err = s.requestQuote(ctx, ticket, req.Payload)
	case models.ActionApproveQuote:
		err = s.approveQuote(ctx, ticket)
	case models.ActionRequestMoreQuotes:
		err = s.requestMoreQuotes(ctx, ticket, req.Payload)
	case models.ActionAcceptFFM:
		err = s.acceptFFM(ctx, ticket)
	case models.ActionRejectFFM:
		err = s.rejectFFM(ctx, ticket)
	case models.ActionSubmitReview:
		err = s.submitReview(ctx, ticket, req.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, req.Action)
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, ticketID)
}

func actionAllowed(ticket *models.Ticket, action models.TicketAction) bool {
	for _, a := range ticket.AvailableActions() {
		if a == action {
			return true
		}
	}
	return false
}

// transition moves the ticket to next, enforcing the status machine even
// when an action handler is reached through an unexpected path
func transition(ticket *models.Ticket, next models.TicketStatus) error {
	if !ticket.Status.CanTransition(next) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrActionNotAllowed, ticket.Status, next)
	}
	ticket.Status = next
	return nil
}

func (s *Service) close(ctx context.Context, ticket *models.Ticket) error {
	if err := transition(ticket, models.TicketClosed); err != nil {
		return err
	}
	if ticket.FFMStatus == models.FFMAccepted {
		ticket.FFMStatus = models.FFMAcceptedAndClosed
	}
	return s.update(ctx, ticket, models.EventStatusChanged)
}

func (s *Service) reassign(ctx context.Context, ticket *models.Ticket, payload models.ActionPayload) error {
	if payload.Assignee == "" {
		return fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}
	ticket.Assignee = payload.Assignee
	// the newly assigned technician must accept before anything else happens
	ticket.FFMStatus = models.FFMPending
	return s.update(ctx, ticket, models.EventStatusChanged)
}

func (s *Service) requestQuote(ctx context.Context, ticket *models.Ticket, payload models.ActionPayload) error {
	if len(payload.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidInput)
	}
	if _, err := s.categories.Resolve(payload.Categories); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := transition(ticket, models.TicketQuoteRequested); err != nil {
		return err
	}

	request := &models.QuoteRequest{
		ID:         uuid.New().String(),
		TicketID:   ticket.ID,
		Categories: payload.Categories,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateQuoteRequest(ctx, request); err != nil {
		return fmt.Errorf("failed to create quote request: %w", err)
	}

	ticket.QuoteRequestID = request.ID
	return s.update(ctx, ticket, models.EventStatusChanged)
}

func (s *Service) approveQuote(ctx context.Context, ticket *models.Ticket) error {
	if err := transition(ticket, models.TicketQuoteApproved); err != nil {
		return err
	}
	return s.update(ctx, ticket, models.EventStatusChanged)
}

// requestMoreQuotes opens a fresh quoting round. Without explicit categories
// the previous round's categories are reused.
func (s *Service) requestMoreQuotes(ctx context.Context, ticket *models.Ticket, payload models.ActionPayload) error {
	categories := payload.Categories
	if len(categories) == 0 {
		previous, err := s.repo.GetQuoteRequest(ctx, ticket.QuoteRequestID)
		if err != nil {
			return fmt.Errorf("failed to get quote request: %w", err)
		}
		if previous == nil {
			return fmt.Errorf("%w: ticket has no previous quote request", ErrActionNotAllowed)
		}
		categories = previous.Categories
	}
	return s.requestQuote(ctx, ticket, models.ActionPayload{Categories: categories})
}

func (s *Service) acceptFFM(ctx context.Context, ticket *models.Ticket) error {
	ticket.FFMStatus = models.FFMAccepted
	return s.update(ctx, ticket, models.EventStatusChanged)
}

func (s *Service) rejectFFM(ctx context.Context, ticket *models.Ticket) error {
	ticket.FFMStatus = models.FFMRejected
	ticket.Assignee = ""
	return s.update(ctx, ticket, models.EventStatusChanged)
}

func (s *Service) submitReview(ctx context.Context, ticket *models.Ticket, payload models.ActionPayload) error {
	if payload.Rating < 1 || payload.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	review := &models.Review{
		ID:        uuid.New().String(),
		TicketID:  ticket.ID,
		Rating:    payload.Rating,
		Comment:   payload.Comment,
		CreatedBy: ticket.CreatedBy,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	if ticket.FFMStatus == models.FFMAcceptedAndClosed {
		ticket.FFMStatus = models.FFMClosed
	}
	return s.update(ctx, ticket, models.EventReviewSubmitted)
}

func (s *Service) update(ctx context.Context, ticket *models.Ticket, eventType models.TicketEventType) error {
	ticket.UpdatedAt = time.Now()
	if err := s.repo.UpdateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	s.publish(eventType, ticket)
	return nil
}

func (s *Service) publish(eventType models.TicketEventType, ticket *models.Ticket) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.TicketEvent{
		Type:      eventType,
		TicketID:  ticket.ID,
		Status:    ticket.Status,
		FFMStatus: ticket.FFMStatus,
		At:        time.Now(),
	})
}
