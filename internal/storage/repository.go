package storage

import (
	"context"

	"github.com/homzhub/ticket-engine/internal/models"
)

// Repository defines the interface for ticket-engine persistence
type Repository interface {
	// Tickets
	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	ListTickets(ctx context.Context, filters models.TicketFilters) ([]*models.Ticket, error)

	// Quote requests and submissions
	CreateQuoteRequest(ctx context.Context, qr *models.QuoteRequest) error
	GetQuoteRequest(ctx context.Context, id string) (*models.QuoteRequest, error)
	SaveQuoteSubmission(ctx context.Context, ticketID, quoteRequestID string, sub *models.QuoteSubmission) error
	GetQuoteSubmission(ctx context.Context, quoteRequestID string) (*models.QuoteSubmission, error)

	// Reviews
	CreateReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, ticketID string) ([]*models.Review, error)

	// Lease units
	CreateLeaseUnit(ctx context.Context, unit *models.LeaseUnit) error
	GetLeaseUnit(ctx context.Context, id string) (*models.LeaseUnit, error)
	ListLeaseUnits(ctx context.Context, propertyID string) ([]*models.LeaseUnit, error)
	AddSpace(ctx context.Context, unitID string, space *models.Space) error
	SetLeaseTerm(ctx context.Context, term *models.LeaseTerm) error

	// Users
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
