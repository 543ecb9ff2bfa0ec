package lease

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
	// ErrUnitNotFound is returned when the lease unit does not exist
	ErrUnitNotFound = errors.New("lease unit not found")

	// ErrValidation wraps pre-persistence validation failures; these never
	// reach storage
	ErrValidation = errors.New("validation failed")
)

// Repository is the persistence surface the lease service needs
type Repository interface {
	GetLeaseUnit(ctx context.Context, id string) (*models.LeaseUnit, error)
	CreateLeaseUnit(ctx context.Context, unit *models.LeaseUnit) error
	ListLeaseUnits(ctx context.Context, propertyID string) ([]*models.LeaseUnit, error)
	AddSpace(ctx context.Context, unitID string, space *models.Space) error
	SetLeaseTerm(ctx context.Context, term *models.LeaseTerm) error
}

// Service handles lease-unit registration and space/term submission.
// All validation happens before the repository is touched, mirroring the
// quote workflow's validate-then-persist shape.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a lease service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateUnit registers a new lease unit
func (s *Service) CreateUnit(ctx context.Context, req models.CreateLeaseUnitRequest, createdBy string) (*models.LeaseUnit, error) {
	if req.PropertyID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: property_id and name are required", ErrValidation)
	}
	if req.TotalFloors < 0 {
		return nil, fmt.Errorf("%w: total floors cannot be negative", ErrValidation)
	}

	now := time.Now()
	unit := &models.LeaseUnit{
		ID:          uuid.New().String(),
		PropertyID:  req.PropertyID,
		Name:        req.Name,
		TotalFloors: req.TotalFloors,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateLeaseUnit(ctx, unit); err != nil {
		return nil, fmt.Errorf("failed to create lease unit: %w", err)
	}

	s.logger.Info("lease unit created", "unit_id", unit.ID, "property_id", unit.PropertyID)
	return s.GetUnit(ctx, unit.ID)
}

// GetUnit returns the full unit aggregate with its spaces and term
func (s *Service) GetUnit(ctx context.Context, id string) (*models.LeaseUnit, error) {
	unit, err := s.repo.GetLeaseUnit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lease unit: %w", err)
	}
	if unit == nil {
		return nil, ErrUnitNotFound
	}
	return unit, nil
}

// ListUnits returns all units of a property
func (s *Service) ListUnits(ctx context.Context, propertyID string) ([]*models.LeaseUnit, error) {
	units, err := s.repo.ListLeaseUnits(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lease units: %w", err)
	}
	return units, nil
}

// AddSpace validates and persists one space entry, then re-fetches the unit
func (s *Service) AddSpace(ctx context.Context, unitID string, space models.Space) (*models.LeaseUnit, error) {
	unit, err := s.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	if err := space.Validate(unit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	space.ID = uuid.New().String()
	if err := s.repo.AddSpace(ctx, unitID, &space); err != nil {
		return nil, fmt.Errorf("failed to add space: %w", err)
	}

	return s.GetUnit(ctx, unitID)
}

// SubmitTerm validates and stores the lease term for a unit, replacing any
// previous term, then re-fetches the unit
func (s *Service) SubmitTerm(ctx context.Context, unitID string, term models.LeaseTerm) (*models.LeaseUnit, error) {
	if _, err := s.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}

	if err := term.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	term.ID = uuid.New().String()
	term.UnitID = unitID
	if term.Currency == "" {
		term.Currency = models.DefaultCurrency
	}
	term.CreatedAt = time.Now()

	if err := s.repo.SetLeaseTerm(ctx, &term); err != nil {
		return nil, fmt.Errorf("failed to set lease term: %w", err)
	}

	s.logger.Info("lease term submitted", "unit_id", unitID, "rent", term.ExpectedRent)
	return s.GetUnit(ctx, unitID)
}
