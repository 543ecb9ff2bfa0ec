package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homzhub/ticket-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Tickets ---

const ticketColumns = `id, property_name, title, description, category, status, ffm_status, quote_request_id, currency, assignee, created_by, created_at, updated_at`

// CreateTicket creates a new ticket record
func (r *PostgresRepository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.PropertyName,
		t.Title,
		nullString(t.Description),
		t.Category,
		string(t.Status),
		nullString(string(t.FFMStatus)),
		nullString(t.QuoteRequestID),
		t.Currency,
		nullString(t.Assignee),
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	return nil
}

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	var statusStr string
	var description, ffmStatus, quoteRequestID, assignee sql.NullString

	err := row.Scan(
		&t.ID,
		&t.PropertyName,
		&t.Title,
		&description,
		&t.Category,
		&statusStr,
		&ffmStatus,
		&quoteRequestID,
		&t.Currency,
		&assignee,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Status = models.TicketStatus(statusStr)
	t.FFMStatus = models.FFMStatus(ffmStatus.String)
	t.QuoteRequestID = quoteRequestID.String
	t.Assignee = assignee.String

	return &t, nil
}

// GetTicket retrieves a ticket by ID
func (r *PostgresRepository) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return t, nil
}

// UpdateTicket updates an existing ticket
func (r *PostgresRepository) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $2, ffm_status = $3, quote_request_id = $4, assignee = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		t.ID,
		string(t.Status),
		nullString(string(t.FFMStatus)),
		nullString(t.QuoteRequestID),
		nullString(t.Assignee),
		t.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("ticket not found: %s", t.ID)
	}

	return nil
}

// ListTickets returns tickets matching filters
func (r *PostgresRepository) ListTickets(ctx context.Context, filters models.TicketFilters) ([]*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	if filters.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argNum)
		args = append(args, filters.Category)
		argNum++
	}

	if filters.CreatedBy != "" {
		query += fmt.Sprintf(" AND created_by = $%d", argNum)
		args = append(args, filters.CreatedBy)
		argNum++
	}

	if filters.Assignee != "" {
		query += fmt.Sprintf(" AND assignee = $%d", argNum)
		args = append(args, filters.Assignee)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket

	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}

// --- Quote requests and submissions ---

// CreateQuoteRequest creates a quote request record
func (r *PostgresRepository) CreateQuoteRequest(ctx context.Context, qr *models.QuoteRequest) error {
	categoriesJSON, err := json.Marshal(qr.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	query := `
		INSERT INTO quote_requests (id, ticket_id, categories, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.pool.Exec(ctx, query, qr.ID, qr.TicketID, categoriesJSON, qr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quote request: %w", err)
	}

	return nil
}

// GetQuoteRequest retrieves a quote request by ID
func (r *PostgresRepository) GetQuoteRequest(ctx context.Context, id string) (*models.QuoteRequest, error) {
	query := `SELECT id, ticket_id, categories, created_at FROM quote_requests WHERE id = $1`

	var qr models.QuoteRequest
	var categoriesJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(&qr.ID, &qr.TicketID, &categoriesJSON, &qr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get quote request: %w", err)
	}

	if err := json.Unmarshal(categoriesJSON, &qr.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}

	return &qr, nil
}

// SaveQuoteSubmission persists the nested submission payload and moves the
// ticket from QUOTE_REQUESTED to QUOTE_SUBMITTED in one transaction
func (r *PostgresRepository) SaveQuoteSubmission(ctx context.Context, ticketID, quoteRequestID string, sub *models.QuoteSubmission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, group := range sub.QuoteGroup {
		var groupID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO quote_groups (quote_request_id, category, comment)
			VALUES ($1, $2, $3)
			RETURNING id
		`, quoteRequestID, group.QuoteRequestCategory, nullString(sub.Comment)).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("failed to insert quote group: %w", err)
		}

		for _, quote := range group.Quotes {
			_, err := tx.Exec(ctx, `
				INSERT INTO quotes (group_id, quote_number, price, currency, attachment)
				VALUES ($1, $2, $3, $4, $5)
			`, groupID, quote.QuoteNumber, quote.Price, quote.Currency, quote.Attachment)
			if err != nil {
				return fmt.Errorf("failed to insert quote: %w", err)
			}
		}
	}

	result, err := tx.Exec(ctx, `
		UPDATE tickets
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, ticketID, string(models.TicketQuoteRequested), string(models.TicketQuoteSubmitted))
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("ticket %s is not awaiting quotes", ticketID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}

	return nil
}

// GetQuoteSubmission reassembles the nested submission payload for a quote
// request
func (r *PostgresRepository) GetQuoteSubmission(ctx context.Context, quoteRequestID string) (*models.QuoteSubmission, error) {
	query := `
		SELECT g.id, g.category, g.comment, q.quote_number, q.price, q.currency, q.attachment
		FROM quote_groups g
		LEFT JOIN quotes q ON q.group_id = g.id
		WHERE g.quote_request_id = $1
		ORDER BY g.id, q.quote_number
	`

	rows, err := r.pool.Query(ctx, query, quoteRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote submission: %w", err)
	}
	defer rows.Close()

	sub := &models.QuoteSubmission{QuoteGroup: make([]models.SubmittedGroup, 0)}
	groupIndex := make(map[int64]int)

	for rows.Next() {
		var groupID int64
		var category string
		var comment sql.NullString
		var quoteNumber sql.NullInt64
		var price sql.NullFloat64
		var currency, attachment sql.NullString

		if err := rows.Scan(&groupID, &category, &comment, &quoteNumber, &price, &currency, &attachment); err != nil {
			return nil, fmt.Errorf("failed to scan quote row: %w", err)
		}

		idx, ok := groupIndex[groupID]
		if !ok {
			sub.QuoteGroup = append(sub.QuoteGroup, models.SubmittedGroup{
				QuoteRequestCategory: category,
				Quotes:               make([]models.SubmittedQuote, 0),
			})
			idx = len(sub.QuoteGroup) - 1
			groupIndex[groupID] = idx
			sub.Comment = comment.String
		}

		if quoteNumber.Valid {
			sub.QuoteGroup[idx].Quotes = append(sub.QuoteGroup[idx].Quotes, models.SubmittedQuote{
				QuoteNumber: int(quoteNumber.Int64),
				Price:       price.Float64,
				Currency:    currency.String,
				Attachment:  attachment.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}

	if len(sub.QuoteGroup) == 0 {
		return nil, nil // Not found
	}

	return sub, nil
}

// --- Reviews ---

// CreateReview creates a review record
func (r *PostgresRepository) CreateReview(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (id, ticket_id, rating, comment, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.TicketID,
		review.Rating,
		nullString(review.Comment),
		review.CreatedBy,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// ListReviews returns the reviews recorded against a ticket
func (r *PostgresRepository) ListReviews(ctx context.Context, ticketID string) ([]*models.Review, error) {
	query := `
		SELECT id, ticket_id, rating, comment, created_by, created_at
		FROM reviews
		WHERE ticket_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*models.Review

	for rows.Next() {
		var review models.Review
		var comment sql.NullString

		if err := rows.Scan(&review.ID, &review.TicketID, &review.Rating, &comment, &review.CreatedBy, &review.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		review.Comment = comment.String
		reviews = append(reviews, &review)
	}

	return reviews, rows.Err()
}

// --- Lease units ---

// CreateLeaseUnit creates a lease unit record
func (r *PostgresRepository) CreateLeaseUnit(ctx context.Context, unit *models.LeaseUnit) error {
	query := `
		INSERT INTO lease_units (id, property_id, name, total_floors, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		unit.ID,
		unit.PropertyID,
		unit.Name,
		unit.TotalFloors,
		unit.CreatedBy,
		unit.CreatedAt,
		unit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lease unit: %w", err)
	}

	return nil
}

// GetLeaseUnit retrieves a lease unit with its spaces and current term
func (r *PostgresRepository) GetLeaseUnit(ctx context.Context, id string) (*models.LeaseUnit, error) {
	query := `
		SELECT id, property_id, name, total_floors, created_by, created_at, updated_at
		FROM lease_units
		WHERE id = $1
	`

	var unit models.LeaseUnit
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&unit.ID,
		&unit.PropertyID,
		&unit.Name,
		&unit.TotalFloors,
		&unit.CreatedBy,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get lease unit: %w", err)
	}

	spaces, err := r.getSpaces(ctx, id)
	if err != nil {
		return nil, err
	}
	unit.Spaces = spaces

	term, err := r.getLeaseTerm(ctx, id)
	if err != nil {
		return nil, err
	}
	unit.Term = term

	return &unit, nil
}

// ListLeaseUnits returns all units of a property with their spaces and terms
func (r *PostgresRepository) ListLeaseUnits(ctx context.Context, propertyID string) ([]*models.LeaseUnit, error) {
	query := `
		SELECT id FROM lease_units WHERE property_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lease units: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lease unit id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lease units: %w", err)
	}

	units := make([]*models.LeaseUnit, 0, len(ids))
	for _, id := range ids {
		unit, err := r.GetLeaseUnit(ctx, id)
		if err != nil {
			return nil, err
		}
		if unit != nil {
			units = append(units, unit)
		}
	}

	return units, nil
}

func (r *PostgresRepository) getSpaces(ctx context.Context, unitID string) ([]models.Space, error) {
	query := `SELECT id, type, count, floor FROM lease_spaces WHERE unit_id = $1 ORDER BY floor, type`

	rows, err := r.pool.Query(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spaces: %w", err)
	}
	defer rows.Close()

	var spaces []models.Space
	for rows.Next() {
		var sp models.Space
		if err := rows.Scan(&sp.ID, &sp.Type, &sp.Count, &sp.Floor); err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, sp)
	}

	return spaces, rows.Err()
}

func (r *PostgresRepository) getLeaseTerm(ctx context.Context, unitID string) (*models.LeaseTerm, error) {
	query := `
		SELECT id, unit_id, expected_rent, security_deposit, currency, available_from, minimum_stay_months, created_at
		FROM lease_terms
		WHERE unit_id = $1
	`

	var term models.LeaseTerm
	err := r.pool.QueryRow(ctx, query, unitID).Scan(
		&term.ID,
		&term.UnitID,
		&term.ExpectedRent,
		&term.SecurityDeposit,
		&term.Currency,
		&term.AvailableFrom,
		&term.MinimumStayMonths,
		&term.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lease term: %w", err)
	}

	return &term, nil
}

// AddSpace inserts one space entry for a unit
func (r *PostgresRepository) AddSpace(ctx context.Context, unitID string, space *models.Space) error {
	query := `
		INSERT INTO lease_spaces (id, unit_id, type, count, floor)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, space.ID, unitID, space.Type, space.Count, space.Floor)
	if err != nil {
		return fmt.Errorf("failed to add space: %w", err)
	}

	return nil
}

// SetLeaseTerm stores the term for a unit, replacing any previous one
func (r *PostgresRepository) SetLeaseTerm(ctx context.Context, term *models.LeaseTerm) error {
	query := `
		INSERT INTO lease_terms (id, unit_id, expected_rent, security_deposit, currency, available_from, minimum_stay_months, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (unit_id) DO UPDATE
		SET id = EXCLUDED.id, expected_rent = EXCLUDED.expected_rent, security_deposit = EXCLUDED.security_deposit,
		    currency = EXCLUDED.currency, available_from = EXCLUDED.available_from,
		    minimum_stay_months = EXCLUDED.minimum_stay_months, created_at = EXCLUDED.created_at
	`

	_, err := r.pool.Exec(ctx, query,
		term.ID,
		term.UnitID,
		term.ExpectedRent,
		term.SecurityDeposit,
		term.Currency,
		term.AvailableFrom,
		term.MinimumStayMonths,
		term.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set lease term: %w", err)
	}

	return nil
}

// --- Users ---

const userColumns = `id, email, name, role, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var roleStr string

	err := row.Scan(&u.ID, &u.Email, &u.Name, &roleStr, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	u.Role = models.UserRole(roleStr)
	return &u, nil
}

// GetUserByEmail retrieves a user by email address
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetUser retrieves a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
