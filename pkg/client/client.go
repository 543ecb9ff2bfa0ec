package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/homzhub/ticket-engine/internal/models"
)

// Client is a Go SDK for the ticket-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new ticket-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Ticket is the ticket aggregate as returned by the API, including the
// server-computed set of currently available actions
type Ticket struct {
	models.Ticket
	AvailableActions []models.TicketAction `json:"available_actions"`
}

// ListTicketsOptions contains filters for listing tickets
type ListTicketsOptions struct {
	Status    string
	Category  string
	CreatedBy string
	Assignee  string
	Limit     int
	Offset    int
}

// CreateTicket opens a new service ticket
func (c *Client) CreateTicket(ctx context.Context, req models.CreateTicketRequest) (*Ticket, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/tickets", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var ticket Ticket
	if err := parseEnvelope(resp, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicket retrieves a ticket by ID
func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/tickets/%s", id), "", nil)
	if err != nil {
		return nil, err
	}

	var ticket Ticket
	if err := parseEnvelope(resp, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListTickets retrieves tickets matching the filters
func (c *Client) ListTickets(ctx context.Context, opts ListTicketsOptions) ([]*models.Ticket, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}
	if opts.CreatedBy != "" {
		query.Set("created_by", opts.CreatedBy)
	}
	if opts.Assignee != "" {
		query.Set("assignee", opts.Assignee)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/tickets"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.doRequest(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}

	var tickets []*models.Ticket
	if err := parseEnvelope(resp, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ApplyAction applies a status-mutating action to a ticket and returns the
// re-fetched aggregate
func (c *Client) ApplyAction(ctx context.Context, id string, req models.TicketActionRequest) (*Ticket, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "PATCH", fmt.Sprintf("/api/v1/tickets/%s", id), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var ticket Ticket
	if err := parseEnvelope(resp, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// StartQuoteSession opens or resumes the quote wizard for a ticket
func (c *Client) StartQuoteSession(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/tickets/%s/quote-categories", ticketID), "", nil)
	if err != nil {
		return nil, err
	}

	var sess models.QuoteSession
	if err := parseEnvelope(resp, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SetPrice records the price for one quote slot
func (c *Client) SetPrice(ctx context.Context, ticketID, groupID string, quoteNumber int, price string) (*models.QuoteSession, error) {
	body, err := json.Marshal(map[string]string{"price": price})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/v1/tickets/%s/quotes/slots/%s/%d/price", ticketID, groupID, quoteNumber)
	resp, err := c.doRequest(ctx, "PUT", path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var sess models.QuoteSession
	if err := parseEnvelope(resp, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// AttachDocument uploads a document into one quote slot
func (c *Client) AttachDocument(ctx context.Context, ticketID, groupID string, quoteNumber int, fileName string, content io.Reader) (*models.QuoteSession, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	path := fmt.Sprintf("/api/v1/tickets/%s/quotes/slots/%s/%d/document", ticketID, groupID, quoteNumber)
	resp, err := c.doRequest(ctx, "POST", path, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var sess models.QuoteSession
	if err := parseEnvelope(resp, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// RemoveDocument detaches the document from one quote slot
func (c *Client) RemoveDocument(ctx context.Context, ticketID, groupID string, quoteNumber int) (*models.QuoteSession, error) {
	path := fmt.Sprintf("/api/v1/tickets/%s/quotes/slots/%s/%d/document", ticketID, groupID, quoteNumber)
	resp, err := c.doRequest(ctx, "DELETE", path, "", nil)
	if err != nil {
		return nil, err
	}

	var sess models.QuoteSession
	if err := parseEnvelope(resp, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Advance moves the quote wizard to the next category tab
func (c *Client) Advance(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/api/v1/tickets/%s/quotes/advance", ticketID), "", nil)
	if err != nil {
		return nil, err
	}

	var sess models.QuoteSession
	if err := parseEnvelope(resp, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SubmitQuotes uploads staged documents and posts the assembled submission
func (c *Client) SubmitQuotes(ctx context.Context, ticketID, quoteRequestID, comment string) (*models.QuoteSubmission, error) {
	body, err := json.Marshal(map[string]string{"comment": comment})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/api/v1/tickets/%s/quote-requests/%s/quotes", ticketID, quoteRequestID)
	resp, err := c.doRequest(ctx, "POST", path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var sub models.QuoteSubmission
	if err := parseEnvelope(resp, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubmission retrieves the persisted submission for a quote request
func (c *Client) GetSubmission(ctx context.Context, ticketID, quoteRequestID string) (*models.QuoteSubmission, error) {
	path := fmt.Sprintf("/api/v1/tickets/%s/quote-requests/%s/quotes", ticketID, quoteRequestID)
	resp, err := c.doRequest(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}

	var sub models.QuoteSubmission
	if err := parseEnvelope(resp, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListCategories retrieves the quote category catalog
func (c *Client) ListCategories(ctx context.Context) ([]*models.QuoteCategory, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/catalog", "", nil)
	if err != nil {
		return nil, err
	}

	var categories []*models.QuoteCategory
	if err := parseEnvelope(resp, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateLeaseUnit registers a lease unit
func (c *Client) CreateLeaseUnit(ctx context.Context, req models.CreateLeaseUnitRequest) (*models.LeaseUnit, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/lease-units", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var unit models.LeaseUnit
	if err := parseEnvelope(resp, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// AddSpace adds a space entry to a lease unit
func (c *Client) AddSpace(ctx context.Context, unitID string, space models.Space) (*models.LeaseUnit, error) {
	body, err := json.Marshal(space)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/api/v1/lease-units/%s/spaces", unitID), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var unit models.LeaseUnit
	if err := parseEnvelope(resp, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// SubmitTerm submits the lease term for a unit
func (c *Client) SubmitTerm(ctx context.Context, unitID string, term models.LeaseTerm) (*models.LeaseUnit, error) {
	body, err := json.Marshal(term)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "PUT", fmt.Sprintf("/api/v1/lease-units/%s/term", unitID), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var unit models.LeaseUnit
	if err := parseEnvelope(resp, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", "", nil)
	return err
}

// parseEnvelope unwraps the {success, data, error} envelope into out
func parseEnvelope(resp []byte, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out != nil && result.Data != nil {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// error envelopes still carry a parseable body
		if len(respBody) > 0 {
			var probe struct {
				Success *bool `json:"success"`
			}
			if json.Unmarshal(respBody, &probe) == nil && probe.Success != nil {
				return respBody, nil
			}
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
