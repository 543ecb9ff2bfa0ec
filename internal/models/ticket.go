package models

import (
	"time"
)

// TicketStatus represents the current state of a service ticket
type TicketStatus string

const (
	TicketOpen             TicketStatus = "OPEN"
	TicketQuoteRequested   TicketStatus = "QUOTE_REQUESTED"
	TicketQuoteSubmitted   TicketStatus = "QUOTE_SUBMITTED"
	TicketQuoteApproved    TicketStatus = "QUOTE_APPROVED"
	TicketPaymentRequested TicketStatus = "PAYMENT_REQUESTED"
	TicketPaymentDone      TicketStatus = "PAYMENT_DONE"
	TicketWorkInitiated    TicketStatus = "WORK_INITIATED"
	TicketClosed           TicketStatus = "CLOSED"
)

// IsTerminal returns true if the status is a terminal state
func (s TicketStatus) IsTerminal() bool {
	return s == TicketClosed
}

// FFMStatus is the field-force-management track, parallel to the ticket status.
// It reflects technician-side workflow state and is advanced independently.
type FFMStatus string

const (
	FFMNone              FFMStatus = ""
	FFMPending           FFMStatus = "PENDING"
	FFMAccepted          FFMStatus = "ACCEPTED"
	FFMRejected          FFMStatus = "REJECTED"
	FFMAcceptedAndClosed FFMStatus = "ACCEPTED_AND_CLOSED"
	FFMClosed            FFMStatus = "CLOSED"
)

// TicketAction identifies a single-purpose status-mutating action.
// Every action is applied server-side; callers re-fetch the ticket afterwards
// instead of computing the next state locally.
type TicketAction string

const (
	ActionCloseTicket       TicketAction = "CLOSE_TICKET"
	ActionReassign          TicketAction = "REASSIGN"
	ActionRequestQuote      TicketAction = "REQUEST_QUOTE"
	ActionApproveQuote      TicketAction = "APPROVE_QUOTE"
	ActionRequestMoreQuotes TicketAction = "REQUEST_MORE_QUOTE"
	ActionAcceptFFM         TicketAction = "ACCEPT"
	ActionRejectFFM         TicketAction = "REJECT"
	ActionSubmitReview      TicketAction = "SUBMIT_REVIEW"
)

// DefaultCurrency is applied when a ticket carries no currency of its own.
const DefaultCurrency = "INR"

// Ticket represents a service request tracked through a status lifecycle
type Ticket struct {
	ID             string       `json:"id"`
	PropertyName   string       `json:"property_name"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Category       string       `json:"category"`
	Status         TicketStatus `json:"status"`
	FFMStatus      FFMStatus    `json:"ffm_status,omitempty"`
	QuoteRequestID string       `json:"quote_request_id,omitempty"`
	Currency       string       `json:"currency"`
	Assignee       string       `json:"assignee,omitempty"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CurrencyOrDefault returns the ticket currency, falling back to INR
func (t *Ticket) CurrencyOrDefault() string {
	if t.Currency == "" {
		return DefaultCurrency
	}
	return t.Currency
}

// ordered main-track transitions; CLOSE_TICKET and the FFM actions cut across
var statusOrder = map[TicketStatus]TicketStatus{
	TicketOpen:             TicketQuoteRequested,
	TicketQuoteRequested:   TicketQuoteSubmitted,
	TicketQuoteSubmitted:   TicketQuoteApproved,
	TicketQuoteApproved:    TicketPaymentRequested,
	TicketPaymentRequested: TicketPaymentDone,
	TicketPaymentDone:      TicketWorkInitiated,
	TicketWorkInitiated:    TicketClosed,
}

// CanTransition reports whether the ticket status may move to next.
// Closing is allowed from any non-terminal state; a quote round-trip may be
// re-opened from QUOTE_SUBMITTED back to QUOTE_REQUESTED (request more quotes).
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TicketClosed {
		return true
	}
	if s == TicketQuoteSubmitted && next == TicketQuoteRequested {
		return true
	}
	return statusOrder[s] == next
}

// AvailableActions returns the actions currently applicable to the ticket.
// A PENDING field-force assignment blocks everything except accept/reject.
func (t *Ticket) AvailableActions() []TicketAction {
	if t.FFMStatus == FFMPending {
		return []TicketAction{ActionAcceptFFM, ActionRejectFFM}
	}

	switch t.Status {
	case TicketOpen:
		return []TicketAction{ActionRequestQuote, ActionReassign, ActionCloseTicket}
	case TicketQuoteRequested:
		return []TicketAction{ActionReassign, ActionCloseTicket}
	case TicketQuoteSubmitted:
		return []TicketAction{ActionApproveQuote, ActionRequestMoreQuotes, ActionCloseTicket}
	case TicketQuoteApproved, TicketPaymentRequested, TicketPaymentDone, TicketWorkInitiated:
		return []TicketAction{ActionReassign, ActionCloseTicket}
	case TicketClosed:
		return []TicketAction{ActionSubmitReview}
	}
	return nil
}

// TicketFilters defines filters for listing tickets
type TicketFilters struct {
	Status    TicketStatus
	Category  string
	CreatedBy string
	Assignee  string
	Limit     int
	Offset    int
}

// CreateTicketRequest represents a request to create a ticket
type CreateTicketRequest struct {
	PropertyName string `json:"property_name"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category"`
	Currency     string `json:"currency,omitempty"`
	Assignee     string `json:"assignee,omitempty"`
}

// TicketActionRequest is the PATCH envelope for status-mutating actions
type TicketActionRequest struct {
	Action  TicketAction  `json:"action"`
	Payload ActionPayload `json:"payload"`
}

// ActionPayload carries the union of per-action parameters; each action
// reads only the fields it needs.
type ActionPayload struct {
	Assignee   string   `json:"assignee,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Rating     int      `json:"rating,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// Review is tenant/owner feedback recorded after a ticket is closed
type Review struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
