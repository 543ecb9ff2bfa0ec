package models

import "time"

// TicketEventType identifies what happened to a ticket
type TicketEventType string

const (
	EventTicketCreated   TicketEventType = "ticket_created"
	EventStatusChanged   TicketEventType = "status_changed"
	EventQuoteSubmitted  TicketEventType = "quote_submitted"
	EventReviewSubmitted TicketEventType = "review_submitted"
)

// TicketEvent is broadcast over the websocket feed after every mutation,
// nudging listeners to re-fetch the ticket aggregate
type TicketEvent struct {
	Type      TicketEventType `json:"type"`
	TicketID  string          `json:"ticket_id"`
	Status    TicketStatus    `json:"status,omitempty"`
	FFMStatus FFMStatus       `json:"ffm_status,omitempty"`
	At        time.Time       `json:"at"`
}
