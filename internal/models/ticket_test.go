package models

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from TicketStatus
		to   TicketStatus
		want bool
	}{
		{"open to quote requested", TicketOpen, TicketQuoteRequested, true},
		{"quote requested to submitted", TicketQuoteRequested, TicketQuoteSubmitted, true},
		{"submitted to approved", TicketQuoteSubmitted, TicketQuoteApproved, true},
		{"approved to payment requested", TicketQuoteApproved, TicketPaymentRequested, true},
		{"payment requested to done", TicketPaymentRequested, TicketPaymentDone, true},
		{"payment done to work initiated", TicketPaymentDone, TicketWorkInitiated, true},
		{"work initiated to closed", TicketWorkInitiated, TicketClosed, true},
		{"more quotes reopens request", TicketQuoteSubmitted, TicketQuoteRequested, true},
		{"close from open", TicketOpen, TicketClosed, true},
		{"close from payment done", TicketPaymentDone, TicketClosed, true},
		{"no skipping ahead", TicketOpen, TicketQuoteSubmitted, false},
		{"no moving backwards", TicketQuoteApproved, TicketQuoteSubmitted, false},
		{"closed is terminal", TicketClosed, TicketOpen, false},
		{"closed cannot re-close", TicketClosed, TicketClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		name   string
		ticket Ticket
		want   []TicketAction
	}{
		{
			name:   "open ticket",
			ticket: Ticket{Status: TicketOpen},
			want:   []TicketAction{ActionRequestQuote, ActionReassign, ActionCloseTicket},
		},
		{
			name:   "quote requested",
			ticket: Ticket{Status: TicketQuoteRequested},
			want:   []TicketAction{ActionReassign, ActionCloseTicket},
		},
		{
			name:   "quote submitted",
			ticket: Ticket{Status: TicketQuoteSubmitted},
			want:   []TicketAction{ActionApproveQuote, ActionRequestMoreQuotes, ActionCloseTicket},
		},
		{
			name:   "work initiated",
			ticket: Ticket{Status: TicketWorkInitiated},
			want:   []TicketAction{ActionReassign, ActionCloseTicket},
		},
		{
			name:   "closed ticket invites review",
			ticket: Ticket{Status: TicketClosed},
			want:   []TicketAction{ActionSubmitReview},
		},
		{
			name:   "pending assignment blocks everything else",
			ticket: Ticket{Status: TicketQuoteSubmitted, FFMStatus: FFMPending},
			want:   []TicketAction{ActionAcceptFFM, ActionRejectFFM},
		},
		{
			name:   "accepted assignment unblocks",
			ticket: Ticket{Status: TicketOpen, FFMStatus: FFMAccepted},
			want:   []TicketAction{ActionRequestQuote, ActionReassign, ActionCloseTicket},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ticket.AvailableActions()
			if len(got) != len(tt.want) {
				t.Fatalf("AvailableActions() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("AvailableActions()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCurrencyOrDefault(t *testing.T) {
	ticket := &Ticket{}
	if got := ticket.CurrencyOrDefault(); got != "INR" {
		t.Errorf("expected INR default, got %s", got)
	}

	ticket.Currency = "USD"
	if got := ticket.CurrencyOrDefault(); got != "USD" {
		t.Errorf("expected USD, got %s", got)
	}
}
