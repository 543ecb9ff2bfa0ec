package models

import (
	"fmt"
	"time"
)

// SlotsPerCategory is the fixed number of competing quote slots offered per
// category. Business rule: every category always presents exactly three
// options to choose from.
const SlotsPerCategory = 3

// QuoteCategory is a named bucket of work items requiring quotes
type QuoteCategory struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// QuoteRequest binds a set of categories to a ticket for one quoting round
type QuoteRequest struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
}

// StagedDocument is a file held in the staging area until submission.
// Nothing is sent to the attachment service before submit.
type StagedDocument struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"`
	StagedAt    time.Time `json:"staged_at"`
}

// QuoteSlot is one candidate quote within a category
type QuoteSlot struct {
	QuoteNumber int             `json:"quote_number"`
	Title       string          `json:"title"`
	Price       string          `json:"price"`
	Document    *StagedDocument `json:"document,omitempty"`
}

// IsEmpty returns true when the slot was intentionally left blank
// (no quote offered for this slot)
func (s *QuoteSlot) IsEmpty() bool {
	return s.Price == "" && s.Document == nil
}

// IsComplete returns true when both the price and the document are present
func (s *QuoteSlot) IsComplete() bool {
	return s.Price != "" && s.Document != nil
}

// IsValid returns false only for the half-filled state: exactly one of
// price/document set blocks category advancement.
func (s *QuoteSlot) IsValid() bool {
	return s.IsEmpty() || s.IsComplete()
}

// QuoteGroup holds the slots for one category within a session
type QuoteGroup struct {
	GroupID   string      `json:"group_id"`
	GroupName string      `json:"group_name"`
	Slots     []QuoteSlot `json:"slots"`
}

// NewQuoteGroup seeds a group with the fixed number of empty slots
func NewQuoteGroup(cat QuoteCategory) QuoteGroup {
	slots := make([]QuoteSlot, 0, SlotsPerCategory)
	for n := 1; n <= SlotsPerCategory; n++ {
		slots = append(slots, QuoteSlot{
			QuoteNumber: n,
			Title:       fmt.Sprintf("Quote %d", n),
		})
	}
	return QuoteGroup{GroupID: cat.ID, GroupName: cat.Name, Slots: slots}
}

// IsValid returns true when no slot in the group is half-filled
func (g *QuoteGroup) IsValid() bool {
	for i := range g.Slots {
		if !g.Slots[i].IsValid() {
			return false
		}
	}
	return true
}

// Slot returns the slot with the given quote number, or nil
func (g *QuoteGroup) Slot(quoteNumber int) *QuoteSlot {
	for i := range g.Slots {
		if g.Slots[i].QuoteNumber == quoteNumber {
			return &g.Slots[i]
		}
	}
	return nil
}

// QuoteSession is the wizard state for one quote-submission round.
// It exists only between Start and a successful Submit; it is cleared
// immediately after submission to prevent stale reuse.
type QuoteSession struct {
	TicketID       string       `json:"ticket_id"`
	QuoteRequestID string       `json:"quote_request_id"`
	Currency       string       `json:"currency"`
	Groups         []QuoteGroup `json:"groups"`
	ActiveIndex    int          `json:"active_index"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

// ActiveGroup returns the group for the currently active category tab
func (s *QuoteSession) ActiveGroup() *QuoteGroup {
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(s.Groups) {
		return nil
	}
	return &s.Groups[s.ActiveIndex]
}

// OnLastCategory reports whether the session sits on the terminal tab,
// where the primary action becomes submit instead of next
func (s *QuoteSession) OnLastCategory() bool {
	return s.ActiveIndex >= len(s.Groups)-1
}

// Group returns the group with the given category id, or nil
func (s *QuoteSession) Group(groupID string) *QuoteGroup {
	for i := range s.Groups {
		if s.Groups[i].GroupID == groupID {
			return &s.Groups[i]
		}
	}
	return nil
}

// StagedDocuments returns every document currently attached across all groups
func (s *QuoteSession) StagedDocuments() []*StagedDocument {
	var docs []*StagedDocument
	for gi := range s.Groups {
		for si := range s.Groups[gi].Slots {
			if d := s.Groups[gi].Slots[si].Document; d != nil {
				docs = append(docs, d)
			}
		}
	}
	return docs
}

// IsExpired checks if the session TTL has elapsed
func (s *QuoteSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// QuoteSubmission is the nested payload assembled at submit time
type QuoteSubmission struct {
	QuoteGroup []SubmittedGroup `json:"quote_group"`
	Comment    string           `json:"comment,omitempty"`
}

// SubmittedGroup keys submitted quotes by their category. Groups with zero
// valid quotes are still present with an empty quotes array.
type SubmittedGroup struct {
	QuoteRequestCategory string           `json:"quote_request_category"`
	Quotes               []SubmittedQuote `json:"quotes"`
}

// SubmittedQuote is one priced, documented quote inside a submission
type SubmittedQuote struct {
	QuoteNumber int     `json:"quote_number"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Attachment  string  `json:"attachment"`
}
