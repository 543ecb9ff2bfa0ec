package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/homzhub/ticket-engine/internal/catalog"
	"github.com/homzhub/ticket-engine/internal/models"
	"github.com/homzhub/ticket-engine/internal/session"
)

var (
	// ErrTicketNotFound is returned when the referenced ticket does not exist
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrSessionNotFound is returned when no quote session exists for a ticket
	ErrSessionNotFound = errors.New("quote session not found")

	// ErrQuoteNotRequested is returned when starting a session for a ticket
	// that has no open quote request
	ErrQuoteNotRequested = errors.New("ticket has no open quote request")

	// ErrIncompleteSlots carries the exact refusal message shown to
	// submitters when a slot has a price without a document or vice versa
	ErrIncompleteSlots = errors.New("pleaseFillDetails")

	// ErrLastCategory is returned when advancing past the final category tab
	ErrLastCategory = errors.New("already on last category")

	// ErrSlotNotFound is returned when the group or quote number is unknown
	ErrSlotNotFound = errors.New("quote slot not found")

	// ErrInvalidPrice is returned when a slot price is not a non-negative number
	ErrInvalidPrice = errors.New("price must be a non-negative number")
)

// TicketStore is the persistence surface the workflow needs
type TicketStore interface {
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetQuoteRequest(ctx context.Context, id string) (*models.QuoteRequest, error)
	SaveQuoteSubmission(ctx context.Context, ticketID, quoteRequestID string, sub *models.QuoteSubmission) error
}

// Uploader sends a staged document to the attachment service
type Uploader interface {
	Upload(ctx context.Context, doc models.StagedDocument) (string, error)
}

// Stager holds document content on disk between attach and submit
type Stager interface {
	Save(fileName, contentType string, r io.Reader) (*models.StagedDocument, error)
	Remove(doc models.StagedDocument) error
}

// EventSink receives ticket lifecycle events for broadcast
type EventSink interface {
	Publish(event models.TicketEvent)
}

// Workflow drives the multi-category quote submission wizard. All wizard
// state lives in the session store; nothing touches the database or the
// attachment service until Submit.
type Workflow struct {
	sessions   session.Store
	tickets    TicketStore
	uploader   Uploader
	staging    Stager
	catalog    *catalog.Catalog
	events     EventSink
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewWorkflow creates a quote submission workflow
func NewWorkflow(sessions session.Store, tickets TicketStore, uploader Uploader, staging Stager, cat *catalog.Catalog, events EventSink, sessionTTL time.Duration, logger *slog.Logger) *Workflow {
	return &Workflow{
		sessions:   sessions,
		tickets:    tickets,
		uploader:   uploader,
		staging:    staging,
		catalog:    cat,
		events:     events,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Start opens a quote session for the ticket, or resumes the existing one.
// The ticket must be in QUOTE_REQUESTED with an open quote request; the
// session groups are seeded from the request's categories, three empty
// slots each.
func (w *Workflow) Start(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	ticket, err := w.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	if ticket.Status != models.TicketQuoteRequested || ticket.QuoteRequestID == "" {
		return nil, ErrQuoteNotRequested
	}

	existing, err := w.sessions.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if existing != nil && !existing.IsExpired() && existing.QuoteRequestID == ticket.QuoteRequestID {
		return existing, nil
	}

	request, err := w.tickets.GetQuoteRequest(ctx, ticket.QuoteRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote request: %w", err)
	}
	if request == nil {
		return nil, ErrQuoteNotRequested
	}

	categories, err := w.catalog.Resolve(request.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve categories: %w", err)
	}

	groups := make([]models.QuoteGroup, 0, len(categories))
	for _, cat := range categories {
		groups = append(groups, models.NewQuoteGroup(cat))
	}

	now := time.Now()
	sess := &models.QuoteSession{
		TicketID:       ticketID,
		QuoteRequestID: ticket.QuoteRequestID,
		Currency:       ticket.CurrencyOrDefault(),
		Groups:         groups,
		ActiveIndex:    0,
		CreatedAt:      now,
		ExpiresAt:      now.Add(w.sessionTTL),
	}

	if err := w.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	w.logger.Info("quote session started",
		"ticket_id", ticketID,
		"quote_request_id", sess.QuoteRequestID,
		"categories", len(groups))

	return sess, nil
}

// Get returns the live session for a ticket
func (w *Workflow) Get(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	sess, err := w.sessions.Get(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil || sess.IsExpired() {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// SetPrice records the price for one slot. An empty price clears the field.
func (w *Workflow) SetPrice(ctx context.Context, ticketID, groupID string, quoteNumber int, price string) (*models.QuoteSession, error) {
	sess, err := w.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	slot, err := findSlot(sess, groupID, quoteNumber)
	if err != nil {
		return nil, err
	}

	if price != "" {
		if _, err := parsePrice(price); err != nil {
			return nil, err
		}
	}
	slot.Price = price

	if err := w.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// AttachDocument stages the uploaded content and binds it to one slot,
// replacing any document already attached there
func (w *Workflow) AttachDocument(ctx context.Context, ticketID, groupID string, quoteNumber int, fileName, contentType string, r io.Reader) (*models.QuoteSession, error) {
	sess, err := w.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	slot, err := findSlot(sess, groupID, quoteNumber)
	if err != nil {
		return nil, err
	}

	doc, err := w.staging.Save(fileName, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to stage document: %w", err)
	}

	if slot.Document != nil {
		if err := w.staging.Remove(*slot.Document); err != nil {
			w.logger.Warn("failed to remove replaced document", "error", err, "document_id", slot.Document.ID)
		}
	}
	slot.Document = doc

	if err := w.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// RemoveDocument detaches and deletes the staged document on one slot
func (w *Workflow) RemoveDocument(ctx context.Context, ticketID, groupID string, quoteNumber int) (*models.QuoteSession, error) {
	sess, err := w.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	slot, err := findSlot(sess, groupID, quoteNumber)
	if err != nil {
		return nil, err
	}
	if slot.Document == nil {
		return sess, nil
	}

	if err := w.staging.Remove(*slot.Document); err != nil {
		w.logger.Warn("failed to remove staged document", "error", err, "document_id", slot.Document.ID)
	}
	slot.Document = nil

	if err := w.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Advance moves the session to the next category tab. It refuses while any
// slot in the active group is half-filled, and refuses on the last tab,
// where submit is the only way forward.
func (w *Workflow) Advance(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	sess, err := w.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	active := sess.ActiveGroup()
	if active == nil {
		return nil, ErrSlotNotFound
	}
	if !active.IsValid() {
		return nil, ErrIncompleteSlots
	}
	if sess.OnLastCategory() {
		return nil, ErrLastCategory
	}

	sess.ActiveIndex++

	if err := w.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Submit uploads every staged document concurrently, assembles the nested
// submission payload, and persists it in one transaction that also moves
// the ticket to QUOTE_SUBMITTED. Any failure before persistence leaves the
// session untouched so the caller can retry. The session is cleared only
// after the submission is durably stored.
func (w *Workflow) Submit(ctx context.Context, ticketID, comment string) (*models.QuoteSubmission, error) {
	sess, err := w.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	for i := range sess.Groups {
		if !sess.Groups[i].IsValid() {
			return nil, ErrIncompleteSlots
		}
	}

	// validate all prices before any upload starts
	if err := validatePrices(sess); err != nil {
		return nil, err
	}

	docs := sess.StagedDocuments()
	attachmentIDs := make(map[string]string, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	results := make([]string, len(docs))
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			id, err := w.uploader.Upload(gctx, *doc)
			if err != nil {
				return fmt.Errorf("upload %s: %w", doc.FileName, err)
			}
			results[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to upload documents: %w", err)
	}
	for i, doc := range docs {
		attachmentIDs[doc.ID] = results[i]
	}

	submission, err := BuildSubmission(sess, comment, attachmentIDs)
	if err != nil {
		return nil, err
	}

	if err := w.tickets.SaveQuoteSubmission(ctx, ticketID, sess.QuoteRequestID, submission); err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	if err := w.sessions.Delete(ctx, ticketID); err != nil {
		w.logger.Warn("failed to delete session after submit", "error", err, "ticket_id", ticketID)
	}
	for _, doc := range docs {
		if err := w.staging.Remove(*doc); err != nil {
			w.logger.Warn("failed to remove staged document", "error", err, "document_id", doc.ID)
		}
	}

	if w.events != nil {
		w.events.Publish(models.TicketEvent{
			Type:     models.EventQuoteSubmitted,
			TicketID: ticketID,
			Status:   models.TicketQuoteSubmitted,
			At:       time.Now(),
		})
	}

	w.logger.Info("quote submission persisted",
		"ticket_id", ticketID,
		"quote_request_id", sess.QuoteRequestID,
		"documents", len(docs))

	return submission, nil
}

func findSlot(sess *models.QuoteSession, groupID string, quoteNumber int) (*models.QuoteSlot, error) {
	group := sess.Group(groupID)
	if group == nil {
		return nil, ErrSlotNotFound
	}
	slot := group.Slot(quoteNumber)
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

func validatePrices(sess *models.QuoteSession) error {
	for gi := range sess.Groups {
		for si := range sess.Groups[gi].Slots {
			slot := &sess.Groups[gi].Slots[si]
			if slot.IsEmpty() {
				continue
			}
			if _, err := parsePrice(slot.Price); err != nil {
				return err
			}
		}
	}
	return nil
}
