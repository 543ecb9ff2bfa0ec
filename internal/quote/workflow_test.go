package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/homzhub/ticket-engine/internal/catalog"
	"github.com/homzhub/ticket-engine/internal/models"
)

// memSessionStore mimics the serialize-on-write behavior of the Redis store
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string][]byte)}
}

func (s *memSessionStore) Get(ctx context.Context, ticketID string) (*models.QuoteSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.sessions[ticketID]
	if !ok {
		return nil, nil
	}
	var sess models.QuoteSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *memSessionStore) Put(ctx context.Context, sess *models.QuoteSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TicketID] = raw
	return nil
}

func (s *memSessionStore) Delete(ctx context.Context, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, ticketID)
	return nil
}

type fakeTicketStore struct {
	tickets     map[string]*models.Ticket
	requests    map[string]*models.QuoteRequest
	submissions map[string]*models.QuoteSubmission
	saveErr     error
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets:     make(map[string]*models.Ticket),
		requests:    make(map[string]*models.QuoteRequest),
		submissions: make(map[string]*models.QuoteSubmission),
	}
}

func (s *fakeTicketStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.tickets[id], nil
}

func (s *fakeTicketStore) GetQuoteRequest(ctx context.Context, id string) (*models.QuoteRequest, error) {
	return s.requests[id], nil
}

func (s *fakeTicketStore) SaveQuoteSubmission(ctx context.Context, ticketID, quoteRequestID string, sub *models.QuoteSubmission) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.submissions[ticketID] = sub
	if t, ok := s.tickets[ticketID]; ok {
		t.Status = models.TicketQuoteSubmitted
	}
	return nil
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads int
	failOn  string
}

func (u *fakeUploader) Upload(ctx context.Context, doc models.StagedDocument) (string, error) {
	u.mu.Lock()
	u.uploads++
	u.mu.Unlock()
	if u.failOn != "" && doc.FileName == u.failOn {
		return "", errors.New("upload failed")
	}
	return "att-" + doc.ID, nil
}

type memStager struct {
	mu    sync.Mutex
	next  int
	files map[string]bool
}

func newMemStager() *memStager {
	return &memStager{files: make(map[string]bool)}
}

func (s *memStager) Save(fileName, contentType string, r io.Reader) (*models.StagedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("doc-%d", s.next)
	s.files[id] = true
	return &models.StagedDocument{
		ID:          id,
		FileName:    fileName,
		ContentType: contentType,
		Path:        "/staging/" + id,
		StagedAt:    time.Now(),
	}, nil
}

func (s *memStager) Remove(doc models.StagedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, doc.ID)
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.TicketEvent
}

func (f *fakeSink) Publish(event models.TicketEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.NewCatalog()
	dir := t.TempDir()
	for _, c := range []struct{ id, name string }{
		{"plumbing", "Plumbing"},
		{"electrical", "Electrical"},
	} {
		path := filepath.Join(dir, c.id+".yaml")
		content := fmt.Sprintf("id: %s\nname: %s\n", c.id, c.name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	if err := cat.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	return cat
}

type fixture struct {
	workflow *Workflow
	sessions *memSessionStore
	tickets  *fakeTicketStore
	uploader *fakeUploader
	stager   *memStager
	sink     *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: newMemSessionStore(),
		tickets:  newFakeTicketStore(),
		uploader: &fakeUploader{},
		stager:   newMemStager(),
		sink:     &fakeSink{},
	}
	f.tickets.tickets["t1"] = &models.Ticket{
		ID:             "t1",
		Status:         models.TicketQuoteRequested,
		QuoteRequestID: "qr1",
	}
	f.tickets.requests["qr1"] = &models.QuoteRequest{
		ID:         "qr1",
		TicketID:   "t1",
		Categories: []string{"plumbing", "electrical"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.workflow = NewWorkflow(f.sessions, f.tickets, f.uploader, f.stager, testCatalog(t), f.sink, time.Hour, logger)
	return f
}

func TestStartSeedsThreeSlotsPerCategory(t *testing.T) {
	f := newFixture(t)

	sess, err := f.workflow.Start(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(sess.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(sess.Groups))
	}
	for _, g := range sess.Groups {
		if len(g.Slots) != models.SlotsPerCategory {
			t.Errorf("group %s has %d slots, want %d", g.GroupID, len(g.Slots), models.SlotsPerCategory)
		}
		for i, slot := range g.Slots {
			if slot.QuoteNumber != i+1 {
				t.Errorf("slot %d quote number = %d", i, slot.QuoteNumber)
			}
			if !slot.IsEmpty() {
				t.Errorf("slot %d not empty on start", i)
			}
		}
	}
	if sess.Currency != models.DefaultCurrency {
		t.Errorf("currency = %q, want %q", sess.Currency, models.DefaultCurrency)
	}
	if sess.ActiveIndex != 0 {
		t.Errorf("active index = %d, want 0", sess.ActiveIndex)
	}
}

func TestStartResumesExistingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.workflow.Start(ctx, "t1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.workflow.SetPrice(ctx, "t1", "plumbing", 1, "1500"); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}

	resumed, err := f.workflow.Start(ctx, "t1")
	if err != nil {
		t.Fatalf("Start() resume error = %v", err)
	}
	if !resumed.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("resume created a fresh session")
	}
	if got := resumed.Group("plumbing").Slot(1).Price; got != "1500" {
		t.Errorf("resumed price = %q, want 1500", got)
	}
}

func TestStartRequiresQuoteRequested(t *testing.T) {
	f := newFixture(t)
	f.tickets.tickets["t2"] = &models.Ticket{ID: "t2", Status: models.TicketOpen}

	if _, err := f.workflow.Start(context.Background(), "t2"); !errors.Is(err, ErrQuoteNotRequested) {
		t.Errorf("Start() error = %v, want ErrQuoteNotRequested", err)
	}
	if _, err := f.workflow.Start(context.Background(), "missing"); !errors.Is(err, ErrTicketNotFound) {
		t.Errorf("Start() error = %v, want ErrTicketNotFound", err)
	}
}

func TestSetPriceRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, bad := range []string{"abc", "-5", "12x", "NaN", "nan", "Inf", "+Inf", "infinity"} {
		if _, err := f.workflow.SetPrice(ctx, "t1", "plumbing", 1, bad); !errors.Is(err, ErrInvalidPrice) {
			t.Errorf("SetPrice(%q) error = %v, want ErrInvalidPrice", bad, err)
		}
	}

	if _, err := f.workflow.SetPrice(ctx, "t1", "plumbing", 1, "0"); err != nil {
		t.Errorf("SetPrice(0) error = %v", err)
	}
}

func TestAdvanceBlocksHalfFilledSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// price without document blocks advancement
	if _, err := f.workflow.SetPrice(ctx, "t1", "plumbing", 1, "2000"); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}
	_, err := f.workflow.Advance(ctx, "t1")
	if !errors.Is(err, ErrIncompleteSlots) {
		t.Fatalf("Advance() error = %v, want ErrIncompleteSlots", err)
	}
	if err.Error() != "pleaseFillDetails" {
		t.Errorf("refusal message = %q, want pleaseFillDetails", err.Error())
	}

	// completing the slot unblocks
	if _, err := f.workflow.AttachDocument(ctx, "t1", "plumbing", 1, "q.pdf", "application/pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("AttachDocument() error = %v", err)
	}
	sess, err := f.workflow.Advance(ctx, "t1")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if sess.ActiveIndex != 1 {
		t.Errorf("active index = %d, want 1", sess.ActiveIndex)
	}

	// last tab refuses further advancement
	if _, err := f.workflow.Advance(ctx, "t1"); !errors.Is(err, ErrLastCategory) {
		t.Errorf("Advance() on last tab error = %v, want ErrLastCategory", err)
	}
}

func TestAdvanceAllowsBlankGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// a group with no quotes at all is a legitimate "nothing offered" answer
	sess, err := f.workflow.Advance(ctx, "t1")
	if err != nil {
		t.Fatalf("Advance() over blank group error = %v", err)
	}
	if sess.ActiveIndex != 1 {
		t.Errorf("active index = %d, want 1", sess.ActiveIndex)
	}
}

func TestAdvanceRefusalKeepsIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.workflow.SetPrice(ctx, "t1", "plumbing", 2, "900"); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}

	if _, err := f.workflow.Advance(ctx, "t1"); !errors.Is(err, ErrIncompleteSlots) {
		t.Fatalf("Advance() error = %v, want ErrIncompleteSlots", err)
	}

	sess, err := f.workflow.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.ActiveIndex != 0 {
		t.Errorf("active index after refusal = %d, want 0", sess.ActiveIndex)
	}
}

func TestAttachDocumentReplacesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sess, err := f.workflow.AttachDocument(ctx, "t1", "plumbing", 1, "first.pdf", "application/pdf", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("AttachDocument() error = %v", err)
	}
	firstID := sess.Group("plumbing").Slot(1).Document.ID

	sess, err = f.workflow.AttachDocument(ctx, "t1", "plumbing", 1, "second.pdf", "application/pdf", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("AttachDocument() error = %v", err)
	}
	if got := sess.Group("plumbing").Slot(1).Document.FileName; got != "second.pdf" {
		t.Errorf("document = %q, want second.pdf", got)
	}
	if f.stager.files[firstID] {
		t.Errorf("replaced document %s not removed from staging", firstID)
	}
}

func TestRemoveDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.workflow.AttachDocument(ctx, "t1", "plumbing", 1, "q.pdf", "application/pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("AttachDocument() error = %v", err)
	}

	sess, err := f.workflow.RemoveDocument(ctx, "t1", "plumbing", 1)
	if err != nil {
		t.Fatalf("RemoveDocument() error = %v", err)
	}
	if sess.Group("plumbing").Slot(1).Document != nil {
		t.Errorf("document still attached after removal")
	}
	if len(f.stager.files) != 0 {
		t.Errorf("staged file not deleted")
	}
}

func fillSlot(t *testing.T, f *fixture, groupID string, n int, price string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.workflow.SetPrice(ctx, "t1", groupID, n, price); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}
	name := fmt.Sprintf("%s-%d.pdf", groupID, n)
	if _, err := f.workflow.AttachDocument(ctx, "t1", groupID, n, name, "application/pdf", strings.NewReader("pdf")); err != nil {
		t.Fatalf("AttachDocument() error = %v", err)
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	fillSlot(t, f, "plumbing", 1, "1500")
	fillSlot(t, f, "plumbing", 2, "1800.50")

	submission, err := f.workflow.Submit(ctx, "t1", "two plumbing offers")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if len(submission.QuoteGroup) != 2 {
		t.Fatalf("got %d groups, want 2", len(submission.QuoteGroup))
	}
	plumbing := submission.QuoteGroup[0]
	if plumbing.QuoteRequestCategory != "plumbing" {
		t.Errorf("category = %q", plumbing.QuoteRequestCategory)
	}
	if len(plumbing.Quotes) != 2 {
		t.Fatalf("got %d plumbing quotes, want 2", len(plumbing.Quotes))
	}
	if plumbing.Quotes[0].Price != 1500 || plumbing.Quotes[1].Price != 1800.50 {
		t.Errorf("prices = %v, %v", plumbing.Quotes[0].Price, plumbing.Quotes[1].Price)
	}
	if plumbing.Quotes[0].Currency != "INR" {
		t.Errorf("currency = %q, want INR", plumbing.Quotes[0].Currency)
	}
	if plumbing.Quotes[0].Attachment == "" {
		t.Errorf("quote missing attachment id")
	}

	// untouched category survives with an empty, non-nil quotes array
	electrical := submission.QuoteGroup[1]
	if electrical.Quotes == nil || len(electrical.Quotes) != 0 {
		t.Errorf("electrical quotes = %v, want empty array", electrical.Quotes)
	}

	// session is gone, ticket moved forward, event published
	if _, err := f.workflow.Get(ctx, "t1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session still live after submit")
	}
	if got := f.tickets.tickets["t1"].Status; got != models.TicketQuoteSubmitted {
		t.Errorf("ticket status = %q, want QUOTE_SUBMITTED", got)
	}
	if len(f.stager.files) != 0 {
		t.Errorf("staged files not cleaned up after submit")
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != models.EventQuoteSubmitted {
		t.Errorf("events = %+v, want one quote_submitted", f.sink.events)
	}
}

func TestSubmitUploadFailureLeavesSessionIntact(t *testing.T) {
	f := newFixture(t)
	f.uploader.failOn = "plumbing-2.pdf"
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	fillSlot(t, f, "plumbing", 1, "1500")
	fillSlot(t, f, "plumbing", 2, "1600")

	if _, err := f.workflow.Submit(ctx, "t1", ""); err == nil {
		t.Fatal("Submit() expected upload failure")
	}

	// nothing persisted, session and staged files survive for retry
	if len(f.tickets.submissions) != 0 {
		t.Errorf("submission persisted despite upload failure")
	}
	sess, err := f.workflow.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() after failed submit error = %v", err)
	}
	if got := sess.Group("plumbing").Slot(1).Price; got != "1500" {
		t.Errorf("session state lost after failed submit")
	}
	if len(f.stager.files) != 2 {
		t.Errorf("staged files removed despite failed submit")
	}

	// retry after the uploader recovers succeeds
	f.uploader.failOn = ""
	if _, err := f.workflow.Submit(ctx, "t1", ""); err != nil {
		t.Fatalf("Submit() retry error = %v", err)
	}
}

func TestSubmitPersistFailureLeavesSessionIntact(t *testing.T) {
	f := newFixture(t)
	f.tickets.saveErr = errors.New("db down")
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	fillSlot(t, f, "plumbing", 1, "900")

	if _, err := f.workflow.Submit(ctx, "t1", ""); err == nil {
		t.Fatal("Submit() expected persistence failure")
	}
	if _, err := f.workflow.Get(ctx, "t1"); err != nil {
		t.Errorf("session lost after persistence failure: %v", err)
	}
}

func TestSubmitRefusesHalfFilledSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.workflow.Start(ctx, "t1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := f.workflow.SetPrice(ctx, "t1", "electrical", 3, "400"); err != nil {
		t.Fatalf("SetPrice() error = %v", err)
	}

	if _, err := f.workflow.Submit(ctx, "t1", ""); !errors.Is(err, ErrIncompleteSlots) {
		t.Errorf("Submit() error = %v, want ErrIncompleteSlots", err)
	}
	if f.uploader.uploads != 0 {
		t.Errorf("uploads attempted before validation passed")
	}
}
