package quote

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/homzhub/ticket-engine/internal/models"
)

func sessionWithSlots(t *testing.T) *models.QuoteSession {
	t.Helper()
	sess := &models.QuoteSession{
		TicketID: "t1",
		Currency: "INR",
		Groups: []models.QuoteGroup{
			models.NewQuoteGroup(models.QuoteCategory{ID: "plumbing", Name: "Plumbing"}),
			models.NewQuoteGroup(models.QuoteCategory{ID: "painting", Name: "Painting"}),
		},
	}
	slot := sess.Group("plumbing").Slot(1)
	slot.Price = "2500"
	slot.Document = &models.StagedDocument{ID: "doc-1", FileName: "a.pdf"}
	return sess
}

func TestBuildSubmission(t *testing.T) {
	sess := sessionWithSlots(t)

	sub, err := BuildSubmission(sess, "please review", map[string]string{"doc-1": "att-1"})
	if err != nil {
		t.Fatalf("BuildSubmission() error = %v", err)
	}
	if sub.Comment != "please review" {
		t.Errorf("comment = %q", sub.Comment)
	}
	if len(sub.QuoteGroup) != 2 {
		t.Fatalf("got %d groups, want 2", len(sub.QuoteGroup))
	}
	q := sub.QuoteGroup[0].Quotes
	if len(q) != 1 || q[0].Price != 2500 || q[0].Attachment != "att-1" || q[0].Currency != "INR" {
		t.Errorf("quotes = %+v", q)
	}
}

func TestBuildSubmissionEmptyGroupMarshalsAsArray(t *testing.T) {
	sess := sessionWithSlots(t)

	sub, err := BuildSubmission(sess, "", map[string]string{"doc-1": "att-1"})
	if err != nil {
		t.Fatalf("BuildSubmission() error = %v", err)
	}

	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(raw), `"quotes":null`) {
		t.Errorf("empty group marshaled as null: %s", raw)
	}
	if !strings.Contains(string(raw), `"quotes":[]`) {
		t.Errorf("empty group should marshal as []: %s", raw)
	}
	if strings.Contains(string(raw), `"comment"`) {
		t.Errorf("empty comment should be omitted: %s", raw)
	}
}

func TestBuildSubmissionMissingAttachment(t *testing.T) {
	sess := sessionWithSlots(t)

	if _, err := BuildSubmission(sess, "", map[string]string{}); err == nil {
		t.Error("BuildSubmission() expected error for missing attachment id")
	}
}

func TestBuildSubmissionHalfFilledSlot(t *testing.T) {
	sess := sessionWithSlots(t)
	sess.Group("painting").Slot(2).Price = "100"

	if _, err := BuildSubmission(sess, "", map[string]string{"doc-1": "att-1"}); !errors.Is(err, ErrIncompleteSlots) {
		t.Errorf("BuildSubmission() error = %v, want ErrIncompleteSlots", err)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"1500", 1500, false},
		{"0", 0, false},
		{"99.99", 99.99, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"nan", 0, true},
		{"Inf", 0, true},
		{"+Inf", 0, true},
		{"-Inf", 0, true},
		{"infinity", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePrice(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("parsePrice(%q) error = %v, want ErrInvalidPrice", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePrice(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
