package quote

import (
	"fmt"
	"math"
	"strconv"

	"github.com/homzhub/ticket-engine/internal/models"
)

// parsePrice converts a slot price string to a number, rejecting anything
// that is not a non-negative decimal. ParseFloat also accepts NaN and the
// infinities, which would break JSON encoding downstream, so those are
// rejected explicitly.
func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return price, nil
}

// BuildSubmission assembles the nested submission payload from a completed
// session. attachmentIDs maps staged document ids to the attachment ids
// returned by the upload service. Every group appears in the output, keyed
// by category, with an empty quotes array when all its slots were left blank.
func BuildSubmission(sess *models.QuoteSession, comment string, attachmentIDs map[string]string) (*models.QuoteSubmission, error) {
	submission := &models.QuoteSubmission{
		QuoteGroup: make([]models.SubmittedGroup, 0, len(sess.Groups)),
		Comment:    comment,
	}

	for gi := range sess.Groups {
		group := &sess.Groups[gi]
		out := models.SubmittedGroup{
			QuoteRequestCategory: group.GroupID,
			Quotes:               make([]models.SubmittedQuote, 0, len(group.Slots)),
		}

		for si := range group.Slots {
			slot := &group.Slots[si]
			if slot.IsEmpty() {
				continue
			}
			if !slot.IsComplete() {
				return nil, ErrIncompleteSlots
			}

			price, err := parsePrice(slot.Price)
			if err != nil {
				return nil, err
			}

			attachment, ok := attachmentIDs[slot.Document.ID]
			if !ok {
				return nil, fmt.Errorf("no attachment id for document %s", slot.Document.ID)
			}

			out.Quotes = append(out.Quotes, models.SubmittedQuote{
				QuoteNumber: slot.QuoteNumber,
				Price:       price,
				Currency:    sess.Currency,
				Attachment:  attachment,
			})
		}

		submission.QuoteGroup = append(submission.QuoteGroup, out)
	}

	return submission, nil
}
