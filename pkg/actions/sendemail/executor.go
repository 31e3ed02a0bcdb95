// Package sendemail provides the send_email action executor. Actual mail
// transport is out of scope: sending records the send against a draft, which
// downstream reporting reads as the outbox.
package sendemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

// ErrNothingToSend is returned when the payload has neither a draft_id nor an
// inline to/subject pair.
var ErrNothingToSend = errors.New("payload needs 'draft_id' or 'to' and 'subject'")

// Executor marks a draft as sent, creating the draft first for inline sends.
type Executor struct {
	drafts persistence.DraftRepository
}

// Execute sends either an existing draft (payload draft_id) or an inline
// message (payload to/subject/body, stored as an already-sent draft).
// Sending a draft twice is a no-op reported in the result.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "send_email_action")

	if draftID, ok := payload["draft_id"].(string); ok && draftID != "" {
		return e.sendDraft(ctx, draftID, logger)
	}

	to, _ := payload["to"].(string)
	subject, _ := payload["subject"].(string)

	if to == "" || subject == "" {
		return nil, ErrNothingToSend
	}

	body, _ := payload["body"].(string)
	inReplyTo, _ := payload["in_reply_to"].(string)
	now := time.Now().UTC()

	draft := &models.Draft{
		ID:        models.NewID("draft"),
		To:        to,
		Subject:   subject,
		Body:      body,
		InReplyTo: inReplyTo,
		Sent:      true,
		SentAt:    &now,
	}

	err := e.drafts.Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to save sent message: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "draft_id", draft.ID, "to", draft.To)

	return map[string]any{
		"draft_id": draft.ID,
		"to":       draft.To,
		"subject":  draft.Subject,
		"sent":     true,
	}, nil
}

func (e *Executor) sendDraft(ctx context.Context, draftID string, logger *slog.Logger) (map[string]any, error) {
	draft, err := e.drafts.GetByID(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft %s: %w", draftID, err)
	}

	if draft.Sent {
		return map[string]any{
			"draft_id":     draft.ID,
			"to":           draft.To,
			"subject":      draft.Subject,
			"sent":         true,
			"already_sent": true,
		}, nil
	}

	now := time.Now().UTC()
	draft.Sent = true
	draft.SentAt = &now

	err = e.drafts.Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to save draft %s: %w", draftID, err)
	}

	logger.InfoContext(ctx, "Email sent", "draft_id", draft.ID, "to", draft.To)

	return map[string]any{
		"draft_id": draft.ID,
		"to":       draft.To,
		"subject":  draft.Subject,
		"sent":     true,
	}, nil
}
