// Package createdraft provides the create_draft action executor.
package createdraft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
)

var (
	// ErrRecipientRequired is returned when the payload carries no recipient.
	ErrRecipientRequired = errors.New("missing or invalid 'to' in payload")
	// ErrSubjectRequired is returned when the payload carries no subject.
	ErrSubjectRequired = errors.New("missing or invalid 'subject' in payload")
)

// Executor stores an outgoing message draft for later review or send.
type Executor struct {
	drafts persistence.DraftRepository
}

// Execute validates the payload and persists a new unsent draft.
func (e *Executor) Execute(ctx context.Context, payload map[string]any, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "create_draft_action")

	to, _ := payload["to"].(string)
	if to == "" {
		return nil, ErrRecipientRequired
	}

	subject, _ := payload["subject"].(string)
	if subject == "" {
		return nil, ErrSubjectRequired
	}

	body, _ := payload["body"].(string)
	inReplyTo, _ := payload["in_reply_to"].(string)

	draft := &models.Draft{
		ID:        models.NewID("draft"),
		To:        to,
		Subject:   subject,
		Body:      body,
		InReplyTo: inReplyTo,
	}

	err := e.drafts.Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}

	logger.InfoContext(ctx, "Draft created", "draft_id", draft.ID, "to", draft.To)

	return map[string]any{
		"draft_id": draft.ID,
		"to":       draft.To,
		"subject":  draft.Subject,
	}, nil
}
