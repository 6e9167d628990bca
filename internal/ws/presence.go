package ws

import (
	"context"

	"collaborative-document-editor/internal/domain"
)

// Tracker maintains the persisted view of who is attached to a document.
type Tracker struct {
	gateway Gateway
}

func NewTracker(gateway Gateway) *Tracker {
	return &Tracker{gateway: gateway}
}

// Connect upserts the presence row for a freshly joined user, cursor at 0.
func (t *Tracker) Connect(ctx context.Context, docID, userID uint64) error {
	return t.gateway.UpsertPresence(ctx, docID, userID, 0, 0, 0)
}

func (t *Tracker) UpdateCursor(ctx context.Context, docID, userID uint64, position, selStart, selEnd int) error {
	return t.gateway.UpsertPresence(ctx, docID, userID, position, selStart, selEnd)
}

func (t *Tracker) Disconnect(ctx context.Context, docID, userID uint64) error {
	return t.gateway.DeletePresence(ctx, docID, userID)
}

// Active returns the live participants ordered by user id, with their
// display colors filled in.
func (t *Tracker) Active(ctx context.Context, docID uint64) ([]domain.ActiveUser, error) {
	users, err := t.gateway.ListActivePresence(ctx, docID)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Color = domain.CursorColor(users[i].ID)
	}
	return users, nil
}
