package ws

import (
	"context"
	"encoding/json"

	"collaborative-document-editor/internal/domain"
)

// Gateway is the narrow persistence contract the session engine depends on.
// It is implemented by the document repository; each call is atomic on its
// own, the engine never wraps multiple calls in a transaction. A crash
// between a content save and its version insert leaves the history one step
// behind the content, which is an accepted gap.
type Gateway interface {
	LoadDocument(ctx context.Context, id uint64) (*domain.Document, error)
	SaveDocumentContent(ctx context.Context, id uint64, content json.RawMessage) (changed bool, err error)
	AppendVersion(ctx context.Context, docID uint64, previousContent json.RawMessage, authorID uint64) (int, error)
	UpsertPresence(ctx context.Context, docID, userID uint64, cursor, selStart, selEnd int) error
	DeletePresence(ctx context.Context, docID, userID uint64) error
	ListActivePresence(ctx context.Context, docID uint64) ([]domain.ActiveUser, error)
	InsertComment(ctx context.Context, docID, userID uint64, content string, position int) error
	AppendActivity(ctx context.Context, docID, userID uint64, activityType domain.ActivityType, description string) error
	CheckGrant(ctx context.Context, docID, userID uint64) (domain.Role, error)
}
