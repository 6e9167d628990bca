package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Router interprets inbound frames and decides the persistence action, the
// recipient set and the outbound message for each. Handler failures are
// logged and swallowed: a storage hiccup must never drop a live session,
// and no error frame is sent to the client.
type Router struct {
	gateway  Gateway
	presence *Tracker
	registry *Registry
}

func NewRouter(gateway Gateway, presence *Tracker, registry *Registry) *Router {
	return &Router{gateway: gateway, presence: presence, registry: registry}
}

func (r *Router) Dispatch(ctx context.Context, s *Session, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Uint64("document_id", s.docID).Msg("handler panic recovered")
		}
	}()

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		log.Warn().Err(err).Uint64("document_id", s.docID).Uint64("user_id", s.userID).Msg("discarding malformed frame")
		return
	}

	metrics.WsMessagesTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case TypeEdit:
		r.handleEdit(ctx, s, raw)
	case TypeCursor:
		r.handleCursor(ctx, s, raw)
	case TypeComment:
		r.handleComment(ctx, s, raw)
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring unknown message type")
	}
}

// handleEdit persists the new content and echoes it to every session in the
// room, sender included, so the sender converges on the stored state rather
// than trusting its own optimistic buffer. The previous content goes into
// the version history. Last write wins in full; there is no merge.
func (r *Router) handleEdit(ctx context.Context, s *Session, raw []byte) {
	var in editInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warn().Err(err).Msg("discarding malformed edit")
		return
	}
	// absent and explicit-null content are both dropped, the document
	// always holds a structured tree
	if in.Content == nil || string(in.Content) == "null" {
		return
	}

	doc, err := r.gateway.LoadDocument(ctx, s.docID)
	if err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("edit: document load failed")
		return
	}
	previous := doc.Content

	changed, err := r.gateway.SaveDocumentContent(ctx, s.docID, in.Content)
	if err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("edit: content save failed")
		return
	}

	if changed {
		if _, err := r.gateway.AppendVersion(ctx, s.docID, previous, s.userID); err != nil {
			log.Error().Err(err).Uint64("document_id", s.docID).Msg("edit: version append failed")
		}
		if err := r.gateway.AppendActivity(ctx, s.docID, s.userID, domain.ActivityEdit, s.username+" edited the document"); err != nil {
			log.Error().Err(err).Uint64("document_id", s.docID).Msg("edit: activity append failed")
		}
	}

	r.registry.Broadcast(s.docID, EditBroadcast{
		Type:      TypeEdit,
		Content:   in.Content,
		Username:  s.username,
		UserID:    s.userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil)
}

// handleCursor updates the presence row and fans the position out to every
// other session; the sender already knows where its own cursor is.
func (r *Router) handleCursor(ctx context.Context, s *Session, raw []byte) {
	var in cursorInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warn().Err(err).Msg("discarding malformed cursor update")
		return
	}

	if err := r.presence.UpdateCursor(ctx, s.docID, s.userID, in.Position, in.SelectionStart, in.SelectionEnd); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Uint64("user_id", s.userID).Msg("cursor: presence update failed")
	}

	r.registry.Broadcast(s.docID, CursorBroadcast{
		Type:           TypeCursor,
		Username:       s.username,
		UserID:         s.userID,
		Position:       in.Position,
		SelectionStart: in.SelectionStart,
		SelectionEnd:   in.SelectionEnd,
	}, s)
}

// handleComment stores the comment and fans it out to the whole room.
// Whitespace-only comments are dropped silently. The position is a raw
// offset into the content at creation time and is never re-anchored.
func (r *Router) handleComment(ctx context.Context, s *Session, raw []byte) {
	var in commentInbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warn().Err(err).Msg("discarding malformed comment")
		return
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return
	}

	if err := r.gateway.InsertComment(ctx, s.docID, s.userID, content, in.Position); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("comment: insert failed")
		return
	}
	if err := r.gateway.AppendActivity(ctx, s.docID, s.userID, domain.ActivityComment, s.username+" added a comment"); err != nil {
		log.Error().Err(err).Uint64("document_id", s.docID).Msg("comment: activity append failed")
	}

	r.registry.Broadcast(s.docID, CommentBroadcast{
		Type:     TypeComment,
		Content:  content,
		Position: in.Position,
		Username: s.username,
		UserID:   s.userID,
	}, nil)
}
