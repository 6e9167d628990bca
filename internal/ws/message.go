package ws

import (
	"encoding/json"

	"collaborative-document-editor/internal/domain"
)

// Inbound message types.
const (
	TypeEdit    = "edit"
	TypeCursor  = "cursor"
	TypeComment = "comment"
)

// Outbound message types.
const (
	TypeDocumentLoad = "document_load"
	TypeUserJoined   = "user_joined"
	TypeUserLeft     = "user_left"
)

// envelope is decoded first to pick the discriminant.
type envelope struct {
	Type string `json:"type"`
}

type editInbound struct {
	Content json.RawMessage `json:"content"`
}

type cursorInbound struct {
	Position       int `json:"position"`
	SelectionStart int `json:"selection_start"`
	SelectionEnd   int `json:"selection_end"`
}

type commentInbound struct {
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// DocumentLoadMessage is sent once, to the newly joined session only.
type DocumentLoadMessage struct {
	Type        string              `json:"type"`
	Content     json.RawMessage     `json:"content"`
	Title       string              `json:"title"`
	ActiveUsers []domain.ActiveUser `json:"active_users"`
}

type EditBroadcast struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	Username  string          `json:"username"`
	UserID    uint64          `json:"user_id"`
	Timestamp string          `json:"timestamp"`
}

type CursorBroadcast struct {
	Type           string `json:"type"`
	Username       string `json:"username"`
	UserID         uint64 `json:"user_id"`
	Position       int    `json:"position"`
	SelectionStart int    `json:"selection_start"`
	SelectionEnd   int    `json:"selection_end"`
}

// PresenceBroadcast announces user_joined and user_left events.
type PresenceBroadcast struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	UserID   uint64 `json:"user_id"`
}

type CommentBroadcast struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Position int    `json:"position"`
	Username string `json:"username"`
	UserID   uint64 `json:"user_id"`
}
