package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultContent is the structured document a fresh document starts with.
const DefaultContent = `{"type":"doc","content":[]}`

// Role is an access level on a document. The owner's role is implicit
// (Document.OwnerID), never stored as a permission row.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
	RoleNone   Role = "none"
)

// CanEdit reports whether the role allows changing document content.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// User represents a user in the system
type User struct {
	ID           uint64
	Name         string `gorm:"uniqueIndex;size:150"`
	Email        string `gorm:"uniqueIndex"`
	Password     string `gorm:"-"` // input only, not stored in db
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool `gorm:"default:true"`
	TokenVersion uint64
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ToSafeUser converts a User to a SafeUser
func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}

type Document struct {
	ID        uint64          `json:"id"`
	Title     string          `json:"title" gorm:"size:255;default:'Untitled Document'"`
	Content   json.RawMessage `json:"content" gorm:"type:jsonb"`
	OwnerID   uint64          `json:"owner_id" gorm:"index;not null"`
	Owner     User            `json:"-"`
	IsPublic  bool            `json:"is_public" gorm:"default:false"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Permissions []DocumentPermission `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Versions    []DocumentVersion    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Comments    []DocumentComment    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// DocumentPermission is an explicit grant of access to a non-owner.
type DocumentPermission struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `json:"document_id" gorm:"uniqueIndex:idx_permission_doc_user;not null"`
	UserID     uint64    `json:"user_id" gorm:"uniqueIndex:idx_permission_doc_user;not null"`
	User       User      `json:"-"`
	Role       Role      `json:"role" gorm:"size:10"`
	CreatedAt  time.Time `json:"created_at"`
}

// DocumentVersion is an immutable snapshot of prior document content.
// VersionNumber starts at 1 and is strictly increasing per document.
type DocumentVersion struct {
	ID            uint64          `json:"id"`
	DocumentID    uint64          `json:"document_id" gorm:"index;not null"`
	Content       json.RawMessage `json:"content" gorm:"type:jsonb"`
	AuthorID      uint64          `json:"author_id"`
	Author        User            `json:"-" gorm:"foreignKey:AuthorID"`
	VersionNumber int             `json:"version_number" gorm:"not null"`
	ChangeSummary string          `json:"change_summary" gorm:"size:255"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DocumentComment is an annotation anchored at a character offset into the
// content at creation time. Positions are not re-anchored on later edits.
type DocumentComment struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `json:"document_id" gorm:"index;not null"`
	UserID     uint64    `json:"user_id"`
	User       User      `json:"-"`
	Content    string    `json:"content"`
	Position   int       `json:"position"`
	Resolved   bool      `json:"resolved" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserPresence is a live participant's cursor state. The row exists only
// while the user is connected and is deleted on clean disconnect.
type UserPresence struct {
	ID             uint64    `json:"id"`
	DocumentID     uint64    `json:"document_id" gorm:"uniqueIndex:idx_presence_doc_user;not null"`
	UserID         uint64    `json:"user_id" gorm:"uniqueIndex:idx_presence_doc_user;not null"`
	User           User      `json:"-"`
	CursorPosition int       `json:"cursor_position" gorm:"default:0"`
	SelectionStart int       `json:"selection_start" gorm:"default:0"`
	SelectionEnd   int       `json:"selection_end" gorm:"default:0"`
	IsOnline       bool      `json:"is_online" gorm:"default:true"`
	LastSeen       time.Time `json:"last_seen"`
}

type ActivityType string

const (
	ActivityEdit    ActivityType = "edit"
	ActivityComment ActivityType = "comment"
	ActivityShare   ActivityType = "share"
	ActivityJoin    ActivityType = "join"
	ActivityLeave   ActivityType = "leave"
)

// DocumentActivity is an append-only audit entry.
type DocumentActivity struct {
	ID           uint64       `json:"id"`
	DocumentID   uint64       `json:"document_id" gorm:"index;not null"`
	UserID       uint64       `json:"user_id"`
	User         User         `json:"-"`
	ActivityType ActivityType `json:"activity_type" gorm:"size:20"`
	Description  string       `json:"description" gorm:"size:255"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CursorColor derives a stable display color from a user id, so the same
// user always renders with the same cursor color.
func CursorColor(userID uint64) string {
	return fmt.Sprintf("hsl(%d, 70%%, 60%%)", userID*60%360)
}

// ActiveUser is the presence view shown to room participants.
type ActiveUser struct {
	ID             uint64    `json:"id"`
	Username       string    `json:"username"`
	CursorPosition int       `json:"cursor_position"`
	Color          string    `json:"color"`
	LastSeen       time.Time `json:"last_seen"`
}
