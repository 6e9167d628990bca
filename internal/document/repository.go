package document

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"collaborative-document-editor/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepository interface {
	// document lifecycle
	Create(ctx context.Context, document *domain.Document) error
	FindByID(ctx context.Context, id uint64) (*domain.Document, error)
	ListOwned(ctx context.Context, userID uint64, page, pageSize int) ([]domain.Document, DocumentsMeta, error)
	ListShared(ctx context.Context, userID uint64, page, pageSize int) ([]domain.Document, DocumentsMeta, error)
	Delete(ctx context.Context, id uint64) error
	SetPublic(ctx context.Context, id uint64, public bool) error

	// persistence gateway for the realtime engine
	LoadDocument(ctx context.Context, id uint64) (*domain.Document, error)
	SaveDocumentContent(ctx context.Context, id uint64, content json.RawMessage) (bool, error)
	AppendVersion(ctx context.Context, docID uint64, previousContent json.RawMessage, authorID uint64) (int, error)
	UpsertPresence(ctx context.Context, docID, userID uint64, cursor, selStart, selEnd int) error
	DeletePresence(ctx context.Context, docID, userID uint64) error
	ListActivePresence(ctx context.Context, docID uint64) ([]domain.ActiveUser, error)
	InsertComment(ctx context.Context, docID, userID uint64, content string, position int) error
	AppendActivity(ctx context.Context, docID, userID uint64, activityType domain.ActivityType, description string) error
	CheckGrant(ctx context.Context, docID, userID uint64) (domain.Role, error)

	// permissions
	GrantPermission(ctx context.Context, docID, userID uint64, role domain.Role) error

	// history and annotations
	AppendVersionWithSummary(ctx context.Context, docID uint64, content json.RawMessage, authorID uint64, summary string) (int, error)
	ListVersions(ctx context.Context, docID uint64) ([]VersionInfo, error)
	FindVersion(ctx context.Context, docID, versionID uint64) (*domain.DocumentVersion, error)
	ListComments(ctx context.Context, docID uint64) ([]domain.DocumentComment, error)
	ListActivities(ctx context.Context, docID uint64, limit int) ([]domain.DocumentActivity, error)
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new document repository
func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *domain.Document) error {
	now := time.Now().UTC()
	document.CreatedAt = now
	document.UpdatedAt = now
	if len(document.Content) == 0 {
		document.Content = json.RawMessage(domain.DefaultContent)
	}
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) ListOwned(ctx context.Context, userID uint64, page, pageSize int) ([]domain.Document, DocumentsMeta, error) {
	var documents []domain.Document
	var totalRecords int64

	// Count total records
	if err := r.db.WithContext(ctx).Model(&domain.Document{}).Where("owner_id = ?", userID).Count(&totalRecords).Error; err != nil {
		return documents, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).Where("owner_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&documents).Error

	return documents, paginationMeta(totalRecords, page, pageSize), err
}

func (r *DocumentRepositoryImpl) ListShared(ctx context.Context, userID uint64, page, pageSize int) ([]domain.Document, DocumentsMeta, error) {
	var documents []domain.Document
	var totalRecords int64

	base := r.db.WithContext(ctx).Model(&domain.Document{}).
		Joins("JOIN document_permissions dp ON dp.document_id = documents.id").
		Where("dp.user_id = ?", userID)

	if err := base.Count(&totalRecords).Error; err != nil {
		return documents, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := base.
		Order("documents.updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&documents).Error

	return documents, paginationMeta(totalRecords, page, pageSize), err
}

func paginationMeta(total int64, page, pageSize int) DocumentsMeta {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return DocumentsMeta{
		Total:       total,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id uint64) error {
	// versions, comments, permissions, presence and activity go with the document
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&domain.DocumentVersion{},
			&domain.DocumentComment{},
			&domain.DocumentPermission{},
			&domain.UserPresence{},
			&domain.DocumentActivity{},
		} {
			if err := tx.Where("document_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&domain.Document{}, id).Error
	})
}

func (r *DocumentRepositoryImpl) SetPublic(ctx context.Context, id uint64, public bool) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", id).
		Update("is_public", public).Error
}

// LoadDocument fetches the authoritative document row.
func (r *DocumentRepositoryImpl) LoadDocument(ctx context.Context, id uint64) (*domain.Document, error) {
	return r.FindByID(ctx, id)
}

// SaveDocumentContent overwrites the content if it differs from what is
// stored and reports whether a write happened. The row is locked so two
// concurrent saves cannot interleave their compare and write.
func (r *DocumentRepositoryImpl) SaveDocumentContent(ctx context.Context, id uint64, content json.RawMessage) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc domain.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, id).Error; err != nil {
			return err
		}

		if bytes.Equal(doc.Content, content) {
			return nil
		}

		changed = true
		return tx.Model(&domain.Document{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"content":    content,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	return changed, err
}

// AppendVersion stores a snapshot of the previous content. Version numbers
// are allocated under the parent document's row lock so they come out
// gapless even with concurrent editors.
func (r *DocumentRepositoryImpl) AppendVersion(ctx context.Context, docID uint64, previousContent json.RawMessage, authorID uint64) (int, error) {
	return r.appendVersion(ctx, docID, previousContent, authorID, "")
}

func (r *DocumentRepositoryImpl) AppendVersionWithSummary(ctx context.Context, docID uint64, content json.RawMessage, authorID uint64, summary string) (int, error) {
	return r.appendVersion(ctx, docID, content, authorID, summary)
}

func (r *DocumentRepositoryImpl) appendVersion(ctx context.Context, docID uint64, content json.RawMessage, authorID uint64, summary string) (int, error) {
	var number int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize allocation per document
		if err := tx.Exec("SELECT id FROM documents WHERE id = ? FOR UPDATE", docID).Error; err != nil {
			return err
		}

		if err := tx.Raw(
			"SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = ?",
			docID,
		).Scan(&number).Error; err != nil {
			return err
		}

		return tx.Create(&domain.DocumentVersion{
			DocumentID:    docID,
			Content:       content,
			AuthorID:      authorID,
			VersionNumber: number,
			ChangeSummary: summary,
			CreatedAt:     time.Now().UTC(),
		}).Error
	})
	return number, err
}

func (r *DocumentRepositoryImpl) UpsertPresence(ctx context.Context, docID, userID uint64, cursor, selStart, selEnd int) error {
	presence := domain.UserPresence{
		DocumentID:     docID,
		UserID:         userID,
		CursorPosition: cursor,
		SelectionStart: selStart,
		SelectionEnd:   selEnd,
		IsOnline:       true,
		LastSeen:       time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor_position", "selection_start", "selection_end", "is_online", "last_seen",
		}),
	}).Create(&presence).Error
}

func (r *DocumentRepositoryImpl) DeletePresence(ctx context.Context, docID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Delete(&domain.UserPresence{}).Error
}

func (r *DocumentRepositoryImpl) ListActivePresence(ctx context.Context, docID uint64) ([]domain.ActiveUser, error) {
	var users []domain.ActiveUser
	err := r.db.WithContext(ctx).
		Table("user_presences").
		Select("user_presences.user_id AS id, users.name AS username, user_presences.cursor_position, user_presences.last_seen").
		Joins("JOIN users ON users.id = user_presences.user_id").
		Where("user_presences.document_id = ?", docID).
		Order("user_presences.user_id ASC").
		Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *DocumentRepositoryImpl) InsertComment(ctx context.Context, docID, userID uint64, content string, position int) error {
	return r.db.WithContext(ctx).Create(&domain.DocumentComment{
		DocumentID: docID,
		UserID:     userID,
		Content:    content,
		Position:   position,
		CreatedAt:  time.Now().UTC(),
	}).Error
}

func (r *DocumentRepositoryImpl) AppendActivity(ctx context.Context, docID, userID uint64, activityType domain.ActivityType, description string) error {
	return r.db.WithContext(ctx).Create(&domain.DocumentActivity{
		DocumentID:   docID,
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
		CreatedAt:    time.Now().UTC(),
	}).Error
}

// CheckGrant returns the explicit permission row role, or RoleNone. Ownership
// is not represented as a row and is resolved by the caller.
func (r *DocumentRepositoryImpl) CheckGrant(ctx context.Context, docID, userID uint64) (domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Model(&domain.DocumentPermission{}).
		Where("document_id = ? AND user_id = ?", docID, userID).
		Select("role").
		Scan(&role).Error
	if err != nil {
		return domain.RoleNone, err
	}
	if role == "" {
		return domain.RoleNone, nil
	}
	return role, nil
}

func (r *DocumentRepositoryImpl) GrantPermission(ctx context.Context, docID, userID uint64, role domain.Role) error {
	return r.db.WithContext(ctx).Create(&domain.DocumentPermission{
		DocumentID: docID,
		UserID:     userID,
		Role:       role,
		CreatedAt:  time.Now().UTC(),
	}).Error
}

type VersionInfo struct {
	ID            uint64    `json:"id"`
	VersionNumber int       `json:"version_number"`
	AuthorName    string    `json:"author_name"`
	ChangeSummary string    `json:"change_summary"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *DocumentRepositoryImpl) ListVersions(ctx context.Context, docID uint64) ([]VersionInfo, error) {
	var versions []VersionInfo
	err := r.db.WithContext(ctx).
		Table("document_versions").
		Select("document_versions.id, document_versions.version_number, users.name AS author_name, document_versions.change_summary, document_versions.created_at").
		Joins("LEFT JOIN users ON users.id = document_versions.author_id").
		Where("document_versions.document_id = ?", docID).
		Order("document_versions.version_number DESC").
		Scan(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *DocumentRepositoryImpl) FindVersion(ctx context.Context, docID, versionID uint64) (*domain.DocumentVersion, error) {
	var version domain.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("id = ? AND document_id = ?", versionID, docID).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *DocumentRepositoryImpl) ListComments(ctx context.Context, docID uint64) ([]domain.DocumentComment, error) {
	var comments []domain.DocumentComment
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *DocumentRepositoryImpl) ListActivities(ctx context.Context, docID uint64, limit int) ([]domain.DocumentActivity, error) {
	var activities []domain.DocumentActivity
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}
