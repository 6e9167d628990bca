package document

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/errors"
	"collaborative-document-editor/internal/worker"
	"collaborative-document-editor/redis"

	"gorm.io/gorm"
)

type Service interface {
	CreateUserDocument(ctx context.Context, userID uint64, title string) (*domain.Document, error)
	GetUserDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error)
	GetSharedDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error)
	GetEditorPayload(ctx context.Context, docID uint64, userID uint64) (*EditorResponse, error)
	DeleteDocument(ctx context.Context, docID uint64, userID uint64) error
	ShareDocument(ctx context.Context, docID uint64, requesterID uint64, targetUsername string, role domain.Role) error
	TogglePublic(ctx context.Context, docID uint64, requesterID uint64) (bool, error)
	SaveVersion(ctx context.Context, docID uint64, requesterID uint64, summary string) (int, error)
	ListVersions(ctx context.Context, docID uint64, requesterID uint64) ([]VersionInfo, error)
	RestoreVersion(ctx context.Context, docID, versionID uint64, requesterID uint64) error
}

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
	GetUserByName(ctx context.Context, name string) (*domain.User, error)
}

type DefaultService struct {
	repository   DocumentRepository
	userProvider UserProvider
	cache        *redis.Cache
	pool         *worker.WorkerPool
}

func NewService(
	repository DocumentRepository,
	userProvider UserProvider,
	cache *redis.Cache,
	pool *worker.WorkerPool,
) Service {
	return &DefaultService{
		repository:   repository,
		userProvider: userProvider,
		cache:        cache,
		pool:         pool,
	}
}

// resolveRole computes the effective role of a user on a document: implicit
// ownership first, then the explicit grant row.
func (s *DefaultService) resolveRole(ctx context.Context, doc *domain.Document, userID uint64) (domain.Role, error) {
	if doc.OwnerID == userID {
		return domain.RoleOwner, nil
	}
	return s.repository.CheckGrant(ctx, doc.ID, userID)
}

// canRead mirrors the connect rule: owner, public document, or any grant.
func canRead(doc *domain.Document, role domain.Role) bool {
	return role != domain.RoleNone || doc.IsPublic
}

func (s *DefaultService) CreateUserDocument(ctx context.Context, userID uint64, title string) (*domain.Document, error) {
	if title == "" {
		title = "Untitled Document"
	}

	doc := &domain.Document{
		Title:   title,
		OwnerID: userID,
	}
	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, err
	}

	// bump cache version, so any new fetch will see the new document
	s.cache.IncrementVersion(ctx, versionKey(userID))

	return doc, nil
}

type PaginatedDocuments struct {
	Data []domain.Document `json:"data"`
	Meta DocumentsMeta     `json:"meta"`
}

func versionKey(userID uint64) string {
	return fmt.Sprintf("user:%d:docs:version", userID)
}

func (s *DefaultService) GetUserDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error) {
	// Get the current data version for this user's documents
	v := s.cache.GetVersion(ctx, versionKey(userID))
	cacheKey := fmt.Sprintf("docs:u:%d:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedDocuments
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	documents, meta, err := s.repository.ListOwned(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedDocuments{Data: documents, Meta: meta}
	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return &result, nil
}

func (s *DefaultService) GetSharedDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error) {
	documents, meta, err := s.repository.ListShared(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &PaginatedDocuments{Data: documents, Meta: meta}, nil
}

type EditorResponse struct {
	Document    *domain.Document          `json:"document"`
	Role        domain.Role               `json:"role"`
	CanEdit     bool                      `json:"can_edit"`
	ActiveUsers []domain.ActiveUser       `json:"active_users"`
	Comments    []domain.DocumentComment  `json:"comments"`
	Activities  []domain.DocumentActivity `json:"activities"`
}

func (s *DefaultService) GetEditorPayload(ctx context.Context, docID uint64, userID uint64) (*EditorResponse, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}

	role, err := s.resolveRole(ctx, doc, userID)
	if err != nil {
		return nil, err
	}
	if !canRead(doc, role) {
		return nil, errors.Forbidden("You don't have access to this document", nil)
	}

	active, err := s.repository.ListActivePresence(ctx, docID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		active[i].Color = domain.CursorColor(active[i].ID)
	}

	comments, err := s.repository.ListComments(ctx, docID)
	if err != nil {
		return nil, err
	}

	activities, err := s.repository.ListActivities(ctx, docID, 20)
	if err != nil {
		return nil, err
	}

	return &EditorResponse{
		Document:    doc,
		Role:        role,
		CanEdit:     role.CanEdit(),
		ActiveUsers: active,
		Comments:    comments,
		Activities:  activities,
	}, nil
}

func (s *DefaultService) DeleteDocument(ctx context.Context, docID uint64, userID uint64) error {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	if doc.OwnerID != userID {
		return errors.Forbidden("Only owner can delete document", nil)
	}

	if err := s.repository.Delete(ctx, docID); err != nil {
		return err
	}

	s.cache.IncrementVersion(ctx, versionKey(userID))
	return nil
}

func (s *DefaultService) ShareDocument(ctx context.Context, docID uint64, requesterID uint64, targetUsername string, role domain.Role) error {
	if role != domain.RoleEditor && role != domain.RoleViewer {
		return errors.BadRequest("Role must be editor or viewer", nil)
	}

	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	if doc.OwnerID != requesterID {
		return errors.Forbidden("Only owner can share document", nil)
	}

	target, err := s.userProvider.GetUserByName(ctx, targetUsername)
	if err != nil {
		return errors.NotFound(fmt.Sprintf("User %q not found", targetUsername), err)
	}

	if target.ID == requesterID {
		return errors.BadRequest("Cannot share document with yourself", nil)
	}

	existing, err := s.repository.CheckGrant(ctx, docID, target.ID)
	if err != nil {
		return err
	}
	if existing != domain.RoleNone {
		return errors.Conflict(fmt.Sprintf("Document already shared with %s", targetUsername), nil)
	}

	if err := s.repository.GrantPermission(ctx, docID, target.ID, role); err != nil {
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Conflict(fmt.Sprintf("Document already shared with %s", targetUsername), err)
		}
		return err
	}

	// shared documents show up in the target's dashboard
	s.cache.IncrementVersion(ctx, versionKey(target.ID))

	description := fmt.Sprintf("Shared with %s (%s)", target.Name, role)
	s.pool.Submit(func(taskCtx context.Context) error {
		return s.repository.AppendActivity(taskCtx, docID, requesterID, domain.ActivityShare, description)
	})

	return nil
}

func (s *DefaultService) TogglePublic(ctx context.Context, docID uint64, requesterID uint64) (bool, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return false, errors.NotFound("Document not found", err)
		}
		return false, err
	}

	if doc.OwnerID != requesterID {
		return false, errors.Forbidden("Only owner can change visibility", nil)
	}

	newState := !doc.IsPublic
	if err := s.repository.SetPublic(ctx, docID, newState); err != nil {
		return false, err
	}
	return newState, nil
}

func (s *DefaultService) SaveVersion(ctx context.Context, docID uint64, requesterID uint64, summary string) (int, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.NotFound("Document not found", err)
		}
		return 0, err
	}

	role, err := s.resolveRole(ctx, doc, requesterID)
	if err != nil {
		return 0, err
	}
	if !role.CanEdit() {
		return 0, errors.Forbidden("Only editors can save versions", nil)
	}

	if summary == "" {
		summary = "Manual save"
	}

	return s.repository.AppendVersionWithSummary(ctx, docID, doc.Content, requesterID, summary)
}

func (s *DefaultService) ListVersions(ctx context.Context, docID uint64, requesterID uint64) ([]VersionInfo, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, err
	}

	role, err := s.resolveRole(ctx, doc, requesterID)
	if err != nil {
		return nil, err
	}
	if !canRead(doc, role) {
		return nil, errors.Forbidden("You don't have access to this document", nil)
	}

	return s.repository.ListVersions(ctx, docID)
}

func (s *DefaultService) RestoreVersion(ctx context.Context, docID, versionID uint64, requesterID uint64) error {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return err
	}

	role, err := s.resolveRole(ctx, doc, requesterID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return errors.Forbidden("Only editors can restore versions", nil)
	}

	version, err := s.repository.FindVersion(ctx, docID, versionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return errors.NotFound("Version not found", err)
		}
		return err
	}

	if _, err := s.repository.SaveDocumentContent(ctx, docID, version.Content); err != nil {
		return err
	}

	description := fmt.Sprintf("Restored to version %d", version.VersionNumber)
	s.pool.Submit(func(taskCtx context.Context) error {
		return s.repository.AppendActivity(taskCtx, docID, requesterID, domain.ActivityEdit, description)
	})

	return nil
}
