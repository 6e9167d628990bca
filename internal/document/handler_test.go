package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"collaborative-document-editor/internal/domain"
	apiErrors "collaborative-document-editor/internal/errors"
	"collaborative-document-editor/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateUserDocument(ctx context.Context, userID uint64, title string) (*domain.Document, error) {
	args := m.Called(ctx, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockService) GetUserDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaginatedDocuments), args.Error(1)
}

func (m *MockService) GetSharedDocuments(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedDocuments, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaginatedDocuments), args.Error(1)
}

func (m *MockService) GetEditorPayload(ctx context.Context, docID uint64, userID uint64) (*EditorResponse, error) {
	args := m.Called(ctx, docID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EditorResponse), args.Error(1)
}

func (m *MockService) DeleteDocument(ctx context.Context, docID uint64, userID uint64) error {
	args := m.Called(ctx, docID, userID)
	return args.Error(0)
}

func (m *MockService) ShareDocument(ctx context.Context, docID uint64, requesterID uint64, targetUsername string, role domain.Role) error {
	args := m.Called(ctx, docID, requesterID, targetUsername, role)
	return args.Error(0)
}

func (m *MockService) TogglePublic(ctx context.Context, docID uint64, requesterID uint64) (bool, error) {
	args := m.Called(ctx, docID, requesterID)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) SaveVersion(ctx context.Context, docID uint64, requesterID uint64, summary string) (int, error) {
	args := m.Called(ctx, docID, requesterID, summary)
	return args.Int(0), args.Error(1)
}

func (m *MockService) ListVersions(ctx context.Context, docID uint64, requesterID uint64) ([]VersionInfo, error) {
	args := m.Called(ctx, docID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VersionInfo), args.Error(1)
}

func (m *MockService) RestoreVersion(ctx context.Context, docID, versionID uint64, requesterID uint64) error {
	args := m.Called(ctx, docID, versionID, requesterID)
	return args.Error(0)
}

func setupRouter(handler *Handler, userID uint64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
	})

	router.POST("/documents", handler.Create)
	router.GET("/documents", handler.ShowUserDocuments)
	router.GET("/documents/shared", handler.ShowSharedDocuments)
	router.GET("/documents/:id", handler.ShowDocument)
	router.DELETE("/documents/:id", handler.DeleteDocument)
	router.POST("/documents/:id/share", handler.ShareDocument)
	router.POST("/documents/:id/toggle-public", handler.TogglePublic)
	router.POST("/documents/:id/versions", handler.SaveVersion)
	router.GET("/documents/:id/versions", handler.ListVersions)
	router.POST("/documents/:id/versions/:versionId/restore", handler.RestoreVersion)
	return router
}

func jsonRequest(method, url string, payload any) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateDocument_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	doc := &domain.Document{
		ID:      10,
		Title:   "Meeting notes",
		Content: json.RawMessage(domain.DefaultContent),
		OwnerID: 1,
	}
	mockService.On("CreateUserDocument", mock.Anything, uint64(1), "Meeting notes").Return(doc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", gin.H{"title": "Meeting notes"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var response domain.Document
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, uint64(10), response.ID)
	assert.Equal(t, "Meeting notes", response.Title)
	mockService.AssertExpectations(t)
}

func TestCreateDocument_EmptyTitleAllowed(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	doc := &domain.Document{ID: 11, Title: "Untitled Document", OwnerID: 1}
	mockService.On("CreateUserDocument", mock.Anything, uint64(1), "").Return(doc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", gin.H{}))

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestShowUserDocuments_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	result := &PaginatedDocuments{
		Data: []domain.Document{{ID: 1, Title: "A", OwnerID: 1}},
		Meta: DocumentsMeta{Total: 1, CurrentPage: 1, PerPage: 10, TotalPage: 1},
	}
	mockService.On("GetUserDocuments", mock.Anything, uint64(1), 1, 10).Return(result, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response PaginatedDocuments
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Data, 1)
	assert.Equal(t, int64(1), response.Meta.Total)
	mockService.AssertExpectations(t)
}

func TestShowDocument_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 2)

	payload := &EditorResponse{
		Document: &domain.Document{ID: 5, Title: "Shared", OwnerID: 1},
		Role:     domain.RoleEditor,
		CanEdit:  true,
		ActiveUsers: []domain.ActiveUser{
			{ID: 1, Username: "alice", Color: domain.CursorColor(1)},
		},
	}
	mockService.On("GetEditorPayload", mock.Anything, uint64(5), uint64(2)).Return(payload, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents/5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response EditorResponse
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, domain.RoleEditor, response.Role)
	assert.True(t, response.CanEdit)
	mockService.AssertExpectations(t)
}

func TestShowDocument_Forbidden(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 9)

	mockService.On("GetEditorPayload", mock.Anything, uint64(5), uint64(9)).
		Return(nil, apiErrors.Forbidden("You don't have access to this document", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents/5", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}

func TestShowDocument_InvalidID(t *testing.T) {
	router := setupRouter(NewHandler(new(MockService)), 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents/abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDocument_OwnerOnly(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 2)

	mockService.On("DeleteDocument", mock.Anything, uint64(5), uint64(2)).
		Return(apiErrors.Forbidden("Only owner can delete document", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/documents/5", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}

func TestShareDocument_DefaultsToEditor(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("ShareDocument", mock.Anything, uint64(5), uint64(1), "bob", domain.RoleEditor).Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/share", gin.H{"username": "bob"}))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestShareDocument_ExplicitViewer(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("ShareDocument", mock.Anything, uint64(5), uint64(1), "bob", domain.RoleViewer).Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/share", gin.H{"username": "bob", "role": "viewer"}))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestShareDocument_UserNotFound(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("ShareDocument", mock.Anything, uint64(5), uint64(1), "ghost", domain.RoleEditor).
		Return(apiErrors.NotFound(`User "ghost" not found`, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/share", gin.H{"username": "ghost"}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockService.AssertExpectations(t)
}

func TestShareDocument_MissingUsername(t *testing.T) {
	router := setupRouter(NewHandler(new(MockService)), 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/share", gin.H{"role": "editor"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTogglePublic_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("TogglePublic", mock.Anything, uint64(5), uint64(1)).Return(true, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/toggle-public", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]bool
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.True(t, response["is_public"])
	mockService.AssertExpectations(t)
}

func TestSaveVersion_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("SaveVersion", mock.Anything, uint64(5), uint64(1), "before refactor").Return(3, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/versions", gin.H{"summary": "before refactor"}))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]any
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(3), response["version"])
	mockService.AssertExpectations(t)
}

func TestListVersions_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	versions := []VersionInfo{
		{ID: 1, VersionNumber: 1, AuthorName: "alice"},
		{ID: 2, VersionNumber: 2, AuthorName: "bob", ChangeSummary: "Manual save"},
	}
	mockService.On("ListVersions", mock.Anything, uint64(5), uint64(1)).Return(versions, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents/5/versions", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Versions []VersionInfo `json:"versions"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Versions, 2)
	mockService.AssertExpectations(t)
}

func TestRestoreVersion_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 1)

	mockService.On("RestoreVersion", mock.Anything, uint64(5), uint64(2), uint64(1)).Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/versions/2/restore", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestRestoreVersion_ViewerForbidden(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService), 7)

	mockService.On("RestoreVersion", mock.Anything, uint64(5), uint64(2), uint64(7)).
		Return(apiErrors.Forbidden("Only editors can restore versions", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/5/versions/2/restore", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertExpectations(t)
}
