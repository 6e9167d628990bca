package document

import (
	"net/http"
	"strconv"

	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/errors"
	"collaborative-document-editor/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func docIDParam(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

type CreateRequest struct {
	Title string `json:"title" binding:"max=255"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	userID, _ := c.Get("user_id")

	doc, err := h.service.CreateUserDocument(c.Request.Context(), userID.(uint64), form.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ShowUserDocuments(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.GetUserDocuments(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowSharedDocuments(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.GetSharedDocuments(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowDocument(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	userID, _ := c.Get("user_id")

	payload, err := h.service.GetEditorPayload(c.Request.Context(), docID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, payload)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.DeleteDocument(c.Request.Context(), docID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type ShareRequest struct {
	Username string `json:"username" binding:"required"`
	Role     string `json:"role"`
}

func (h *Handler) ShareDocument(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	var form ShareRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}
	if form.Role == "" {
		form.Role = string(domain.RoleEditor)
	}

	userID, _ := c.Get("user_id")

	if err := h.service.ShareDocument(c.Request.Context(), docID, userID.(uint64), form.Username, domain.Role(form.Role)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) TogglePublic(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	userID, _ := c.Get("user_id")

	isPublic, err := h.service.TogglePublic(c.Request.Context(), docID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_public": isPublic})
}

type SaveVersionRequest struct {
	Summary string `json:"summary" binding:"max=255"`
}

func (h *Handler) SaveVersion(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	var form SaveVersionRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	userID, _ := c.Get("user_id")

	version, err := h.service.SaveVersion(c.Request.Context(), docID, userID.(uint64), form.Summary)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "version": version})
}

func (h *Handler) ListVersions(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	userID, _ := c.Get("user_id")

	versions, err := h.service.ListVersions(c.Request.Context(), docID, userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *Handler) RestoreVersion(c *gin.Context) {
	docID, err := docIDParam(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid document id", err))
		return
	}

	versionID, err := strconv.ParseUint(c.Param("versionId"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid version id", err))
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.RestoreVersion(c.Request.Context(), docID, versionID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
