package user

import (
	"net/http"

	"collaborative-document-editor/auth"
	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/errors"
	"collaborative-document-editor/redis"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	tokens  *redis.Cache
}

func NewHandler(service Service, tokens *redis.Cache) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=3,max=150"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) Register(c *gin.Context) {
	var form RegisterRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	u := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(u); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, u.ToSafeUser())
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var form LoginRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.BadRequest("Invalid input", err))
		return
	}

	u, err := h.service.Login(form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := auth.GenerateJWT(u.ID)
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.tokens.StoreToken(c.Request.Context(), token, auth.TokenTTL); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": u.ToSafeUser()})
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Get("jwt_token")

	if err := h.tokens.DeleteToken(c.Request.Context(), token.(string)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, _ := c.Get("user_id")

	u, err := h.service.GetUserByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(errors.NotFound("User not found", err))
		return
	}

	c.JSON(http.StatusOK, u.ToSafeUser())
}
