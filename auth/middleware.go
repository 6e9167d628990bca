package auth

import (
	"context"
	"strings"

	"collaborative-document-editor/internal/domain"
	"collaborative-document-editor/internal/errors"
	"collaborative-document-editor/redis"

	"github.com/gin-gonic/gin"
)

type UserProvider interface {
	GetUserByID(ctx context.Context, id uint64) (*domain.User, error)
}

type Auth struct {
	Users  UserProvider
	Tokens *redis.Cache
}

// extractToken pulls the JWT from the Authorization header, or from the
// token query param since browser WebSocket clients cannot set headers.
func extractToken(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ctx.Query("token")
}

func (m *Auth) authenticate(ctx *gin.Context, token string) (*domain.User, error) {
	parsedToken, err := VerifyJWT(token)
	if err != nil {
		return nil, err
	}

	userID, err := UserIDFromToken(parsedToken)
	if err != nil {
		return nil, err
	}

	// check the token has not been logged out
	exists, err := m.Tokens.TokenExists(ctx.Request.Context(), token)
	if err != nil || !exists {
		return nil, errors.Unauthorized("Token expired or not found", err)
	}

	user, err := m.Users.GetUserByID(ctx.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	return user, nil
}

func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractToken(ctx)
		if token == "" {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		user, err := m.authenticate(ctx, token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", user.ID)
		ctx.Set("user_name", user.Name)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}

// WSAuthMiddleware resolves identity when possible but never aborts. The
// session state machine owns the rejection of anonymous connections, so the
// socket is accepted and then closed rather than refused at the HTTP layer.
func (m *Auth) WSAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractToken(ctx)
		if token != "" {
			if user, err := m.authenticate(ctx, token); err == nil {
				ctx.Set("user_id", user.ID)
				ctx.Set("user_name", user.Name)
			}
		}
		ctx.Next()
	}
}
