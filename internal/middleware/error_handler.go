package middleware

import (
	"errors"

	apiError "collaborative-document-editor/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var appErr *apiError.AppError

			// if it's a raw error we didn't wrap, treat as Internal
			if !errors.As(err, &appErr) {
				appErr = apiError.Internal(err)
			}

			if appErr.Code >= 500 {
				log.Error().Err(appErr.Err).Str("path", c.Request.URL.Path).Msg(appErr.Message)
			} else {
				log.Info().Err(appErr.Err).Str("path", c.Request.URL.Path).Msg(appErr.Message)
			}

			// Respond with JSON
			c.AbortWithStatusJSON(appErr.Code, appErr)
		}
	}
}
