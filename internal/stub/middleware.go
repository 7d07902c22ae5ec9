package stub

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mycafe/internal/core/apperror"
	"mycafe/pkg/logger"
)

// errorHandler transforms errors into consistent JSON responses. The body
// carries both the structured code/message pair and a FastAPI-style
// "detail" field so every client shape decodes the server's words.
func errorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				log.Errorw("request error", "code", appErr.Code, "cause", appErr.Err)
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"detail":  appErr.Message,
				"details": appErr.Details,
			})
			return
		}

		log.Errorw("unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "internal error",
			"detail":  "internal error",
		})
	}
}

// requireAuth validates the bearer token.
func requireAuth(auth *authService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}
		claims, err := auth.validate(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set("username", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	_ = c.Error(apperror.NewUnauthorized(msg))
	c.Abort()
}

// requestLogger logs one line per request.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// recovery converts panics into 500s without killing the process.
func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic recovered", "panic", r, "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperror.CodeInternal,
					"message": "internal error",
					"detail":  "internal error",
				})
			}
		}()
		c.Next()
	}
}
