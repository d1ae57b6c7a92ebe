package middleware

import (
	"fmt"
	"net/http"

	"peercam/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func httpStatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeConfiguration, errors.ErrCodeUsage:
		return http.StatusBadRequest
	case errors.ErrCodeResource:
		return http.StatusServiceUnavailable
	case errors.ErrCodeSignaling:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler turns errors pushed onto the gin context into structured
// JSON responses.
func ErrorHandler(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if appErr := errors.GetAppError(err); appErr != nil {
			status := httpStatusFor(appErr.Code)
			logger.Errorw("control api error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", status,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			c.JSON(status, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		logger.Errorw("unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(errors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

// Recovery recovers from panics in control API handlers and renders
// them as internal errors.
func Recovery(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				appErr := errors.NewInternalError(fmt.Sprintf("panic: %v", r))
				logger.Errorw("panic recovered",
					"error", appErr.Message,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.JSON(httpStatusFor(appErr.Code), gin.H{
					"error":   string(appErr.Code),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
