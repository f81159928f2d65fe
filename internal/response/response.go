// Package response writes the JSON envelope shared by every API route.
package response

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackit/stackit/backend/internal/apperrors"
)

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

func Success(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
		"message": message,
	})
}

func Paginated(c *gin.Context, data any, pagination Pagination, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": pagination,
		"message":    message,
	})
}

// Error writes err as an error envelope and aborts the chain. Untyped and
// internal errors are logged and reported with their public message only.
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Storage("Internal Server Error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"error", err,
			"status", status,
			"path", c.FullPath(),
			"request_id", c.GetString(RequestIDKey),
		)
	}

	body := gin.H{
		"success":    false,
		"error":      appErr.Message,
		"statusCode": status,
	}
	if len(appErr.Fields) > 0 {
		body["details"] = appErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"
