package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/accesshub/accesshub/internal/shared/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope every admin endpoint answers with.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListResponse represents a paginated list response
type ListResponse struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// SuccessResponse sends a successful response with custom status code
func SuccessResponse(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, APIResponse{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response with custom status code and message
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  StatusError,
		Message: message,
	})
}

// ErrorResponseWithError maps err onto the envelope. Only AppErrors expose
// their message; anything else becomes a generic 500.
func ErrorResponseWithError(c *gin.Context, err error) {
	appErr := errors.GetAppError(err)
	if appErr == nil {
		c.JSON(http.StatusInternalServerError, APIResponse{
			Status:  StatusError,
			Message: "Internal server error occurred",
			Error:   string(errors.ErrorTypeInternal),
		})
		return
	}

	resp := APIResponse{
		Status:  StatusError,
		Message: appErr.Message,
		Error:   string(appErr.Type),
	}
	if appErr.Details != "" && appErr.Code < http.StatusInternalServerError {
		resp.Data = gin.H{"details": appErr.Details}
	}
	c.JSON(appErr.Code, resp)
}

// ListSuccessResponse sends a successful list response with pagination
func ListSuccessResponse(c *gin.Context, items any, total int64, page, pageSize int) {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, APIResponse{
		Status: StatusSuccess,
		Data: ListResponse{
			Items:      items,
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	})
}
