package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/sqlpulse/pkg/errors"
)

// Response defines the base API payload.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	appErrors.ErrNotFound.Code:        http.StatusNotFound,
	appErrors.ErrTooManyRequests.Code: http.StatusTooManyRequests,
	appErrors.ErrUnauthorized.Code:    http.StatusUnauthorized,
	appErrors.ErrForbidden.Code:       http.StatusForbidden,
	appErrors.ErrConflict.Code:        http.StatusConflict,
	appErrors.ErrConfigFetch.Code:     http.StatusBadGateway,
	appErrors.ErrSecretFetch.Code:     http.StatusBadGateway,
	appErrors.ErrConnection.Code:      http.StatusBadGateway,
	appErrors.ErrPublish.Code:         http.StatusBadGateway,
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Failure writes a JSON error response carrying data alongside the error.
func Failure(c *gin.Context, err error, data interface{}) {
	appErr := appErrors.FromError(err)
	if appErr == nil {
		appErr = appErrors.ErrInternal
	}

	c.JSON(StatusOf(appErr), Response{
		Success: false,
		Data:    data,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

// Error writes a JSON error response derived from a classified error. Only
// the code and message are exposed; internal causes stay in the logs.
func Error(c *gin.Context, err error) {
	Failure(c, err, nil)
}

// StatusOf maps an error code to an HTTP status, defaulting to 500.
func StatusOf(err *appErrors.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[err.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
