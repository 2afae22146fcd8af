// Package response writes the bridge's locally generated error envelope.
package response

import (
	"net/http"

	app_errors "kimi-bridge/internal/errors"

	"github.com/gin-gonic/gin"
)

// ErrorEnvelope is the body of every error the bridge generates itself.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the message and the fixed proxy_error type tag.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error writes err as a proxy_error envelope. Non-APIError values are
// reported as internal server errors.
func Error(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal server error"

	if apiErr, ok := err.(*app_errors.APIError); ok {
		statusCode = apiErr.StatusCode
		message = apiErr.Message
	} else if err != nil {
		message = err.Error()
	}

	c.JSON(statusCode, ErrorEnvelope{
		Error: ErrorBody{
			Message: message,
			Type:    app_errors.ErrorTypeProxy,
		},
	})
}
