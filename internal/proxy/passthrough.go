package proxy

import (
	"io"
	"net/http"

	app_errors "kimi-bridge/internal/errors"
	"kimi-bridge/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// handlePassthrough forwards any unrecognized path or method to the
// backend unchanged and copies the backend's status, headers, and body
// straight back. Nothing is decoded or re-encoded.
func (s *Server) handlePassthrough(c *gin.Context) {
	resp, err := s.client.Forward(
		c.Request.Context(),
		c.Request.Method,
		c.Request.URL.Path,
		c.Request.URL.RawQuery,
		c.Request.Header,
		c.Request.Body,
	)
	if err != nil {
		if app_errors.IsIgnorableError(err) {
			logrus.Debugf("pass-through aborted by caller: %v", err)
			return
		}
		logrus.Errorf("pass-through request failed: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusBadGateway, "upstream request failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil && !app_errors.IsIgnorableError(err) {
		logrus.Errorf("pass-through body copy failed: %v", err)
	}
}
