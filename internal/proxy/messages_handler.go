package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	app_errors "kimi-bridge/internal/errors"
	"kimi-bridge/internal/openai"
	"kimi-bridge/internal/response"
	"kimi-bridge/internal/sse"
	"kimi-bridge/internal/translator"
	"kimi-bridge/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// handleMessages serves the translated endpoint: parse the caller
// request, forward the backend-shaped equivalent, then either translate
// the complete response or re-frame the event stream.
func (s *Server) handleMessages(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logrus.Errorf("failed to read request body: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusInternalServerError, "failed to read request body"))
		return
	}
	c.Request.Body.Close()

	req, err := translator.ParseMessageRequest(bodyBytes)
	if err != nil {
		logrus.Debugf("undecodable request body: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusInternalServerError, err.Error()))
		return
	}

	chatReq := translator.BuildChatRequest(req, s.cfg.DefaultModel)

	// Streams get a cancelable context tied to the caller connection;
	// normal calls rely on the pooled client's timeout.
	ctx := c.Request.Context()
	if chatReq.Stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	resp, err := s.client.ChatCompletion(ctx, chatReq)
	if err != nil {
		if app_errors.IsIgnorableError(err) {
			logrus.Debugf("caller went away before upstream completed: %v", err)
			return
		}
		logrus.Errorf("upstream request failed: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusBadGateway, "upstream request failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.forwardErrorResponse(c, resp)
		return
	}

	if chatReq.Stream {
		s.streamResponse(c, resp, chatReq.Model)
	} else {
		s.normalResponse(c, resp)
	}
}

// forwardErrorResponse surfaces a backend failure with identical status
// code and identical body bytes. Failure payloads have no known mapping
// and are never translated.
func (s *Server) forwardErrorResponse(c *gin.Context, resp *http.Response) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Errorf("failed to read upstream error body: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusBadGateway, "failed to read upstream response"))
		return
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		readable, decErr := utils.DecompressResponse(resp.Header.Get("Content-Encoding"), bodyBytes)
		if decErr != nil {
			readable = bodyBytes
		}
		logrus.Debugf("upstream failure %d: %s", resp.StatusCode, utils.TruncateString(string(readable), 2000))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Header("Content-Type", ct)
	}
	if ce := resp.Header.Get("Content-Encoding"); ce != "" {
		c.Header("Content-Encoding", ce)
	}
	c.Status(resp.StatusCode)
	c.Writer.Write(bodyBytes)
}

// normalResponse translates a complete backend response into the caller
// shape.
func (s *Server) normalResponse(c *gin.Context, resp *http.Response) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Errorf("failed to read upstream response body: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusBadGateway, "failed to read upstream response"))
		return
	}

	var chatResp openai.ChatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		logrus.Errorf("failed to decode upstream response: %v", err)
		response.Error(c, app_errors.NewAPIError(http.StatusBadGateway, "failed to decode upstream response"))
		return
	}

	c.JSON(http.StatusOK, translator.TranslateResponse(&chatResp))
}

// streamResponse re-frames the backend event stream. Events produced by
// one read are written and flushed before the next read, so the inbound
// side never outruns the caller.
func (s *Server) streamResponse(c *gin.Context, resp *http.Response, model string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, canFlush := c.Writer.(http.Flusher)

	rf := sse.NewReframer(translator.NewMessageID(), model)
	buf := make([]byte, 32*1024)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if !s.writeEvents(c, rf.Feed(buf[:n])) {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr != io.EOF && !app_errors.IsIgnorableError(readErr) {
				logrus.Errorf("error reading upstream stream: %v", readErr)
			}
			break
		}
	}

	// Whatever was flushed stands; the terminal event closes the
	// logical stream even after a mid-stream failure.
	s.writeEvents(c, rf.Close())
	if canFlush {
		flusher.Flush()
	}
}

// writeEvents encodes and writes translated events in order. A write
// failure means the caller disconnected; the stream is abandoned.
func (s *Server) writeEvents(c *gin.Context, events []sse.Event) bool {
	for _, event := range events {
		encoded, err := event.Encode()
		if err != nil {
			logrus.Errorf("failed to encode stream event: %v", err)
			continue
		}
		if _, err := c.Writer.Write(encoded); err != nil {
			logrus.Debugf("caller write failed, dropping stream: %v", err)
			return false
		}
	}
	return true
}
