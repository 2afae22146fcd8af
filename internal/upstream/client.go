// Package upstream issues translated and pass-through requests to the
// backend completion service.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kimi-bridge/internal/config"
	"kimi-bridge/internal/openai"
	"kimi-bridge/internal/utils"

	"github.com/sirupsen/logrus"
)

// Client performs outbound calls with the configured credential. It is
// safe for concurrent use; all state is fixed at construction.
type Client struct {
	cfg *config.Config

	// httpClient serves non-streaming calls with pooled transport
	// defaults. streamClient has no client timeout so long generations
	// are never cut mid-stream.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates an upstream client from the immutable configuration.
func NewClient(cfg *config.Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   5 * time.Minute,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

// ChatCompletion sends the translated request to the backend completion
// endpoint, negotiating streaming via the Accept header. The response is
// returned as received; non-success responses are never translated and
// must be surfaced to the caller byte-identical.
func (c *Client) ChatCompletion(ctx context.Context, chatReq *openai.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := buildChatURL(c.cfg.UpstreamBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.UpstreamAPIKey)
	if chatReq.Stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	logrus.WithFields(logrus.Fields{
		"url":    url,
		"model":  chatReq.Model,
		"stream": chatReq.Stream,
		"key":    utils.MaskAPIKey(c.cfg.UpstreamAPIKey),
	}).Debugf("upstream request: %s", utils.TruncateString(string(body), 2000))

	client := c.httpClient
	if chatReq.Stream {
		client = c.streamClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"url":    url,
		"status": resp.StatusCode,
	}).Debug("upstream response")

	return resp, nil
}

// Forward replays an arbitrary inbound request against the backend at
// the same path, substituting the credential. Nothing is decoded or
// re-encoded in either direction.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	url := c.cfg.UpstreamBaseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create pass-through request: %w", err)
	}

	for key, values := range header {
		lowerKey := strings.ToLower(key)
		if lowerKey == "authorization" || lowerKey == "x-api-key" || lowerKey == "host" {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.UpstreamAPIKey)

	logrus.Debugf("pass-through %s %s", method, utils.TruncateString(url, 500))

	return c.streamClient.Do(req)
}

// buildChatURL constructs the full completion endpoint URL.
func buildChatURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/chat/completions"
	}
	return baseURL + "/v1/chat/completions"
}
