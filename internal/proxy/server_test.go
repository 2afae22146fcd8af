package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kimi-bridge/internal/anthropic"
	"kimi-bridge/internal/config"
	"kimi-bridge/internal/openai"
	"kimi-bridge/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, backend *httptest.Server) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		UpstreamBaseURL: backend.URL,
		UpstreamAPIKey:  "sk-test-1234567890",
		Port:            0,
		DefaultModel:    "kimi-k2-0711-preview",
	}
	return NewServer(cfg, upstream.NewClient(cfg)).Engine()
}

func TestMessages_UndecodableBodyYieldsProxyError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called for an undecodable body")
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{not valid json"))
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "proxy_error", envelope.Error.Type)
	assert.NotEmpty(t, envelope.Error.Message)
}

func TestMessages_BackendFailureForwardedVerbatim(t *testing.T) {
	failureBody := `{"error":{"message":"rate limited","type":"rate_limit_error"}}`
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, failureBody)
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"model":"kimi-latest","messages":[{"role":"user","content":"hi"}]}`))
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, failureBody, w.Body.String())
}

func TestMessages_NonStreamingTranslation(t *testing.T) {
	var captured openai.ChatRequest
	var capturedAuth, capturedAccept string

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		capturedAuth = r.Header.Get("Authorization")
		capturedAccept = r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		reason := "stop"
		resp := openai.ChatResponse{
			ID:    "cmpl-1",
			Model: captured.Model,
			Choices: []openai.Choice{{
				Message:      &openai.ChatMessage{Role: "assistant", Content: "Hello from Kimi"},
				FinishReason: &reason,
			}},
			Usage: &openai.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(
		`{"system":"be nice","messages":[{"role":"user","content":"hi"},{"role":"tool","content":"x"}]}`))
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Translated request reached the backend with the configured
	// credential and the expected shape.
	assert.Equal(t, "Bearer sk-test-1234567890", capturedAuth)
	assert.Equal(t, "application/json", capturedAccept)
	assert.Equal(t, "kimi-k2-0711-preview", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, openai.RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "be nice", captured.Messages[0].Content)
	assert.Equal(t, openai.RoleUser, captured.Messages[2].Role)
	assert.Equal(t, int64(8192), captured.MaxTokens)

	var resp anthropic.MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Hello from Kimi", *resp.Content[0].Text)
	require.NotNil(t, resp.StopReason)
	assert.Equal(t, "end_turn", *resp.StopReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(7), resp.Usage.InputTokens)
}

func TestMessages_StreamingReframed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
			`data: {"choices":[{"index":0,"delta":{"content":"He"}}]}`,
			`data: {"choices":[{"index":0,"delta":{"content":"llo"}}]}`,
			`data: {"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":2,"total_tokens":4}}`,
			`data: [DONE]`,
		} {
			io.WriteString(w, line+"\n\n")
			flusher.Flush()
		}
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(
		`{"model":"kimi-latest","stream":true,"messages":[{"role":"user","content":"hi"}]}`))
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	wantOrder := []string{
		"event: message_start",
		"event: content_block_delta",
		"event: content_block_delta",
		"event: message_delta",
		"event: message_stop",
	}
	pos := 0
	for _, marker := range wantOrder {
		idx := strings.Index(body[pos:], marker)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in:\n%s", marker, pos, body)
		pos += idx + len(marker)
	}

	assert.Contains(t, body, `"text":"He"`)
	assert.Contains(t, body, `"text":"llo"`)
	assert.Contains(t, body, `"stop_reason":"end_turn"`)
	// Exactly one terminal event per logical stream.
	assert.Equal(t, 1, strings.Count(body, "event: message_stop"))
}

func TestModelList(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("model list is static, backend must not be called")
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	require.NotEmpty(t, list.Data)
	assert.Equal(t, "kimi-k2-0711-preview", list.Data[0].ID)
}

func TestHealth(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must be answered locally")
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	for _, path := range []string{"/v1/messages", "/anything/else"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, path, nil))

		assert.Equal(t, http.StatusNoContent, w.Code, "path %s", path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
		assert.Empty(t, w.Body.Bytes())
	}
}

func TestPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "input=x", r.URL.RawQuery)
		assert.Equal(t, "Bearer sk-test-1234567890", r.Header.Get("Authorization"))
		assert.Equal(t, "custom-value", r.Header.Get("X-Custom"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"input":"x"}`, string(body))

		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "upstream says hi")
	}))
	defer backend.Close()

	engine := newTestEngine(t, backend)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings?input=x", strings.NewReader(`{"input":"x"}`))
	req.Header.Set("Authorization", "Bearer caller-credential")
	req.Header.Set("X-Custom", "custom-value")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "upstream says hi", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
}
