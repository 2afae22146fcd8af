// Package translator converts between the Anthropic Messages wire format
// and the backend chat-completions wire format.
package translator

import (
	"encoding/json"
	"fmt"

	"kimi-bridge/internal/anthropic"
	"kimi-bridge/internal/openai"
)

// Generation-parameter defaults applied when the caller omits a value.
const (
	DefaultMaxTokens   = int64(8192)
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)

// ParseMessageRequest decodes a caller request body. Decodability is the
// only validation performed at this stage.
func ParseMessageRequest(body []byte) (*anthropic.MessageRequest, error) {
	var req anthropic.MessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request body: %w", err)
	}
	return &req, nil
}

// BuildChatRequest converts a caller request into the backend shape.
// The system instruction becomes a leading system-role message, each
// message's content is flattened to one string, and every role other
// than assistant collapses to user.
func BuildChatRequest(req *anthropic.MessageRequest, defaultModel string) *openai.ChatRequest {
	out := &openai.ChatRequest{
		Model:       req.Model,
		Messages:    make([]openai.ChatMessage, 0, len(req.Messages)+1),
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		Stream:      req.IsStreaming(),
	}

	if out.Model == "" {
		out.Model = defaultModel
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		out.TopP = *req.TopP
	}

	if systemText := req.System.GetText(); systemText != "" {
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    openai.RoleSystem,
			Content: systemText,
		})
	}

	for _, msg := range req.Messages {
		role := openai.RoleUser
		if msg.Role == openai.RoleAssistant {
			role = openai.RoleAssistant
		}
		out.Messages = append(out.Messages, openai.ChatMessage{
			Role:    role,
			Content: FlattenContent(msg.Content),
		})
	}

	return out
}

// FlattenContent collapses message content into one string. Text blocks
// contribute their text; image blocks contribute the raw embedded data
// field, which for binary payloads is base64 text or empty. The source
// system behaves this way and downstream consumers depend on it.
func FlattenContent(content anthropic.MessageContent) string {
	if content.Text != nil {
		return *content.Text
	}

	var flattened string
	for _, block := range content.Blocks {
		switch block.Type {
		case "text":
			if block.Text != nil {
				flattened += *block.Text
			}
		case "image":
			if block.Source != nil {
				flattened += block.Source.Data
			}
		}
	}
	return flattened
}
