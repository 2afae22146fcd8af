// Package anthropic defines the caller-facing Messages API wire types.
package anthropic

import (
	"encoding/json"
	"errors"
)

// MessageRequest represents an Anthropic Messages API request.
type MessageRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int64     `json:"max_tokens"`

	// Optional fields
	System      *SystemContent `json:"system,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	Stream      *bool          `json:"stream,omitempty"`
}

// IsStreaming returns whether the caller asked for an event stream.
func (r *MessageRequest) IsStreaming() bool {
	return r.Stream != nil && *r.Stream
}

// SystemContent represents the system field which can be a string or an
// array of content blocks.
type SystemContent struct {
	Text   *string        `json:"-"`
	Blocks []ContentBlock `json:"-"`
}

func (s SystemContent) MarshalJSON() ([]byte, error) {
	if s.Text != nil {
		return json.Marshal(s.Text)
	}
	if len(s.Blocks) > 0 {
		return json.Marshal(s.Blocks)
	}
	return []byte("null"), nil
}

func (s *SystemContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = &str
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err == nil {
		s.Blocks = blocks
		return nil
	}

	return errors.New("invalid system content: expected string or []ContentBlock")
}

// GetText returns the system text, concatenating block text in order.
func (s *SystemContent) GetText() string {
	if s == nil {
		return ""
	}
	if s.Text != nil {
		return *s.Text
	}
	var text string
	for _, block := range s.Blocks {
		if block.Type == "text" && block.Text != nil {
			text += *block.Text
		}
	}
	return text
}

// Message represents a message in the Anthropic format.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for Message.
func (m Message) MarshalJSON() ([]byte, error) {
	contentBytes, err := m.Content.MarshalJSON()
	if err != nil {
		return nil, err
	}

	type Alias Message
	return json.Marshal(&struct {
		Alias
		Content json.RawMessage `json:"content"`
	}{
		Alias:   Alias(m),
		Content: contentBytes,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := &struct {
		*Alias
		Content json.RawMessage `json:"content"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return m.Content.UnmarshalJSON(aux.Content)
}

// MessageContent represents message content (string or array of blocks).
type MessageContent struct {
	Text   *string        `json:"-"`
	Blocks []ContentBlock `json:"-"`
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(c.Text)
	}
	if len(c.Blocks) > 0 {
		return json.Marshal(c.Blocks)
	}
	return []byte("null"), nil
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		c.Text = &str
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err == nil {
		c.Blocks = blocks
		return nil
	}

	return errors.New("invalid content: expected string or []ContentBlock")
}

// ContentBlock represents a content block in Anthropic format.
type ContentBlock struct {
	Type string `json:"type"`

	// For text blocks
	Text *string `json:"text,omitempty"`

	// For image blocks
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource references embedded binary data.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// MessageResponse represents an Anthropic Messages API response.
type MessageResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// Usage represents token usage in Anthropic format.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Stream event types
const (
	EventMessageStart      = "message_start"
	EventContentBlockDelta = "content_block_delta"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
)

// StreamEvent represents one caller-facing streaming event.
type StreamEvent struct {
	Type string `json:"type"`

	// For message_start
	Message *MessageResponse `json:"message,omitempty"`

	// For content_block_delta
	Index *int               `json:"index,omitempty"`
	Delta *ContentBlockDelta `json:"delta,omitempty"`

	// For message_delta
	MessageDelta *MessageDelta `json:"message_delta,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
}

// ContentBlockDelta represents an incremental text unit.
type ContentBlockDelta struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// MessageDelta carries end-of-message metadata.
type MessageDelta struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}
