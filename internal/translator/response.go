package translator

import (
	"kimi-bridge/internal/anthropic"
	"kimi-bridge/internal/openai"

	"github.com/google/uuid"
)

// StopReasonEndTurn is the only stop reason this bridge ever synthesizes.
const StopReasonEndTurn = "end_turn"

// MapStopReason maps a backend finish reason to the caller's stop
// reason. The mapping is total: "stop" becomes end_turn, every other
// value including absence becomes nil. No other reason strings are
// synthesized.
func MapStopReason(finishReason *string) *string {
	if finishReason != nil && *finishReason == openai.FinishReasonStop {
		reason := StopReasonEndTurn
		return &reason
	}
	return nil
}

// TranslateResponse converts a complete, successful backend response
// into the caller shape. The first choice's text becomes the sole
// content block.
func TranslateResponse(resp *openai.ChatResponse) *anthropic.MessageResponse {
	out := &anthropic.MessageResponse{
		ID:      NewMessageID(),
		Type:    "message",
		Role:    openai.RoleAssistant,
		Model:   resp.Model,
		Content: []anthropic.ContentBlock{},
		Usage:   translateUsage(resp.Usage),
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message != nil {
			text := choice.Message.Content
			out.Content = []anthropic.ContentBlock{{
				Type: "text",
				Text: &text,
			}}
		}
		out.StopReason = MapStopReason(choice.FinishReason)
	}

	return out
}

// NewMessageID generates a fresh caller-facing message identifier.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

func translateUsage(usage *openai.Usage) *anthropic.Usage {
	if usage == nil {
		return &anthropic.Usage{}
	}
	return &anthropic.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
}
