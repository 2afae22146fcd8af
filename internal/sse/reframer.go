// Package sse re-frames the backend's chat-completion event stream into
// caller-facing Anthropic stream events. The Reframer is push-based and
// single-pass: bytes in via Feed, translated events out, with memory
// bounded by the longest single line.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kimi-bridge/internal/anthropic"
	"kimi-bridge/internal/openai"
	"kimi-bridge/internal/translator"

	"github.com/sirupsen/logrus"
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// Event is one translated caller-facing stream event, ready to encode.
type Event struct {
	Type    string
	Payload anthropic.StreamEvent
}

// Encode renders the event in SSE wire form.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data)), nil
}

// Reframer converts backend stream bytes into caller events. One
// instance exists per streaming connection; instances share no state.
type Reframer struct {
	// tail holds the bytes of the line that has not yet seen its
	// terminator. After every Feed it contains exactly those bytes.
	tail []byte

	messageID string
	model     string

	started bool
	closed  bool
}

// NewReframer creates a re-framer for one streaming connection.
// messageID and model seed the message_start payload.
func NewReframer(messageID, model string) *Reframer {
	return &Reframer{
		messageID: messageID,
		model:     model,
	}
}

// Feed appends a received chunk and returns the events produced by every
// line the chunk completed, in exact line-completion order. The caller
// must flush these events before feeding the next chunk.
func (r *Reframer) Feed(p []byte) []Event {
	var events []Event

	r.tail = append(r.tail, p...)
	for {
		i := bytes.IndexByte(r.tail, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(r.tail[:i], []byte("\r"))
		events = append(events, r.processLine(line)...)
		r.tail = append(r.tail[:0], r.tail[i+1:]...)
	}

	return events
}

// Close classifies whatever remains in the line buffer, then emits the
// terminal event unless the sentinel already produced one. Exactly one
// message_stop is emitted per logical stream.
func (r *Reframer) Close() []Event {
	var events []Event

	if len(r.tail) > 0 {
		line := bytes.TrimSuffix(r.tail, []byte("\r"))
		events = r.processLine(line)
		r.tail = r.tail[:0]
	}

	return append(events, r.terminal()...)
}

// processLine classifies one complete line. Lines that do not carry a
// data field (blank separators, comments, event-name lines) are dropped.
func (r *Reframer) processLine(line []byte) []Event {
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil
	}

	payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(payload) == 0 {
		return nil
	}

	if bytes.Equal(payload, doneSentinel) {
		return r.terminal()
	}

	var frame openai.StreamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		// A single malformed frame never aborts the stream.
		logrus.WithError(err).Debugf("dropping malformed stream frame: %s", payload)
		return nil
	}

	return r.classify(&frame)
}

// classify emits at most one event for a decoded frame.
func (r *Reframer) classify(frame *openai.StreamFrame) []Event {
	first := !r.started
	r.started = true

	var choice *openai.Choice
	if len(frame.Choices) > 0 {
		choice = &frame.Choices[0]
	}

	index := 0
	text := ""
	var finishReason *string
	if choice != nil {
		index = choice.Index
		finishReason = choice.FinishReason
		if choice.Delta != nil {
			text = choice.Delta.Content
		}
	}

	switch {
	case text != "":
		return []Event{r.textDelta(index, text)}
	case first && index == 0 && finishReason == nil:
		return []Event{r.messageStart(frame.Model)}
	case finishReason != nil:
		return []Event{r.messageDelta(finishReason, frame.Usage)}
	default:
		return nil
	}
}

func (r *Reframer) textDelta(index int, text string) Event {
	return Event{
		Type: anthropic.EventContentBlockDelta,
		Payload: anthropic.StreamEvent{
			Type:  anthropic.EventContentBlockDelta,
			Index: &index,
			Delta: &anthropic.ContentBlockDelta{
				Type: "text_delta",
				Text: &text,
			},
		},
	}
}

func (r *Reframer) messageStart(model string) Event {
	if model == "" {
		model = r.model
	}
	return Event{
		Type: anthropic.EventMessageStart,
		Payload: anthropic.StreamEvent{
			Type: anthropic.EventMessageStart,
			Message: &anthropic.MessageResponse{
				ID:      r.messageID,
				Type:    "message",
				Role:    openai.RoleAssistant,
				Content: []anthropic.ContentBlock{},
				Model:   model,
				Usage:   &anthropic.Usage{},
			},
		},
	}
}

func (r *Reframer) messageDelta(finishReason *string, usage *openai.Usage) Event {
	event := anthropic.StreamEvent{
		Type: anthropic.EventMessageDelta,
		MessageDelta: &anthropic.MessageDelta{
			StopReason: translator.MapStopReason(finishReason),
		},
	}
	if usage != nil {
		event.Usage = &anthropic.Usage{
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
		}
	}
	return Event{Type: anthropic.EventMessageDelta, Payload: event}
}

func (r *Reframer) terminal() []Event {
	if r.closed {
		return nil
	}
	r.closed = true
	return []Event{{
		Type:    anthropic.EventMessageStop,
		Payload: anthropic.StreamEvent{Type: anthropic.EventMessageStop},
	}}
}
