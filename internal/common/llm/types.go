// Package llm streams structured output from an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrModelRequestFailed = errors.New("model request failed")
	ErrModelTimeout       = errors.New("model request timed out")
	ErrMalformedOutput    = errors.New("model output does not match schema")
)

// TokenEvent represents an incremental piece of model output.
// If Err is non-nil, the stream ends with error.
type TokenEvent struct {
	Delta string
	Err   error
	Done  bool
}

// Message is a minimal chat message shape.
type Message struct {
	Role    string // system | user | assistant
	Content string
}

// ResponseFormat asks the model for JSON conforming to Schema.
type ResponseFormat struct {
	Name   string
	Schema json.RawMessage
}

type ChatRequest struct {
	Model    string
	Messages []Message
	Format   *ResponseFormat
}

// Provider streams chat completions as text deltas.
// The returned channel is closed after a Done or Err event, or when ctx ends.
type Provider interface {
	StreamChat(ctx context.Context, req ChatRequest) (<-chan TokenEvent, error)
}
