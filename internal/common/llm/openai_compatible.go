package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatible streams chat completions from any endpoint speaking the OpenAI
// chat API, including Gemini's OpenAI-compatible surface.
type OpenAICompatible struct {
	Client      *openai.Client
	Temperature float32
	MaxTokens   int
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	Temperature float64
	MaxTokens   int
}

func NewOpenAICompatible(cfg OpenAIConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &OpenAICompatible{
		Client:      openai.NewClientWithConfig(config),
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}, nil
}

func (p *OpenAICompatible) StreamChat(ctx context.Context, req ChatRequest) (<-chan TokenEvent, error) {
	in := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		in = append(in, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    in,
		Stream:      true,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if req.Format != nil {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Format.Name,
				Schema: req.Format.Schema,
				Strict: false,
			},
		}
	}

	stream, err := p.Client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, classify(ctx, err)
	}

	ch := make(chan TokenEvent, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(ev TokenEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					send(TokenEvent{Done: true})
					return
				}
				send(TokenEvent{Err: classify(ctx, err)})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(TokenEvent{Delta: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

// classify wraps err with ErrModelTimeout when the deadline passed and
// ErrModelRequestFailed otherwise. Cancellation by the caller is returned as
// context.Canceled, unwrapped.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrModelTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", ErrModelRequestFailed, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", ErrModelRequestFailed, err)
}
