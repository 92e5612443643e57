package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"loan-checker/internal/common/validation"
)

// ObjectRequest describes a structured generation call.
type ObjectRequest struct {
	Model  string
	System string
	Prompt string
	Schema *validation.Schema
}

// StreamObject runs req against p and calls onPartial with every parsed snapshot
// of the output that differs from the previous one. When the model finishes, the
// whole output is parsed strictly and validated against req.Schema; the result
// is returned, or an error wrapping ErrMalformedOutput on mismatch.
//
// An error returned by onPartial stops the stream and is returned as is.
func StreamObject(ctx context.Context, p Provider, req ObjectRequest, onPartial func(interface{}) error) (interface{}, error) {
	chat := ChatRequest{
		Model: req.Model,
		Messages: []Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.Schema != nil {
		chat.Format = &ResponseFormat{Name: req.Schema.Name(), Schema: req.Schema.Raw()}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := p.StreamChat(ctx, chat)
	if err != nil {
		return nil, err
	}

	var (
		text strings.Builder
		last interface{}
	)
	for {
		var ev TokenEvent
		var ok bool
		select {
		case ev, ok = <-events:
		case <-ctx.Done():
			return nil, classify(ctx, ctx.Err())
		}
		if !ok {
			// provider closed without a terminal event
			if err := ctx.Err(); err != nil {
				return nil, classify(ctx, err)
			}
			return finish(text.String(), req.Schema)
		}
		if ev.Err != nil {
			return nil, ev.Err
		}
		if ev.Done {
			return finish(text.String(), req.Schema)
		}
		if ev.Delta == "" {
			continue
		}

		text.WriteString(ev.Delta)
		snapshot, _, err := ParsePartialJSON(text.String())
		if err != nil || snapshot == nil {
			// not parseable yet; the final strict parse reports real problems
			continue
		}
		if last != nil && reflect.DeepEqual(last, snapshot) {
			continue
		}
		last = snapshot
		if err := onPartial(snapshot); err != nil {
			return nil, err
		}
	}
}

func finish(text string, schema *validation.Schema) (interface{}, error) {
	body := strings.TrimSpace(stripFence(text))
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	var final interface{}
	if err := json.Unmarshal([]byte(body), &final); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if schema == nil {
		return final, nil
	}
	if result := schema.Validate(final); !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(result.GetErrorMessages(), "; "))
	}
	return final, nil
}
