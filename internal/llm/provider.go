package llm

import (
	"context"
	"errors"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// StreamingProvider is implemented by providers that can deliver text
// incrementally. onChunk returning an error stops the stream and that error
// is returned.
type StreamingProvider interface {
	Provider
	Stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error
}

// ErrStopStream can be returned by an onChunk callback to end a stream early
// without reporting a failure.
var ErrStopStream = errors.New("stop stream")

// streamOrComplete streams when the provider supports it and otherwise
// delivers the whole completion as a single chunk.
func streamOrComplete(ctx context.Context, p Provider, req CompletionRequest, onChunk func(string) error) error {
	if sp, ok := p.(StreamingProvider); ok {
		return sp.Stream(ctx, req, onChunk)
	}
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return err
	}
	if resp.Content == "" {
		return nil
	}
	return onChunk(resp.Content)
}
