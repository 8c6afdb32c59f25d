package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is reported when a provider returns neither text nor
// function calls.
var ErrEmptyResponse = errors.New("empty response from provider")

// GenerationError wraps every failure surfaced by Client.
type GenerationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation (%s): %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("generation (%s): %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// GenerationConfig is fixed for the lifetime of a Client.
type GenerationConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopK        int
}

// ChatRequest is one conversational turn.
type ChatRequest struct {
	SystemPrompt string
	History      []Message
	Message      string
	Tools        []ToolDeclaration
	ToolChoice   *ToolChoice
}

// ChatReply is the model's answer to a ChatRequest.
type ChatReply struct {
	Text          string
	FunctionCalls []FunctionCall
}

// Client is the generation entry point used by the report agent and the
// assistant. It applies one GenerationConfig to every request.
type Client struct {
	provider Provider
	cfg      GenerationConfig
}

// NewClient binds a provider to a generation configuration.
func NewClient(p Provider, cfg GenerationConfig) *Client {
	return &Client{provider: p, cfg: cfg}
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.cfg.Model
}

func (c *Client) request(messages []Message) CompletionRequest {
	return CompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopK:        c.cfg.TopK,
	}
}

func (c *Client) fail(reason string, err error) error {
	return &GenerationError{Provider: c.provider.Name(), Reason: reason, Err: err}
}

// GenerateText runs a single-shot completion for prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.provider.Complete(ctx, c.request([]Message{{Role: RoleUser, Content: prompt}}))
	if err != nil {
		return "", c.fail("generate text", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", c.fail("generate text", ErrEmptyResponse)
	}
	return resp.Content, nil
}

// StreamText delivers the completion for prompt through onChunk. Chunks that
// were already delivered stay delivered when the stream fails midway.
// Returning ErrStopStream from onChunk ends the stream without error.
func (c *Client) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	return c.stream(ctx, c.request([]Message{{Role: RoleUser, Content: prompt}}), onChunk)
}

// Chat sends one conversational turn, with tools when declared.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	creq := c.request(chatMessages(req))
	creq.Tools = req.Tools
	creq.ToolChoice = req.ToolChoice

	resp, err := c.provider.Complete(ctx, creq)
	if err != nil {
		return nil, c.fail("chat", err)
	}
	if resp == nil || (strings.TrimSpace(resp.Content) == "" && len(resp.FunctionCalls) == 0) {
		return nil, c.fail("chat", ErrEmptyResponse)
	}
	return &ChatReply{Text: resp.Content, FunctionCalls: resp.FunctionCalls}, nil
}

// StreamChat streams a conversational turn. Tools are never attached to a
// streamed turn.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onChunk func(string) error) error {
	return c.stream(ctx, c.request(chatMessages(req)), onChunk)
}

func (c *Client) stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	var delivered int
	err := streamOrComplete(ctx, c.provider, req, func(chunk string) error {
		delivered += len(chunk)
		return onChunk(chunk)
	})
	if errors.Is(err, ErrStopStream) {
		return nil
	}
	if err != nil {
		return c.fail("stream", err)
	}
	if delivered == 0 {
		return c.fail("stream", ErrEmptyResponse)
	}
	return nil
}

func chatMessages(req ChatRequest) []Message {
	messages := make([]Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		if m.Role == RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	return append(messages, Message{Role: RoleUser, Content: req.Message})
}
