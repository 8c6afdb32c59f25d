package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// mockStreamer streams a fixed list of chunks, then fails with err if set.
type mockStreamer struct {
	*MockProvider
	chunks []string
	err    error
}

func (m *mockStreamer) Stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	for _, c := range m.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return m.err
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, p := range []string{"openai", "google"} {
		_, err := NewProvider(p, "some-model")
		var cfgErr *config.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("provider %q: expected ConfigurationError, got %v", p, err)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != defaultOllamaHost {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	provider, err := NewProvider("openai", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}
}

func TestFactoryGoogleFallsBackToGoogleAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback-key")
	provider, err := NewProvider("google", "gemini-2.5-flash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gp, ok := provider.(*GoogleProvider)
	if !ok {
		t.Fatal("expected *GoogleProvider")
	}
	if gp.apiKey != "fallback-key" {
		t.Errorf("apiKey = %q, want fallback-key", gp.apiKey)
	}
}

func TestProviderFromConfigWrapsRateLimiter(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderOllama
	cfg.Generation.RequestsPerMinute = 30

	p, err := NewProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*RateLimitedProvider); !ok {
		t.Errorf("expected *RateLimitedProvider, got %T", p)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// The stream shares the bucket with Complete.
	err := rl.Stream(ctx, req, func(string) error { return nil })
	if err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestClientGenerateTextAppliesConfig(t *testing.T) {
	mock := NewMockProvider("test")
	c := NewClient(mock, GenerationConfig{Model: "m1", Temperature: 0.7, MaxTokens: 4096, TopK: 3})

	text, err := c.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "mock response" {
		t.Errorf("text = %q", text)
	}
	got := mock.Calls[0]
	if got.Model != "m1" || got.Temperature != 0.7 || got.MaxTokens != 4096 || got.TopK != 3 {
		t.Errorf("request did not carry config: %+v", got)
	}
}

func TestClientWrapsFailures(t *testing.T) {
	tests := []struct {
		name    string
		resp    *CompletionResponse
		err     error
		wantErr error
	}{
		{"provider error", nil, io.ErrUnexpectedEOF, io.ErrUnexpectedEOF},
		{"empty text", &CompletionResponse{Content: "   "}, nil, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider("test")
			mock.Response = tt.resp
			mock.Err = tt.err
			c := NewClient(mock, GenerationConfig{Model: "m"})

			_, err := c.GenerateText(context.Background(), "p")
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClientChatAcceptsFunctionCallsWithoutText(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response = &CompletionResponse{
		FunctionCalls: []FunctionCall{{Name: "search_patients", Args: map[string]any{"query": "ana"}}},
	}
	c := NewClient(mock, GenerationConfig{Model: "m"})

	reply, err := c.Chat(context.Background(), ChatRequest{
		SystemPrompt: "sys",
		History: []Message{
			{Role: RoleUser, Content: "hola"},
			{Role: RoleAssistant, Content: "hola, ¿en qué puedo ayudarte?"},
		},
		Message:    "busca a ana",
		Tools:      []ToolDeclaration{{Name: "search_patients"}},
		ToolChoice: &ToolChoice{Mode: ToolModeAny, AllowedFunctions: []string{"search_patients"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.FunctionCalls) != 1 || reply.FunctionCalls[0].Name != "search_patients" {
		t.Errorf("unexpected function calls: %+v", reply.FunctionCalls)
	}

	req := mock.Calls[0]
	if len(req.Messages) != 4 {
		t.Fatalf("expected system + 2 history + message, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != RoleSystem || req.Messages[3].Content != "busca a ana" {
		t.Errorf("unexpected message order: %+v", req.Messages)
	}
	if req.ToolChoice == nil || req.ToolChoice.Mode != ToolModeAny {
		t.Errorf("tool choice not forwarded: %+v", req.ToolChoice)
	}
}

func TestClientStreamKeepsDeliveredChunks(t *testing.T) {
	streamer := &mockStreamer{
		MockProvider: NewMockProvider("stream"),
		chunks:       []string{"uno ", "dos "},
		err:          io.ErrUnexpectedEOF,
	}
	c := NewClient(streamer, GenerationConfig{Model: "m"})

	var got []string
	err := c.StreamText(context.Background(), "p", func(s string) error {
		got = append(got, s)
		return nil
	})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if strings.Join(got, "") != "uno dos " {
		t.Errorf("delivered chunks = %q", got)
	}
}

func TestClientStreamStopsEarly(t *testing.T) {
	streamer := &mockStreamer{
		MockProvider: NewMockProvider("stream"),
		chunks:       []string{"a", "b", "c"},
	}
	c := NewClient(streamer, GenerationConfig{Model: "m"})

	var got []string
	err := c.StreamText(context.Background(), "p", func(s string) error {
		got = append(got, s)
		if len(got) == 2 {
			return ErrStopStream
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 chunks before stop, got %d", len(got))
	}
}

func TestClientStreamFallsBackToSingleChunk(t *testing.T) {
	mock := NewMockProvider("plain")
	c := NewClient(mock, GenerationConfig{Model: "m"})

	var got []string
	if err := c.StreamText(context.Background(), "p", func(s string) error {
		got = append(got, s)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "mock response" {
		t.Errorf("expected a single chunk, got %q", got)
	}
}

func TestGeminiFunctionCallingWireFormat(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("api key not sent")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"search_patients","args":{"query":"ana"}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-test")
	p.baseURL = srv.URL

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleAssistant, Content: "previo"},
			{Role: RoleUser, Content: "busca a ana"},
		},
		TopK:       3,
		Tools:      []ToolDeclaration{{Name: "search_patients", Parameters: map[string]any{"type": "object"}}},
		ToolChoice: &ToolChoice{Mode: ToolModeAny, AllowedFunctions: []string{"search_patients"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "sys" {
		t.Errorf("system instruction not set: %+v", captured.SystemInstruction)
	}
	if captured.Contents[0].Role != "model" {
		t.Errorf("assistant role should map to model, got %q", captured.Contents[0].Role)
	}
	if captured.GenerationConfig.TopK != 3 {
		t.Errorf("topK = %d", captured.GenerationConfig.TopK)
	}
	if captured.ToolConfig == nil || captured.ToolConfig.FunctionCallingConfig.Mode != "ANY" {
		t.Errorf("tool config not sent: %+v", captured.ToolConfig)
	}
	if len(resp.FunctionCalls) != 1 || resp.FunctionCalls[0].Args["query"] != "ana" {
		t.Errorf("function call not parsed: %+v", resp.FunctionCalls)
	}
	if resp.InputTokens != 5 || resp.OutputTokens != 2 {
		t.Errorf("usage not parsed: %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestGeminiStreamParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Hola \"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"mundo\"}]}}]}\n\n")
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-test")
	p.baseURL = srv.URL

	var sb strings.Builder
	err := p.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hola"}},
	}, func(s string) error {
		sb.WriteString(s)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.String() != "Hola mundo" {
		t.Errorf("streamed %q", sb.String())
	}
}

func TestGeminiAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"bad key","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", "gemini-test")
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), CompletionRequest{})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOpenAIToolCallsParsed(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_patients","arguments":"{\"query\":\"ana\",\"limit\":5}"}}]},"finish_reason":"tool_calls"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("k", "gpt-4o-mini", srv.URL+"/v1")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:   []Message{{Role: RoleUser, Content: "busca a ana"}},
		Tools:      []ToolDeclaration{{Name: "search_patients", Parameters: map[string]any{"type": "object"}}},
		ToolChoice: &ToolChoice{Mode: ToolModeAny, AllowedFunctions: []string{"search_patients"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FunctionCalls) != 1 {
		t.Fatalf("expected 1 function call, got %d", len(resp.FunctionCalls))
	}
	fc := resp.FunctionCalls[0]
	if fc.ID != "call_1" || fc.Name != "search_patients" || fc.Args["query"] != "ana" {
		t.Errorf("unexpected call: %+v", fc)
	}
	if _, ok := captured["tool_choice"].(map[string]any); !ok {
		t.Errorf("single allowed function should pin tool_choice, got %v", captured["tool_choice"])
	}
}

func TestOllamaStreamParsesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if !req.Stream || req.Options.TopK != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Buenos "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"días"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	var sb strings.Builder
	err := p.Stream(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hola"}},
		TopK:     3,
	}, func(s string) error {
		sb.WriteString(s)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.String() != "Buenos días" {
		t.Errorf("streamed %q", sb.String())
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" || RoleUser != "user" || RoleAssistant != "assistant" {
		t.Error("unexpected role values")
	}
}
