package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/memory"
)

const memorySource = "hopeai-assistant"

// Chatter is the generation surface the assistant needs. *llm.Client
// satisfies it.
type Chatter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatReply, error)
	StreamChat(ctx context.Context, req llm.ChatRequest, onChunk func(string) error) error
}

// Settings tune one Service.
type Settings struct {
	MaxResponseLength int
	HistoryCap        int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	MemoryMinLength   int
	MemoryLimit       int
	CacheTTL          time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.DefaultConfig().Assistant)
}

// SettingsFromConfig extracts the assistant's tunables.
func SettingsFromConfig(c config.AssistantConfig) Settings {
	return Settings{
		MaxResponseLength: c.MaxResponseLength,
		HistoryCap:        c.HistoryCap,
		RetryAttempts:     c.RetryAttempts,
		RetryBaseDelay:    c.RetryBaseDelay,
		MemoryMinLength:   c.MemoryMinLength,
		MemoryLimit:       c.MemoryLimit,
		CacheTTL:          c.CacheTTL,
	}
}

// Service answers user turns. It is safe for concurrent use; turns that
// share a session id are serialised.
type Service struct {
	llm      Chatter
	log      *logger.Logger
	settings Settings
	now      func() time.Time

	tools   []llm.ToolDeclaration
	memory  memory.Store
	writer  *MemoryWriter
	cache   Cache
	breaker *Breaker
	locks   sessionLocks
}

// Option configures a Service.
type Option func(*Service)

// WithTools declares the functions the model may call.
func WithTools(decls []llm.ToolDeclaration) Option {
	return func(s *Service) { s.tools = decls }
}

// WithMemory enables recall through store and remembering through writer.
// Either may be nil.
func WithMemory(store memory.Store, writer *MemoryWriter) Option {
	return func(s *Service) {
		s.memory = store
		s.writer = writer
	}
}

func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithBreaker(b *Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSettings(st Settings) Option {
	return func(s *Service) { s.settings = st }
}

// NewService builds a Service around chat. Unset collaborators get
// in-process defaults: a memory cache, a permanent breaker and no memory.
func NewService(chat Chatter, log *logger.Logger, opts ...Option) (*Service, error) {
	if chat == nil {
		return nil, &config.ConfigurationError{Field: "llm", Reason: "assistant requires a generation client"}
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		llm:      chat,
		log:      log.With("component", "assistant"),
		settings: DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryCache(s.settings.CacheTTL, s.now)
	}
	if s.breaker == nil {
		s.breaker = NewBreaker(defaultBreakerThreshold, 0, s.now)
	}
	return s, nil
}

// ClearExpired sweeps the reply cache and returns how many entries went.
func (s *Service) ClearExpired(ctx context.Context) int {
	return s.cache.ClearExpired(ctx)
}

// turn is a request with its context resolved.
type turn struct {
	req          SendRequest
	memories     []memory.Entry
	systemPrompt string
	history      []llm.Message
	cacheKey     string
}

func (s *Service) prepare(ctx context.Context, req SendRequest) *turn {
	memories := s.recall(ctx, req)
	return &turn{
		req:          req,
		memories:     memories,
		systemPrompt: BuildSystemPrompt(NewContext(req.Context, memories)),
		history:      OptimizeHistory(req.History, s.settings.HistoryCap),
		cacheKey:     CacheKey(req.Message, req.Context.CurrentSection),
	}
}

func (s *Service) recall(ctx context.Context, req SendRequest) []memory.Entry {
	if s.memory == nil || req.UserID == "" || !s.memory.Available() {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Message)) < s.settings.MemoryMinLength {
		return nil
	}
	entries, err := s.memory.Search(ctx, req.Message, req.UserID, s.settings.MemoryLimit, nil)
	if err != nil {
		s.log.Warn("memory search failed, continuing without memory", "user_id", req.UserID, "error", err)
		return nil
	}
	return entries
}

func (s *Service) toolsAllowed(req SendRequest) bool {
	return req.EnableFunctionCalling && len(s.tools) > 0 && s.breaker.Allow()
}

// SendMessage answers one turn. It never fails: when every attempt does,
// the reply is an apology with StatusError.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) Reply {
	defer s.locks.lock(req.SessionID)()

	t := s.prepare(ctx, req)
	useTools := s.toolsAllowed(req)

	if !useTools {
		if text, ok := s.cache.Get(ctx, t.cacheKey); ok {
			s.log.Debug("reply served from cache", "section", req.Context.CurrentSection)
			return s.success(t, text, nil)
		}
	}

	var (
		reply *llm.ChatReply
		err   error
	)
	if useTools {
		reply, err = s.chat(ctx, t, true)
		if err != nil {
			s.breaker.Failure()
			s.log.Warn("function-calling turn failed, retrying without tools",
				"failures", s.breaker.Failures(), "error", err)
		} else {
			s.breaker.Success()
		}
	}
	if !useTools || err != nil {
		reply, err = s.chat(ctx, t, false)
	}
	if err != nil {
		s.log.Error("assistant turn failed", "session_id", req.SessionID, "error", err)
		return s.apology(t, err)
	}

	text := LimitResponseLength(reply.Text, s.settings.MaxResponseLength)
	if !useTools && len(reply.FunctionCalls) == 0 {
		s.cache.Set(ctx, t.cacheKey, text)
	}
	s.remember(t, text)
	return s.success(t, text, reply.FunctionCalls)
}

func (s *Service) chat(ctx context.Context, t *turn, withTools bool) (*llm.ChatReply, error) {
	req := llm.ChatRequest{
		SystemPrompt: t.systemPrompt,
		History:      t.history,
		Message:      t.req.Message,
	}
	if withTools {
		req.Tools = s.tools
		req.ToolChoice = ToolChoiceFor(t.req.Message)
	}
	return retry(ctx, s.settings.RetryAttempts, s.settings.RetryBaseDelay, s.notifyRetry, func() (*llm.ChatReply, error) {
		reply, err := s.llm.Chat(ctx, req)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return reply, err
	})
}

func (s *Service) notifyRetry(err error, next time.Duration) {
	s.log.Debug("retrying generation", "in", next, "error", err)
}

func (s *Service) success(t *turn, text string, calls []llm.FunctionCall) Reply {
	return Reply{
		Text:          text,
		FunctionCalls: calls,
		Status:        StatusSuccess,
		UsedMemories:  t.memories,
		IsUsingMemory: len(t.memories) > 0,
	}
}

func (s *Service) apology(t *turn, err error) Reply {
	return Reply{
		Text:          ApologyText,
		Status:        StatusError,
		Error:         &ReplyError{Message: err.Error(), Code: CodeAssistantError},
		UsedMemories:  t.memories,
		IsUsingMemory: len(t.memories) > 0,
	}
}

// remember queues the exchange for long-term memory without waiting.
func (s *Service) remember(t *turn, text string) {
	if s.writer == nil || t.req.UserID == "" || strings.TrimSpace(text) == "" {
		return
	}
	s.writer.Enqueue(MemoryJob{
		UserID: t.req.UserID,
		Messages: []memory.Message{
			{Role: string(llm.RoleUser), Content: t.req.Message},
			{Role: string(llm.RoleAssistant), Content: text},
		},
		Metadata: map[string]any{
			"source":        memorySource,
			"timestamp":     s.now().UTC().Format(time.RFC3339),
			"isUsingMemory": len(t.memories) > 0,
			"memoryCount":   len(t.memories),
		},
	})
}

// callbackError marks failures raised by the caller's chunk handler so
// they are told apart from generation failures.
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

// StreamMessage answers one turn through req.OnChunk. Generation failures
// never surface: partial output stays delivered, and a turn that produced
// nothing receives the apology. Only errors returned by the callbacks are
// returned.
//
// When function calling is on and OnFunctionCall is set, the turn runs
// unstreamed first, since a function call cannot be split across chunks.
// Each call is then delivered as a "function_call: {...}" chunk followed
// by the reply text.
func (s *Service) StreamMessage(ctx context.Context, req StreamRequest) error {
	defer s.locks.lock(req.SessionID)()

	emit := req.OnChunk
	if emit == nil {
		emit = func(string) error { return nil }
	}

	t := s.prepare(ctx, req.SendRequest)
	if req.OnMemoryUsage != nil && len(t.memories) > 0 {
		req.OnMemoryUsage(t.memories)
	}

	if req.OnFunctionCall != nil && s.toolsAllowed(req.SendRequest) {
		reply, err := s.chat(ctx, t, true)
		if err == nil {
			s.breaker.Success()
			return s.emitReply(t, reply, emit, req.OnFunctionCall)
		}
		s.breaker.Failure()
		s.log.Warn("function-calling turn failed, falling back to streaming",
			"failures", s.breaker.Failures(), "error", err)
	}

	limiter := newStreamLimiter(s.settings.MaxResponseLength, func(chunk string) error {
		if err := emit(chunk); err != nil {
			return &callbackError{err: err}
		}
		return nil
	})
	chatReq := llm.ChatRequest{
		SystemPrompt: t.systemPrompt,
		History:      t.history,
		Message:      req.Message,
	}
	_, err := retry(ctx, s.settings.RetryAttempts, s.settings.RetryBaseDelay, s.notifyRetry, func() (struct{}, error) {
		err := s.llm.StreamChat(ctx, chatReq, limiter.write)
		if err != nil && (limiter.delivered() || ctx.Err() != nil) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	})

	var cbErr *callbackError
	if errors.As(err, &cbErr) {
		return cbErr.err
	}
	if err != nil {
		s.log.Error("streamed turn failed", "session_id", req.SessionID, "error", err)
		if !limiter.delivered() {
			return emit(ApologyText)
		}
		return nil
	}

	text := limiter.text()
	if text != "" {
		s.cache.Set(ctx, t.cacheKey, text)
	}
	s.remember(t, text)
	return nil
}

func (s *Service) emitReply(t *turn, reply *llm.ChatReply, emit func(string) error, onCall func(llm.FunctionCall)) error {
	for _, call := range reply.FunctionCalls {
		payload, err := json.Marshal(struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		}{call.Name, call.Args})
		if err != nil {
			return err
		}
		if err := emit("function_call: " + string(payload)); err != nil {
			return err
		}
		onCall(call)
	}

	text := LimitResponseLength(reply.Text, s.settings.MaxResponseLength)
	if text != "" {
		if err := emit(text); err != nil {
			return err
		}
	}
	s.remember(t, text)
	return nil
}
