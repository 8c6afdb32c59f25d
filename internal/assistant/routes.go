package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/memory"
	"github.com/ziadkadry99/clinrag/internal/sessions"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

const (
	functionCallPrefix = "function_call: "
	anonymousUser      = "anonymous"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ToolExecutor runs function calls returned to the client.
type ToolExecutor interface {
	Execute(ctx context.Context, userID string, call llm.FunctionCall) tools.Result
}

// API wires the assistant into HTTP. Sessions, Tools and Memory are
// optional; their routes answer 503 when unset.
type API struct {
	Service  *Service
	Sessions *sessions.Store
	Tools    ToolExecutor
	Memory   memory.Store
	Log      *logger.Logger
}

// RegisterRoutes mounts the assistant and memory routes.
func RegisterRoutes(r chi.Router, api *API) {
	if api.Log == nil {
		api.Log = logger.Nop()
	}
	r.Route("/api/assistant", func(r chi.Router) {
		r.Post("/message", api.handleMessage)
		r.Get("/stream", api.handleStream)
		r.Post("/tools/execute", api.handleExecuteTool)
	})
	r.Route("/api/memory", func(r chi.Router) {
		r.Post("/search", api.handleMemorySearch)
		r.Post("/add", api.handleMemoryAdd)
	})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// turnRequest is the body of a message request and of every websocket
// frame a client sends.
type turnRequest struct {
	Message               string           `json:"message"`
	History               []historyMessage `json:"history"`
	Context               ContextParams    `json:"context"`
	EnableFunctionCalling *bool            `json:"enable_function_calling"`
	SessionID             string           `json:"session_id"`
	UserID                string           `json:"user_id"`
}

type messageResponse struct {
	Reply
	SessionID string `json:"session_id,omitempty"`
}

// sendRequest resolves defaults and, for a known session with no inline
// history, loads the stored one. A nil error with ok false means the
// session does not exist.
func (api *API) sendRequest(ctx context.Context, in turnRequest) (req SendRequest, ok bool, err error) {
	req = SendRequest{
		Message:               in.Message,
		Context:               in.Context,
		EnableFunctionCalling: in.EnableFunctionCalling == nil || *in.EnableFunctionCalling,
		SessionID:             in.SessionID,
		UserID:                in.UserID,
	}
	for _, m := range in.History {
		req.History = append(req.History, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	if req.SessionID == "" || api.Sessions == nil {
		return req, true, nil
	}
	sess, err := api.Sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return req, false, err
	}
	if sess == nil {
		return req, false, nil
	}
	if len(req.History) == 0 {
		req.History, err = api.Sessions.History(ctx, req.SessionID)
		if err != nil {
			return req, false, err
		}
	}
	return req, true, nil
}

// persist stores both sides of a finished turn. Failures are logged; the
// client already has its answer.
func (api *API) persist(ctx context.Context, req SendRequest, reply Reply) {
	if req.SessionID == "" || api.Sessions == nil {
		return
	}
	msgs := []sessions.Message{
		{Role: llm.RoleUser, Content: req.Message},
		{
			Role:          llm.RoleAssistant,
			Content:       reply.Text,
			FunctionCalls: reply.FunctionCalls,
			UsedMemories:  reply.UsedMemories,
			IsUsingMemory: reply.IsUsingMemory,
		},
	}
	for _, m := range msgs {
		if _, err := api.Sessions.AddMessage(ctx, req.SessionID, m); err != nil {
			api.Log.Warn("persisting assistant turn", "session_id", req.SessionID, "error", err)
			return
		}
	}
}

func (api *API) handleMessage(w http.ResponseWriter, r *http.Request) {
	var in turnRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(in.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	req, ok, err := api.sendRequest(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, sessions.ErrSessionNotFound.Error())
		return
	}

	reply := api.Service.SendMessage(r.Context(), req)
	api.persist(r.Context(), req, reply)
	writeJSON(w, http.StatusOK, messageResponse{Reply: reply, SessionID: req.SessionID})
}

// streamEvent is one frame sent to a streaming client.
type streamEvent struct {
	Type         string            `json:"type"` // chunk, function_call, memory, done or error
	SessionID    string            `json:"session_id,omitempty"`
	Content      string            `json:"content,omitempty"`
	FunctionCall *llm.FunctionCall `json:"function_call,omitempty"`
	Memories     []memory.Entry    `json:"memories,omitempty"`
}

func (api *API) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Log.Warn("assistant: websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				api.Log.Warn("assistant: websocket read", "error", err)
			}
			return
		}

		var in turnRequest
		if err := json.Unmarshal(frame, &in); err != nil {
			api.send(conn, streamEvent{Type: "error", Content: "invalid message format"})
			continue
		}
		if strings.TrimSpace(in.Message) == "" {
			api.send(conn, streamEvent{Type: "error", SessionID: in.SessionID, Content: "message is required"})
			continue
		}
		if err := api.streamTurn(r.Context(), conn, in); err != nil {
			api.Log.Warn("assistant: websocket write", "error", err)
			return
		}
	}
}

// streamTurn answers one frame. A returned error means the connection is
// no longer writable.
func (api *API) streamTurn(ctx context.Context, conn *websocket.Conn, in turnRequest) error {
	req, ok, err := api.sendRequest(ctx, in)
	if err != nil {
		return conn.WriteJSON(streamEvent{Type: "error", SessionID: in.SessionID, Content: err.Error()})
	}
	if !ok {
		return conn.WriteJSON(streamEvent{Type: "error", SessionID: in.SessionID, Content: sessions.ErrSessionNotFound.Error()})
	}

	var (
		text  strings.Builder
		calls []llm.FunctionCall
		used  []memory.Entry
	)
	err = api.Service.StreamMessage(ctx, StreamRequest{
		SendRequest: req,
		OnChunk: func(chunk string) error {
			if strings.HasPrefix(chunk, functionCallPrefix) {
				return nil
			}
			text.WriteString(chunk)
			return conn.WriteJSON(streamEvent{Type: "chunk", SessionID: req.SessionID, Content: chunk})
		},
		OnFunctionCall: func(call llm.FunctionCall) {
			calls = append(calls, call)
		},
		OnMemoryUsage: func(entries []memory.Entry) {
			used = entries
		},
	})
	if err != nil {
		return err
	}

	// OnFunctionCall cannot fail, so its frames are written here.
	for i := range calls {
		if err := conn.WriteJSON(streamEvent{Type: "function_call", SessionID: req.SessionID, FunctionCall: &calls[i]}); err != nil {
			return err
		}
	}
	if len(used) > 0 {
		if err := conn.WriteJSON(streamEvent{Type: "memory", SessionID: req.SessionID, Memories: used}); err != nil {
			return err
		}
	}

	api.persist(ctx, req, Reply{
		Text:          text.String(),
		FunctionCalls: calls,
		Status:        StatusSuccess,
		UsedMemories:  used,
		IsUsingMemory: len(used) > 0,
	})
	return conn.WriteJSON(streamEvent{Type: "done", SessionID: req.SessionID})
}

func (api *API) send(conn *websocket.Conn, ev streamEvent) {
	if err := conn.WriteJSON(ev); err != nil {
		api.Log.Warn("assistant: websocket write", "error", err)
	}
}

type executeToolRequest struct {
	UserID string         `json:"user_id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
}

func (api *API) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	if api.Tools == nil {
		writeError(w, http.StatusServiceUnavailable, "tools are not configured")
		return
	}
	var in executeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if in.UserID == "" {
		in.UserID = anonymousUser
	}
	res := api.Tools.Execute(r.Context(), in.UserID, llm.FunctionCall{Name: in.Name, Args: in.Args})
	writeJSON(w, http.StatusOK, res)
}

type memorySearchRequest struct {
	Query   string            `json:"query"`
	UserID  string            `json:"user_id"`
	Limit   int               `json:"limit"`
	Filters map[string]string `json:"filters"`
}

type memorySearchResponse struct {
	Success bool           `json:"success"`
	Results []memory.Entry `json:"results"`
}

func (api *API) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	if !api.memoryAvailable(w) {
		return
	}
	var in memorySearchRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Query == "" || in.UserID == "" {
		writeError(w, http.StatusBadRequest, "query and user_id are required")
		return
	}
	if in.Limit <= 0 {
		in.Limit = 5
	}

	entries, err := api.Memory.Search(r.Context(), in.Query, in.UserID, in.Limit, in.Filters)
	if err != nil {
		writeError(w, memoryStatus(err), err.Error())
		return
	}
	if entries == nil {
		entries = []memory.Entry{}
	}
	writeJSON(w, http.StatusOK, memorySearchResponse{Success: true, Results: entries})
}

type memoryAddRequest struct {
	Messages []memory.Message `json:"messages"`
	UserID   string           `json:"user_id"`
	Metadata map[string]any   `json:"metadata"`
}

func (api *API) handleMemoryAdd(w http.ResponseWriter, r *http.Request) {
	if !api.memoryAvailable(w) {
		return
	}
	var in memoryAddRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.Messages) == 0 || in.UserID == "" {
		writeError(w, http.StatusBadRequest, "messages and user_id are required")
		return
	}

	res, err := api.Memory.Add(r.Context(), in.Messages, in.UserID, in.Metadata)
	if err != nil {
		writeError(w, memoryStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (api *API) memoryAvailable(w http.ResponseWriter) bool {
	if api.Memory == nil || !api.Memory.Available() {
		writeError(w, http.StatusServiceUnavailable, memory.ErrUnavailable.Error())
		return false
	}
	return true
}

func memoryStatus(err error) int {
	if errors.Is(err, memory.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
