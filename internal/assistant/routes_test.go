package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/clinrag/internal/db"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/memory"
	"github.com/ziadkadry99/clinrag/internal/sessions"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

type fakeExecutor struct {
	userID string
	call   llm.FunctionCall
}

func (f *fakeExecutor) Execute(_ context.Context, userID string, call llm.FunctionCall) tools.Result {
	f.userID = userID
	f.call = call
	return tools.Result{Success: true, Code: tools.CodePatientsFound, Message: "ok"}
}

func setupAPI(t *testing.T, chat *mockChat) (*API, chi.Router) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	api := &API{
		Service:  newTestService(t, chat),
		Sessions: sessions.NewStore(database),
	}
	r := chi.NewRouter()
	RegisterRoutes(r, api)
	return api, r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMessageRoutePersistsTurn(t *testing.T) {
	chat := &mockChat{}
	api, r := setupAPI(t, chat)
	ctx := context.Background()

	sess, err := api.Sessions.CreateSession(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := api.Sessions.AddMessage(ctx, sess.ID, sessions.Message{Role: llm.RoleUser, Content: "turno previo"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	body := `{"message":"hola","session_id":"` + sess.ID + `","enable_function_calling":false}`
	w := doJSON(r, http.MethodPost, "/api/assistant/message", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp messageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "respuesta" || resp.Status != StatusSuccess || resp.SessionID != sess.ID {
		t.Errorf("response = %+v", resp)
	}

	if got := chat.chatCalls()[0].History; len(got) != 1 || got[0].Content != "turno previo" {
		t.Errorf("stored history not loaded: %+v", got)
	}

	msgs, err := api.Sessions.GetMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 || msgs[1].Content != "hola" || msgs[2].Role != llm.RoleAssistant {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestMessageRouteErrors(t *testing.T) {
	_, r := setupAPI(t, &mockChat{})
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"empty message", `{"message":"  "}`, http.StatusBadRequest},
		{"unknown session", `{"message":"hola","session_id":"nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/assistant/message", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestExecuteToolRoute(t *testing.T) {
	api, r := setupAPI(t, &mockChat{})

	w := doJSON(r, http.MethodPost, "/api/assistant/tools/execute", `{"name":"search_patients","args":{"query":"Ana"}}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("without tools: status = %d", w.Code)
	}

	exec := &fakeExecutor{}
	api.Tools = exec
	w = doJSON(r, http.MethodPost, "/api/assistant/tools/execute", `{"user_id":"u1","name":"search_patients","args":{"query":"Ana"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res tools.Result
	json.NewDecoder(w.Body).Decode(&res)
	if !res.Success || res.Code != tools.CodePatientsFound {
		t.Errorf("result = %+v", res)
	}
	if exec.userID != "u1" || exec.call.Name != tools.FuncSearchPatients || exec.call.Args["query"] != "Ana" {
		t.Errorf("executed %q %+v", exec.userID, exec.call)
	}
}

func TestMemoryRoutes(t *testing.T) {
	api, r := setupAPI(t, &mockChat{})

	w := doJSON(r, http.MethodPost, "/api/memory/search", `{"query":"x","user_id":"u1"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("without memory: status = %d", w.Code)
	}

	mem := &fakeMemory{entries: []memory.Entry{{Memory: "dato"}}}
	api.Memory = mem

	w = doJSON(r, http.MethodPost, "/api/memory/search", `{"query":"x","user_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", w.Code, w.Body.String())
	}
	var found memorySearchResponse
	json.NewDecoder(w.Body).Decode(&found)
	if !found.Success || len(found.Results) != 1 || found.Results[0].Memory != "dato" {
		t.Errorf("search = %+v", found)
	}

	w = doJSON(r, http.MethodPost, "/api/memory/add", `{"user_id":"u1","messages":[{"role":"user","content":"hola"}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	if len(mem.added) != 1 {
		t.Errorf("added = %+v", mem.added)
	}

	w = doJSON(r, http.MethodPost, "/api/memory/add", `{"user_id":"u1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty add: status = %d", w.Code)
	}
}

func TestStreamRoute(t *testing.T) {
	chat := &mockChat{chunks: []string{"Hola, ", "¿en qué te ayudo?"}}
	_, r := setupAPI(t, chat)

	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/assistant/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"message": "hola", "enable_function_calling": false}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var text strings.Builder
	for {
		var ev streamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type == "done" {
			break
		}
		if ev.Type != "chunk" {
			t.Fatalf("unexpected event %+v", ev)
		}
		text.WriteString(ev.Content)
	}
	if text.String() != "Hola, ¿en qué te ayudo?" {
		t.Errorf("streamed %q", text.String())
	}

	if err := conn.WriteJSON(map[string]any{"message": ""}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ev streamEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "error" {
		t.Errorf("empty message: event = %+v", ev)
	}
}

func TestMessageRouteWithoutUserSkipsMemory(t *testing.T) {
	chat := &mockChat{}
	mem := &fakeMemory{entries: []memory.Entry{{ID: "m1", Memory: "mi paciente Juan Perez tiene ideacion suicida"}}}
	writer := NewMemoryWriter(mem, 4, 1, nil)
	api := &API{Service: newTestService(t, chat, WithMemory(mem, writer))}
	r := chi.NewRouter()
	RegisterRoutes(r, api)

	for _, msg := range []string{"mi paciente Juan Perez tiene ideacion suicida", "que sabes de mis pacientes recientes"} {
		body := `{"message":"` + msg + `","enable_function_calling":false}`
		if w := doJSON(r, http.MethodPost, "/api/assistant/message", body); w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mem.mu.Lock()
	searches, added := mem.searches, len(mem.added)
	mem.mu.Unlock()
	if searches != 0 || added != 0 {
		t.Errorf("memory used without a user: searches=%d added=%d", searches, added)
	}
	for i, call := range chat.chatCalls() {
		if strings.Contains(call.SystemPrompt, "Juan Perez") {
			t.Errorf("call %d system prompt carries another caller's memory", i)
		}
	}

	writer = NewMemoryWriter(mem, 4, 1, nil)
	api.Service = newTestService(t, chat, WithMemory(mem, writer))
	body := `{"message":"que sabes de mis pacientes recientes","user_id":"u1","enable_function_calling":false}`
	if w := doJSON(r, http.MethodPost, "/api/assistant/message", body); w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	writer.Close()
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if mem.searches != 1 || len(mem.added) != 2 {
		t.Errorf("identified user: searches=%d added=%d, want 1 and 2", mem.searches, len(mem.added))
	}
}
