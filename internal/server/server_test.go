package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ziadkadry99/clinrag/internal/assistant"
	"github.com/ziadkadry99/clinrag/internal/db"
	"github.com/ziadkadry99/clinrag/internal/llm"
)

type stubChat struct{}

func (stubChat) Chat(context.Context, llm.ChatRequest) (*llm.ChatReply, error) {
	return &llm.ChatReply{Text: "hola"}, nil
}

func (stubChat) StreamChat(_ context.Context, _ llm.ChatRequest, onChunk func(string) error) error {
	return onChunk("hola")
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestHealthCheck(t *testing.T) {
	srv := New(Config{Port: 0}, Deps{DB: openDB(t)})

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", body["status"])
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := New(Config{Port: 0, AllowAll: true}, Deps{DB: openDB(t)})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestMountsFeatureRoutes(t *testing.T) {
	svc, err := assistant.NewService(stubChat{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv := New(Config{}, Deps{DB: openDB(t), Assistant: svc})

	tests := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/sessions", `{"user_id":"u1"}`, http.StatusCreated},
		{"GET", "/api/suggestions", ``, http.StatusOK},
		{"POST", "/api/assistant/message", `{"message":"hola","enable_function_calling":false}`, http.StatusOK},
		{"POST", "/api/memory/search", `{"query":"x","user_id":"u1"}`, http.StatusServiceUnavailable},
		{"POST", "/api/reports/generate", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}
