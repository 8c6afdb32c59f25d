// Package assistant runs the clinician-facing conversational assistant:
// memory-aware context assembly, function calling with a circuit breaker,
// response caching and length limiting, and streaming.
package assistant

import (
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/memory"
)

const (
	// ApologyText is the reply when every generation attempt failed.
	ApologyText = "Lo siento, estoy teniendo problemas para responder en este momento. Por favor, inténtalo de nuevo más tarde."

	// TruncationMarker ends a stream that hit the response length cap.
	TruncationMarker = "\n\n[Respuesta truncada por brevedad]"

	// CodeAssistantError tags apology replies.
	CodeAssistantError = "ASSISTANT_ERROR"
)

// Status of a Reply.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ContextParams describes where the user is in the platform.
type ContextParams struct {
	CurrentSection string   `json:"currentSection,omitempty"`
	CurrentPage    string   `json:"currentPage,omitempty"`
	PatientID      string   `json:"patientId,omitempty"`
	PatientName    string   `json:"patientName,omitempty"`
	UserName       string   `json:"userName,omitempty"`
	RecentPatients []string `json:"recentPatients,omitempty"`
}

// SendRequest is one user turn.
type SendRequest struct {
	Message               string
	History               []llm.Message
	Context               ContextParams
	EnableFunctionCalling bool
	SessionID             string
	UserID                string
}

// StreamRequest is a user turn answered incrementally.
type StreamRequest struct {
	SendRequest

	// OnChunk receives text as it is produced. Returning an error aborts
	// the stream and StreamMessage returns it.
	OnChunk        func(string) error
	OnFunctionCall func(llm.FunctionCall)
	OnMemoryUsage  func([]memory.Entry)
}

// ReplyError describes why a reply is an apology.
type ReplyError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Reply is the assistant's answer to a SendRequest. Text is empty only
// when the model answered with function calls alone.
type Reply struct {
	Text          string             `json:"text"`
	FunctionCalls []llm.FunctionCall `json:"functionCalls,omitempty"`
	Status        Status             `json:"status"`
	Error         *ReplyError        `json:"error,omitempty"`
	UsedMemories  []memory.Entry     `json:"usedMemories,omitempty"`
	IsUsingMemory bool               `json:"isUsingMemory"`
}
