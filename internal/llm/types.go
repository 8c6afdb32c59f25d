package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// ToolDeclaration describes a function the model may call. Parameters is a
// JSON-schema object.
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolMode controls how strongly the model is pushed toward calling a tool.
type ToolMode string

const (
	ToolModeAuto ToolMode = "AUTO"
	ToolModeAny  ToolMode = "ANY"
	ToolModeNone ToolMode = "NONE"
)

// ToolChoice narrows tool selection. An empty AllowedFunctions permits every
// declared tool.
type ToolChoice struct {
	Mode             ToolMode
	AllowedFunctions []string
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopK        int
	JSONMode    bool
	Tools       []ToolDeclaration
	ToolChoice  *ToolChoice
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content       string
	FunctionCalls []FunctionCall
	InputTokens   int
	OutputTokens  int
	Model         string
	FinishReason  string
}
