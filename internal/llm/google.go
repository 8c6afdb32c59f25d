package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleProvider implements Provider and StreamingProvider against the
// Gemini REST API, including function calling.
type GoogleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGoogleProvider creates a new Google Gemini provider.
func NewGoogleProvider(apiKey string, model string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: googleAPIBaseURL,
		client:  &http.Client{},
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig       `json:"toolConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []ToolDeclaration `json:"functionDeclarations"`
}

type geminiToolConfig struct {
	FunctionCallingConfig geminiFunctionCallingConfig `json:"functionCallingConfig"`
}

type geminiFunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (p *GoogleProvider) buildRequest(req CompletionRequest) geminiRequest {
	var systemParts []geminiPart
	var contents []geminiContent

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, geminiPart{Text: msg.Content})
		case RoleUser:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	if len(contents) == 0 {
		contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: " "}}})
	}

	apiReq := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopK:            req.TopK,
		},
	}
	if len(systemParts) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: systemParts}
	}
	if req.JSONMode {
		apiReq.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = []geminiTool{{FunctionDeclarations: req.Tools}}
		if req.ToolChoice != nil {
			apiReq.ToolConfig = &geminiToolConfig{
				FunctionCallingConfig: geminiFunctionCallingConfig{
					Mode:                 string(req.ToolChoice.Mode),
					AllowedFunctionNames: req.ToolChoice.AllowedFunctions,
				},
			}
		}
	}
	return apiReq
}

func (p *GoogleProvider) post(ctx context.Context, model, method string, apiReq geminiRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:%s", p.baseURL, model, method)
	if strings.Contains(url, "?") {
		url += "&key=" + p.apiKey
	} else {
		url += "?key=" + p.apiKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	return httpResp, nil
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	httpResp, err := p.post(ctx, model, "generateContent", p.buildRequest(req))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("gemini API error (%s): %s", apiResp.Error.Status, apiResp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	out := &CompletionResponse{Model: model}
	if len(apiResp.Candidates) > 0 {
		cand := apiResp.Candidates[0]
		out.FinishReason = cand.FinishReason
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				out.Content += part.Text
				if part.FunctionCall != nil {
					out.FunctionCalls = append(out.FunctionCalls, FunctionCall{
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					})
				}
			}
		}
	}
	if apiResp.UsageMetadata != nil {
		out.InputTokens = apiResp.UsageMetadata.PromptTokenCount
		out.OutputTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// Stream uses the server-sent-events variant of generateContent.
func (p *GoogleProvider) Stream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	model := req.Model
	if model == "" {
		model = p.model
	}

	httpResp, err := p.post(ctx, model, "streamGenerateContent?alt=sse", p.buildRequest(req))
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("gemini stream returned status %d: %s", httpResp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event geminiResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("failed to unmarshal gemini stream event: %w", err)
		}
		if event.Error != nil {
			return fmt.Errorf("gemini API error (%s): %s", event.Error.Status, event.Error.Message)
		}
		if len(event.Candidates) == 0 || event.Candidates[0].Content == nil {
			continue
		}
		for _, part := range event.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			if err := onChunk(part.Text); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading gemini stream: %w", err)
	}
	return nil
}
