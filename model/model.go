package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NewToolCall builds a function tool call with JSON-encoded arguments.
func NewToolCall(id, name string, args any) ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}

	return ToolCall{ID: id, Type: "function", Function: ToolCallFunction{Name: name, Arguments: raw}}
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request is the normalized completion request produced by agent handlers.
// Its JSON form is the wire shape of the remote completion endpoint.
type Request struct {
	Instructions string           `json:"instructions,omitempty"`
	Input        string           `json:"input"`
	AgentType    core.AgentType   `json:"agentType"`
	UserID       string           `json:"userId"`
	RunID        string           `json:"runId"`
	GroupID      string           `json:"groupId"`
	ContextData  map[string]any   `json:"contextData,omitempty"`
	History      []core.Message   `json:"conversationHistory,omitempty"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "remote", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agent handlers to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are matched by exact input first, then by queued order, then a
// generic echo. Every Generate call is counted.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]Response
	queue     []Response
	err       error
	requests  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]Response),
	}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockModel) AddResponse(input, text string, calls ...ToolCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[input] = Response{Text: text, ToolCalls: calls, FinishReason: "stop"}
}

// Enqueue appends a response served to the next call without an exact match.
func (m *MockModel) Enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, resp)
}

// SetError makes every subsequent call fail with err (nil clears it).
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return Response{}, m.err
	}

	if r, ok := m.responses[req.Input]; ok {
		return r, nil
	}

	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]

		return r, nil
	}

	return Response{Text: fmt.Sprintf("Mock response to: %s", req.Input), FinishReason: "stop"}, nil
}

// Generate implements Model; emits optional streaming word chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, w := range strings.SplitAfter(full.Text, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: w}:
				}
			}
		}

		full.Partial = false
		respCh <- full
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
