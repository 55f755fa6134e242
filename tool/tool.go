// Package tool implements the credit-gated tool subsystem that lets agents
// perform concrete side-effecting actions (update a scene, queue an image
// job, transfer control) with schema validated arguments, consistent error
// handling and a pollable execution state per command.
package tool

import (
	"fmt"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/util"
)

// Tool defines a named action a handler (or API caller) can invoke.
//
// Implementations should:
//   - Provide clear, descriptive snake_case names and descriptions
//   - Define a JSON schema for parameters (validated before Execute)
//   - Report business failures as Result{Success: false}, reserving the
//     error return for unexpected failures
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to models.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// RequiredCredits is the cost charged on successful execution.
	RequiredCredits() int

	// Execute runs the tool with already validated parameters.
	Execute(tc *core.ToolContext, params map[string]any) (Result, error)
}

// Result is the uniform outcome of every execution attempt.
type Result struct {
	Success   bool                 `json:"success"`
	Message   string               `json:"message"`
	Data      any                  `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
	Code      string               `json:"code,omitempty"`
	CommandID string               `json:"commandId,omitempty"`
	Handoff   *core.HandoffRequest `json:"handoff,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// Failed builds a failed result from a message and error code.
func Failed(code, message string) Result {
	return Result{Success: false, Message: message, Error: message, Code: code}
}

// Error codes carried by ToolError and failed results.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeExecution           = "EXECUTION_ERROR"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNotFound            = "TOOL_NOT_FOUND"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
