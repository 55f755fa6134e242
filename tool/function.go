package tool

import (
	"errors"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a Tool.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	credits     int
	fn          func(tc *core.ToolContext, params map[string]any) (Result, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	renameTool := NewFunctionTool(
//	  "rename_project",
//	  "Rename the current project",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "title": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"title"},
//	  },
//	  0,
//	  func(tc *core.ToolContext, params map[string]any) (Result, error) {
//	    return Succeeded("renamed", nil), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	credits int,
	fn func(tc *core.ToolContext, params map[string]any) (Result, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		credits:     credits,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	credits int,
	fn func(tc *core.ToolContext, params map[string]any) (Result, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), credits, fn)
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// RequiredCredits returns the cost of one successful execution.
func (t *FunctionTool) RequiredCredits() int { return t.credits }

// Execute invokes the underlying function, normalising errors to *ToolError.
func (t *FunctionTool) Execute(tc *core.ToolContext, params map[string]any) (Result, error) {
	res, err := t.fn(tc, params)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return Result{}, toolErr
		}

		return Result{}, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	return res, nil
}
