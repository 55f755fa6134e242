package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAgentType is returned when a string does not name a known agent type.
var ErrUnknownAgentType = errors.New("unknown agent type")

// AgentType identifies a specialised handler. The built-in set is closed; a
// registry may still hold custom types registered at runtime.
type AgentType string

const (
	// AgentTypeNone marks the absence of a next agent (terminal turn).
	AgentTypeNone AgentType = ""
	// AgentTypeMain is the general assistant and default entry point.
	AgentTypeMain AgentType = "main"
	// AgentTypeScript writes video scripts.
	AgentTypeScript AgentType = "script"
	// AgentTypeImage produces scene image prompts.
	AgentTypeImage AgentType = "image"
	// AgentTypeTool executes credit-gated tools.
	AgentTypeTool AgentType = "tool"
	// AgentTypeScene writes detailed scene descriptions.
	AgentTypeScene AgentType = "scene"
	// AgentTypeData answers questions about project and scene data.
	AgentTypeData AgentType = "data"
)

// BuiltinAgentTypes lists the closed set in routing order.
var BuiltinAgentTypes = []AgentType{
	AgentTypeMain,
	AgentTypeScript,
	AgentTypeImage,
	AgentTypeTool,
	AgentTypeScene,
	AgentTypeData,
}

var agentTypeAliases = map[string]AgentType{
	"main":          AgentTypeMain,
	"assistant":     AgentTypeMain,
	"script":        AgentTypeScript,
	"script_writer": AgentTypeScript,
	"image":         AgentTypeImage,
	"image_prompt":  AgentTypeImage,
	"tool":          AgentTypeTool,
	"scene":         AgentTypeScene,
	"scene_creator": AgentTypeScene,
	"scene-creator": AgentTypeScene,
	"data":          AgentTypeData,
}

// ParseAgentType maps a (case-insensitive) name or legacy alias to a built-in type.
func ParseAgentType(s string) (AgentType, error) {
	if t, ok := agentTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}

	return AgentTypeNone, fmt.Errorf("%w: %q", ErrUnknownAgentType, s)
}

// IsBuiltin reports whether t belongs to the closed built-in set.
func (t AgentType) IsBuiltin() bool {
	for _, b := range BuiltinAgentTypes {
		if t == b {
			return true
		}
	}

	return false
}

// String implements fmt.Stringer.
func (t AgentType) String() string {
	if t == AgentTypeNone {
		return "none"
	}

	return string(t)
}

// Handler is the contract every specialised agent implements.
//
// Process produces the response for one turn and decides whether to delegate
// by setting AgentResult.NextAgent. Implementations should convert expected
// failures (bad input, upstream errors) into a displayable result; a returned
// error or panic is caught and degraded by the calling layer.
type Handler interface {
	Type() AgentType
	Process(ctx context.Context, input string, actx *AgentContext) (AgentResult, error)
}

// HandlerFunc adapts a function into a Handler of a fixed type.
type HandlerFunc struct {
	AgentType AgentType
	Fn        func(ctx context.Context, input string, actx *AgentContext) (AgentResult, error)
}

// Type implements Handler.
func (h HandlerFunc) Type() AgentType { return h.AgentType }

// Process implements Handler.
func (h HandlerFunc) Process(ctx context.Context, input string, actx *AgentContext) (AgentResult, error) {
	return h.Fn(ctx, input, actx)
}
