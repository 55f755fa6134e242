package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// Reserved function names interpreted by Complete instead of being surfaced
// as tool calls.
const (
	TransferToolName         = "transfer_to_agent"
	StructuredOutputToolName = "structured_output"
)

// TransferArgs is the argument shape of a transfer_to_agent call.
type TransferArgs struct {
	Agent             string              `json:"agent"`
	Reason            string              `json:"reason,omitempty"`
	AdditionalContext core.HandoffContext `json:"additional_context,omitempty"`
}

// Completion is the interpreted outcome of one completion call: display
// text plus an optional handoff request and structured payload.
type Completion struct {
	Text             string
	Handoff          *core.HandoffRequest
	StructuredOutput map[string]any
	ToolCalls        []ToolCall
	Usage            *TokenUsage
	// Rejected holds reserved calls whose arguments could not be parsed.
	// They are dropped; the rest of the completion stands.
	Rejected []error
}

// TransferToolDefinition exposes transfer_to_agent to providers that support tools.
func TransferToolDefinition(targets []core.AgentType) ToolDefinition {
	names := make([]any, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t))
	}

	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        TransferToolName,
			Description: "Hand the conversation to a more suitable specialised agent.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent":  map[string]any{"type": "string", "enum": names, "description": "Target agent type"},
					"reason": map[string]any{"type": "string", "description": "Why the target agent is better suited"},
				},
				"required": []any{"agent", "reason"},
			},
		},
	}
}

// Complete drives a Generate call to completion and interprets reserved
// tool calls. Partial chunks are concatenated when the final chunk carries
// no text.
func Complete(ctx context.Context, m Model, req Request) (Completion, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		partial strings.Builder
		final   *Response
	)

loop:
	for {
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			if resp.Partial {
				partial.WriteString(resp.Text)
				continue
			}

			r := resp
			final = &r
		}
	}

	if err := <-errCh; err != nil {
		return Completion{}, err
	}

	if final == nil {
		return Completion{}, fmt.Errorf("model %s returned no final response", m.Info().Name)
	}

	c := Completion{Text: final.Text, Usage: final.Usage}
	if c.Text == "" {
		c.Text = partial.String()
	}

	for _, tc := range final.ToolCalls {
		switch tc.Function.Name {
		case TransferToolName:
			h, err := parseTransfer(tc.Function.Arguments)
			if err != nil {
				c.Rejected = append(c.Rejected, err)
				continue
			}

			if c.Handoff == nil {
				c.Handoff = h
			}
		case StructuredOutputToolName:
			so := map[string]any{}
			if err := json.Unmarshal(tc.Function.Arguments, &so); err != nil {
				c.Rejected = append(c.Rejected, fmt.Errorf("invalid structured output: %w", err))
				continue
			}

			c.StructuredOutput = so
		default:
			c.ToolCalls = append(c.ToolCalls, tc)
		}
	}

	return c, nil
}

func parseTransfer(raw json.RawMessage) (*core.HandoffRequest, error) {
	var args TransferArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid %s arguments: %w", TransferToolName, err)
	}

	t, err := core.ParseAgentType(args.Agent)
	if err != nil {
		// Custom agent types travel as-is; the registry decides.
		if args.Agent == "" {
			return nil, fmt.Errorf("%s: missing agent", TransferToolName)
		}

		t = core.AgentType(args.Agent)
	}

	return &core.HandoffRequest{TargetAgent: t, Reason: args.Reason, AdditionalContext: args.AdditionalContext}, nil
}
