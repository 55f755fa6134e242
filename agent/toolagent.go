package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

const (
	toolInstruction = `You execute actions for the user with the available tools.
Pick the tool that matches the request, fill in its parameters and call it.
Tools cost credits; the user has {{.CreditsRemaining}} credits left.
{{if .SceneID}}The current scene is {{.SceneID}}.{{end}}`

	// ToolsUnavailableMessage is returned when no executor is configured.
	ToolsUnavailableMessage = "Tool execution is not available right now."
)

// ToolHandler runs credit-gated tools requested by the model and finishes
// the video workflow by submitting image generation jobs.
type ToolHandler struct {
	BaseHandler
}

// NewToolHandler constructs the tool handler. Options.Executor must be set
// for tools to run.
func NewToolHandler(optFns ...func(o *Options)) *ToolHandler {
	return &ToolHandler{BaseHandler: NewBaseHandler(core.AgentTypeTool, toolInstruction, optFns...)}
}

// Process implements core.Handler.
func (h *ToolHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	if h.opts.Executor == nil {
		return core.NewResult(h.agentType, ToolsUnavailableMessage), nil
	}

	if w := actx.Workflow(); w != nil && w.IsPartOfWorkflow && w.WorkflowStage == core.StageImageGeneration {
		if prompts := workflowPrompts(actx.HandoffContext().ImageParameters); len(prompts) > 0 {
			return h.Finalize(ctx, h.generateImages(ctx, actx, prompts), actx), nil
		}
	}

	defs := h.opts.Executor.Registry().Definitions(tool.TransferToAgentName)

	c, err := h.Complete(ctx, input, actx, map[string]any{"creditsRemaining": actx.CreditsRemaining}, defs)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	res := h.ResultFrom(c)
	if len(c.ToolCalls) == 0 {
		return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
	}

	var (
		lines   []string
		results []tool.Result
		handoff *core.HandoffRequest
	)

	if strings.TrimSpace(c.Text) != "" {
		lines = append(lines, c.Text)
	}

	for _, call := range c.ToolCalls {
		params := map[string]any{}
		if len(call.Function.Arguments) > 0 {
			if err := json.Unmarshal(call.Function.Arguments, &params); err != nil {
				r := tool.Failed(tool.CodeValidation, fmt.Sprintf("Invalid arguments for %s: %v", call.Function.Name, err))
				results = append(results, r)
				lines = append(lines, resultLine(call.Function.Name, r))

				continue
			}
		}

		r := h.opts.Executor.ExecuteCommand(ctx, tool.Command{ID: call.ID, ToolName: call.Function.Name, Parameters: params}, actx)
		results = append(results, r)
		lines = append(lines, resultLine(call.Function.Name, r))

		if handoff == nil && r.Handoff != nil {
			handoff = r.Handoff
		}
	}

	res.Response = strings.Join(lines, "\n")
	if res.StructuredOutput == nil {
		res.StructuredOutput = map[string]any{}
	}

	res.StructuredOutput["toolResults"] = results

	if handoff != nil && handoff.TargetAgent != h.agentType {
		return h.Finalize(ctx, h.Forward(res, handoff.TargetAgent, handoff.Reason, actx, handoff.AdditionalContext), actx), nil
	}

	return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
}

// generateImages submits one generate_image command per prompt and marks the
// workflow completed. Failures are reported per scene; the run ends here.
func (h *ToolHandler) generateImages(ctx context.Context, actx *core.AgentContext, prompts []ScenePrompt) core.AgentResult {
	aspect := DefaultAspectRatio
	if v, ok := actx.HandoffContext().ImageParameters["aspectRatio"].(string); ok && v != "" {
		aspect = v
	}

	var (
		results []tool.Result
		failed  []string
		started int
	)

	for _, p := range prompts {
		params := map[string]any{"prompt": p.Prompt, "aspect_ratio": aspect}
		if p.SceneID != "" {
			params["scene_id"] = p.SceneID
		}

		r := h.opts.Executor.ExecuteCommand(ctx, tool.Command{ToolName: tool.GenerateImageName, Parameters: params}, actx)
		results = append(results, r)

		if r.Success {
			started++
			continue
		}

		failed = append(failed, fmt.Sprintf("Scene %d: %s", p.SceneNumber, r.Message))
	}

	msg := fmt.Sprintf("Started image generation for %d of %d scenes.", started, len(prompts))
	if len(failed) > 0 {
		msg += "\n" + strings.Join(failed, "\n")
	}

	res := core.NewResult(h.agentType, msg)
	res.StructuredOutput = map[string]any{
		"workflowStage": string(core.StageCompleted),
		"toolResults":   results,
	}

	h.logger.WithRun(actx.RunID, actx.GroupID).Info("agent.workflow.completed", "started", started, "failed", len(failed))

	return res
}

func resultLine(name string, r tool.Result) string {
	mark := "✓"
	if !r.Success {
		mark = "✗"
	}

	return fmt.Sprintf("%s %s: %s", mark, name, r.Message)
}

// workflowPrompts reads the prompt list carried in ImageParameters. Values
// that crossed a JSON boundary arrive as []any with float64 numbers.
func workflowPrompts(params map[string]any) []ScenePrompt {
	var items []map[string]any

	switch v := params["prompts"].(type) {
	case []map[string]any:
		items = v
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				items = append(items, m)
			}
		}
	case []ScenePrompt:
		return v
	}

	out := make([]ScenePrompt, 0, len(items))

	for _, m := range items {
		p := ScenePrompt{}
		p.Prompt, _ = m["prompt"].(string)
		p.SceneID, _ = m["sceneId"].(string)

		switch n := m["sceneNumber"].(type) {
		case int:
			p.SceneNumber = n
		case float64:
			p.SceneNumber = int(n)
		}

		if strings.TrimSpace(p.Prompt) != "" {
			out = append(out, p)
		}
	}

	return out
}
