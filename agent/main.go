package agent

import (
	"context"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

const mainInstruction = `You are the main assistant of a video production studio.
Answer general questions directly and keep answers short.
When the user needs a script, a scene description, image prompts, tool execution or
project data, call transfer_to_agent with the best suited agent and a short reason.
{{if .ProjectID}}The user is working on project {{.ProjectID}}.{{end}}
{{if .IsHandoffContinuation}}The {{.PreviousAgentType}} agent handed the conversation back to you: {{.HandoffReason}}{{end}}`

// MainHandler is the general assistant and default entry point. It routes
// requests to specialists using the model's own transfer decision, falling
// back to a Classifier.
type MainHandler struct {
	BaseHandler
}

// NewMainHandler constructs the main handler.
func NewMainHandler(optFns ...func(o *Options)) *MainHandler {
	return &MainHandler{BaseHandler: NewBaseHandler(core.AgentTypeMain, mainInstruction, optFns...)}
}

// Process implements core.Handler.
func (h *MainHandler) Process(ctx context.Context, input string, actx *core.AgentContext) (core.AgentResult, error) {
	if res, ok := h.Preflight(ctx, input, actx); !ok {
		return res, nil
	}

	c, err := h.Complete(ctx, input, actx, nil, nil)
	if err != nil {
		return h.UpstreamFailure(actx, err), nil
	}

	res := h.ResultFrom(c)

	// Greetings and small talk stay with the main agent.
	if IsSimpleGreeting(input) {
		return h.Finalize(ctx, res, actx), nil
	}

	if c.Handoff != nil {
		return h.Finalize(ctx, h.PassThrough(res, c, actx), actx), nil
	}

	intent, ok := h.opts.Classifier.Classify(input)
	if !ok || intent.Target == h.agentType {
		return h.Finalize(ctx, res, actx), nil
	}

	// Do not bounce straight back to an agent that just returned the turn.
	if md := actx.Metadata; md.IsHandoffContinuation && md.PreviousAgentType == intent.Target {
		return h.Finalize(ctx, res, actx), nil
	}

	hc := core.HandoffContext{}
	if intent.StartsWorkflow {
		hc.WorkflowInfo = nextStage(actx, core.StageScriptGeneration)
	}

	return h.Finalize(ctx, h.Forward(res, intent.Target, intent.Reason(), actx, hc), actx), nil
}
