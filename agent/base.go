package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
	"github.com/rvndrmann/mannmediaagency-sub000/internal/util"
	"github.com/rvndrmann/mannmediaagency-sub000/logging"
	"github.com/rvndrmann/mannmediaagency-sub000/model"
	"github.com/rvndrmann/mannmediaagency-sub000/tool"
)

const (
	// DefaultMaxHistoryMessages bounds the history sent with a completion.
	DefaultMaxHistoryMessages = 20

	// UpstreamFailureMessage replaces the response when the completion call fails.
	UpstreamFailureMessage = "I'm sorry, I couldn't generate a response right now. Please try again in a moment."
)

// ErrNoModel is reported when a handler that needs a completion has no model.
var ErrNoModel = errors.New("agent: no model configured")

// Options configures a handler. The same options are usually shared by every
// handler of a registry.
type Options struct {
	// Model serves completion calls.
	Model model.Model

	// Instruction replaces the handler's built-in instruction. A per-run
	// override in AgentContext.Metadata.Instructions still wins.
	Instruction Instruction

	// Guardrails check input and output. Nil means NonEmptyGuardrail only;
	// an empty non-nil slice disables guardrails.
	Guardrails []Guardrail

	// Authenticator gates every turn (default RequireUserID).
	Authenticator Authenticator

	// Classifier routes main-agent input (default keyword classifier).
	Classifier Classifier

	// Projects persists scripts, descriptions and image prompts.
	Projects core.ProjectStore

	// Executor runs tools for the tool agent.
	Executor *tool.Executor

	Logger logging.Logger

	// MaxHistoryMessages caps the history sent upstream.
	MaxHistoryMessages int

	// DisableTransfer hides transfer_to_agent from the model.
	DisableTransfer bool

	// Stream requests incremental output from the model.
	Stream bool
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Guardrails == nil {
		opts.Guardrails = []Guardrail{NonEmptyGuardrail{}}
	}

	if opts.Authenticator == nil {
		opts.Authenticator = RequireUserID
	}

	if opts.Classifier == nil {
		opts.Classifier = NewKeywordClassifier()
	}

	if opts.MaxHistoryMessages <= 0 {
		opts.MaxHistoryMessages = DefaultMaxHistoryMessages
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return opts
}

// BaseHandler bundles the behaviour shared by every specialised handler:
// authentication, guardrails, instruction resolution and the completion call.
// Embed it and implement Process.
type BaseHandler struct {
	agentType          core.AgentType
	defaultInstruction string
	opts               Options
	logger             *logging.StructuredLogger
}

// NewBaseHandler constructs a BaseHandler for agent type t.
func NewBaseHandler(t core.AgentType, defaultInstruction string, optFns ...func(o *Options)) BaseHandler {
	opts := newOptions(optFns)

	return BaseHandler{
		agentType:          t,
		defaultInstruction: defaultInstruction,
		opts:               opts,
		logger:             logging.NewStructuredLogger(opts.Logger).WithComponent("agent." + string(t)),
	}
}

// Type implements core.Handler.
func (b *BaseHandler) Type() core.AgentType { return b.agentType }

// Options returns the resolved handler options.
func (b *BaseHandler) Options() Options { return b.opts }

// DefaultInstruction returns the built-in instruction template.
func (b *BaseHandler) DefaultInstruction() string { return b.defaultInstruction }

// Preflight runs authentication and input guardrails. When ok is false the
// returned result must be used as the turn's answer without calling the model.
func (b *BaseHandler) Preflight(ctx context.Context, input string, actx *core.AgentContext) (res core.AgentResult, ok bool) {
	if actx == nil {
		return core.NewResult(b.agentType, NotAuthenticatedMessage), false
	}

	log := b.logger.WithRun(actx.RunID, actx.GroupID)

	if err := b.opts.Authenticator.Authenticate(ctx, actx); err != nil {
		log.Warn("agent.auth.rejected", "user_id", actx.UserID, "error", err.Error())
		return core.NewResult(b.agentType, NotAuthenticatedMessage), false
	}

	for _, g := range b.opts.Guardrails {
		if err := g.CheckInput(ctx, input, actx); err != nil {
			reason := guardrailReason(err)
			log.Warn("agent.guardrail.blocked", "guardrail", g.Name(), "stage", "input", "reason", reason)

			res := core.NewResult(b.agentType, GuardrailBlockedMessage+reason)
			res.StructuredOutput = map[string]any{"blocked": true, "guardrail": g.Name()}

			return res, false
		}
	}

	return core.AgentResult{}, true
}

// ResolveInstruction picks the per-run override, the configured instruction
// or the built-in one, then renders it against the context.
func (b *BaseHandler) ResolveInstruction(ctx context.Context, actx *core.AgentContext) (string, error) {
	text, ok := actx.InstructionFor(b.agentType)
	if !ok {
		inst := b.opts.Instruction
		if inst.IsZero() {
			inst = NewInstructionFromText(b.defaultInstruction)
		}

		var err error
		if text, err = inst.Resolve(ctx, actx); err != nil {
			return "", err
		}
	}

	return util.RenderTemplate(text, actx.TemplateData())
}

// ContextData is the context object sent along with every completion.
func (b *BaseHandler) ContextData(actx *core.AgentContext) map[string]any {
	data := map[string]any{"creditsRemaining": actx.CreditsRemaining}

	if pid := actx.EffectiveProjectID(); pid != "" {
		data["projectId"] = pid
	}

	if actx.SceneID != "" {
		data["sceneId"] = actx.SceneID
	}

	if md := actx.Metadata; md.IsHandoffContinuation {
		data["isHandoffContinuation"] = true
		data["previousAgentType"] = string(md.PreviousAgentType)
		data["handoffReason"] = md.HandoffReason
	}

	hc := actx.HandoffContext()
	if hc.WorkflowInfo != nil {
		data["workflowInfo"] = *hc.WorkflowInfo
	}

	if len(hc.StructuredOutput) > 0 {
		data["handoffData"] = hc.StructuredOutput
	}

	if len(hc.Extra) > 0 {
		data["extra"] = hc.Extra
	}

	return data
}

// Complete calls the model for input. extra is merged over ContextData.
func (b *BaseHandler) Complete(
	ctx context.Context,
	input string,
	actx *core.AgentContext,
	extra map[string]any,
	tools []model.ToolDefinition,
) (model.Completion, error) {
	if b.opts.Model == nil {
		return model.Completion{}, ErrNoModel
	}

	log := b.logger.WithRun(actx.RunID, actx.GroupID)

	instructions, err := b.ResolveInstruction(ctx, actx)
	if err != nil {
		log.Warn("agent.instruction.failed", "error", err.Error())
		instructions = b.defaultInstruction
	}

	data := b.ContextData(actx)
	maps.Copy(data, extra)

	if !b.opts.DisableTransfer {
		tools = append(tools, model.TransferToolDefinition(b.transferTargets()))
	}

	req := model.Request{
		Instructions: instructions,
		Input:        input,
		AgentType:    b.agentType,
		UserID:       actx.UserID,
		RunID:        actx.RunID,
		GroupID:      actx.GroupID,
		ContextData:  data,
		History:      b.history(actx),
		Tools:        tools,
		Stream:       b.opts.Stream,
	}

	start := time.Now()
	c, err := model.Complete(ctx, b.opts.Model, req)

	tokens := 0
	if c.Usage != nil {
		tokens = c.Usage.TotalTokens
	}

	log.LogLLMCall(b.opts.Model.Info().Name, tokens, time.Since(start), err)

	for _, rerr := range c.Rejected {
		log.Warn("agent.completion.call_rejected", "error", rerr.Error())
	}

	return c, err
}

// ResultFrom turns a completion into a terminal result of this handler.
func (b *BaseHandler) ResultFrom(c model.Completion) core.AgentResult {
	res := core.NewResult(b.agentType, c.Text)
	res.StructuredOutput = maps.Clone(c.StructuredOutput)

	return res
}

// PassThrough forwards a handoff requested by the model. Requests to hand
// off to the handler's own type are dropped.
func (b *BaseHandler) PassThrough(res core.AgentResult, c model.Completion, actx *core.AgentContext) core.AgentResult {
	if c.Handoff == nil || c.Handoff.TargetAgent == b.agentType || c.Handoff.TargetAgent == core.AgentTypeNone {
		return res
	}

	hc := c.Handoff.AdditionalContext.Clone()
	if hc.ProjectID == "" {
		hc.ProjectID = actx.EffectiveProjectID()
	}

	if hc.SceneID == "" {
		hc.SceneID = actx.SceneID
	}

	return res.WithHandoff(c.Handoff.TargetAgent, c.Handoff.Reason, &hc)
}

// UpstreamFailure logs err and returns the apologetic degraded result.
func (b *BaseHandler) UpstreamFailure(actx *core.AgentContext, err error) core.AgentResult {
	b.logger.WithRun(actx.RunID, actx.GroupID).Error("agent.completion.failed", "error", err.Error())
	return core.DegradedResult(b.agentType, UpstreamFailureMessage)
}

// RecordSaveError logs a failed best-effort write and surfaces it under
// StructuredOutput["saveError"]. The turn proceeds.
func (b *BaseHandler) RecordSaveError(res *core.AgentResult, actx *core.AgentContext, op string, err error) {
	b.logger.WithRun(actx.RunID, actx.GroupID).Error("agent.save.failed", "op", op, "error", err.Error())

	if res.StructuredOutput == nil {
		res.StructuredOutput = map[string]any{}
	}

	res.StructuredOutput["saveError"] = err.Error()
}

// Finalize fills in a response for silent handoffs and applies output guardrails.
func (b *BaseHandler) Finalize(ctx context.Context, res core.AgentResult, actx *core.AgentContext) core.AgentResult {
	res.AgentType = b.agentType

	if res.HasHandoff() && strings.TrimSpace(res.Response) == "" {
		res.Response = fmt.Sprintf("Handing you over to the %s agent.", res.NextAgent)
	}

	for _, g := range b.opts.Guardrails {
		if err := g.CheckOutput(ctx, res.Response, actx); err != nil {
			reason := guardrailReason(err)
			b.logger.WithRun(actx.RunID, actx.GroupID).Warn("agent.guardrail.blocked", "guardrail", g.Name(), "stage", "output", "reason", reason)

			res = res.ClearHandoff()
			res.Response = OutputBlockedMessage + reason

			return res
		}
	}

	return res
}

// Forward hands the turn to target, carrying the project and scene ids.
func (b *BaseHandler) Forward(res core.AgentResult, target core.AgentType, reason string, actx *core.AgentContext, hc core.HandoffContext) core.AgentResult {
	if hc.ProjectID == "" {
		hc.ProjectID = actx.EffectiveProjectID()
	}

	if hc.SceneID == "" {
		hc.SceneID = actx.SceneID
	}

	b.logger.WithRun(actx.RunID, actx.GroupID).Info("agent.handoff.forced", "target", string(target), "reason", reason)

	return res.WithHandoff(target, reason, &hc)
}

func (b *BaseHandler) transferTargets() []core.AgentType {
	out := make([]core.AgentType, 0, len(core.BuiltinAgentTypes))
	for _, t := range core.BuiltinAgentTypes {
		if t != b.agentType {
			out = append(out, t)
		}
	}

	return out
}

func (b *BaseHandler) history(actx *core.AgentContext) []core.Message {
	h := actx.History
	if len(h) > b.opts.MaxHistoryMessages {
		h = h[len(h)-b.opts.MaxHistoryMessages:]
	}

	return append([]core.Message(nil), h...)
}

// nextStage returns the workflow info for stage, keeping the workflow type
// carried by the current context.
func nextStage(actx *core.AgentContext, stage core.WorkflowStage) *core.WorkflowInfo {
	wt := VideoWorkflowType
	if w := actx.Workflow(); w != nil && w.WorkflowType != "" {
		wt = w.WorkflowType
	}

	return &core.WorkflowInfo{IsPartOfWorkflow: true, WorkflowType: wt, WorkflowStage: stage}
}
