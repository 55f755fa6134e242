package core

import (
	"context"
	"fmt"

	"github.com/rvndrmann/mannmediaagency-sub000/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked on behalf of an agent. A transfer requested by a
// tool is accumulated here and applied by the caller, never directly.
type ToolContext struct {
	ctx       context.Context
	actx      *AgentContext
	commandID string
	toolName  string
	projects  ProjectStore
	transfer  *HandoffRequest
	logger    *logging.StructuredLogger
}

// ToolContextOptions configures optional collaborators of a ToolContext.
type ToolContextOptions struct {
	Projects ProjectStore
	Logger   logging.Logger
}

// NewToolContext constructs a tool context bound to a run's agent context
// and a unique command id.
func NewToolContext(ctx context.Context, actx *AgentContext, commandID, toolName string, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if actx == nil {
		actx = &AgentContext{}
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	logger := logging.NewStructuredLogger(opts.Logger).
		WithRun(actx.RunID, actx.GroupID).
		WithContext("tool", toolName).
		WithContext("command_id", commandID)

	return &ToolContext{
		ctx:       ctx,
		actx:      actx,
		commandID: commandID,
		toolName:  toolName,
		projects:  opts.Projects,
		logger:    logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// AgentContext returns the run context the tool acts on.
func (tc *ToolContext) AgentContext() *AgentContext { return tc.actx }

// UserID returns the user on whose behalf the tool runs.
func (tc *ToolContext) UserID() string { return tc.actx.UserID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.actx.RunID }

// ProjectID returns the effective project of the run.
func (tc *ToolContext) ProjectID() string { return tc.actx.EffectiveProjectID() }

// SceneID returns the scene of the run, preferring the handoff payload.
func (tc *ToolContext) SceneID() string {
	if tc.actx.SceneID != "" {
		return tc.actx.SceneID
	}

	return tc.actx.HandoffContext().SceneID
}

// CommandID returns the command ID associated with the tool invocation.
func (tc *ToolContext) CommandID() string { return tc.commandID }

// ToolName returns the name of the tool being executed.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Logger returns a logger tagged with the run, the tool and the command id.
func (tc *ToolContext) Logger() *logging.StructuredLogger { return tc.logger }

// Projects returns the project store or an error when none is configured.
func (tc *ToolContext) Projects() (ProjectStore, error) {
	if tc.projects == nil {
		return nil, fmt.Errorf("project store not configured")
	}

	return tc.projects, nil
}

// TransferToAgent signals orchestration to hand off control to another agent.
func (tc *ToolContext) TransferToAgent(target AgentType, reason string, hc HandoffContext) {
	tc.transfer = &HandoffRequest{TargetAgent: target, Reason: reason, AdditionalContext: hc}
	tc.logger.Info("tool.transfer.request", "to_agent", string(target), "reason", reason)
}

// Transfer returns the pending transfer request, if any.
func (tc *ToolContext) Transfer() *HandoffRequest { return tc.transfer }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.commandID == "" || tc.toolName == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
