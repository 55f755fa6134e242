package testutil

import (
	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// ContextBuilder provides a fluent helper for constructing agent contexts.
// Example:
//
//	actx := NewContextBuilder("u1", "g1").Credits(10).Project("p1").Build()
type ContextBuilder struct {
	actx *core.AgentContext
	turn int
}

// NewContextBuilder creates a builder for the given user and group.
func NewContextBuilder(userID, groupID string) *ContextBuilder {
	return &ContextBuilder{actx: core.NewAgentContext(userID, groupID)}
}

// Credits sets the remaining credits (chainable).
func (b *ContextBuilder) Credits(n int) *ContextBuilder { b.actx.CreditsRemaining = n; return b }

// Project sets the project id (chainable).
func (b *ContextBuilder) Project(id string) *ContextBuilder { b.actx.ProjectID = id; return b }

// Scene sets the scene id (chainable).
func (b *ContextBuilder) Scene(id string) *ContextBuilder { b.actx.SceneID = id; return b }

// Instruction sets a per-run instruction override (chainable).
func (b *ContextBuilder) Instruction(t core.AgentType, text string) *ContextBuilder {
	b.actx.SetInstruction(t, text)
	return b
}

// History appends prior conversation messages (chainable).
func (b *ContextBuilder) History(msgs ...core.Message) *ContextBuilder {
	b.actx.History = append(b.actx.History, msgs...)
	return b
}

// Handoff applies a handoff from -> to as the runner would (chainable).
func (b *ContextBuilder) Handoff(from, to core.AgentType, reason string, hc core.HandoffContext) *ContextBuilder {
	b.turn++
	b.actx.ApplyHandoff(from, core.HandoffRequest{TargetAgent: to, Reason: reason, AdditionalContext: hc}, b.turn)

	return b
}

// Workflow applies a handoff that enters stage of the video workflow (chainable).
func (b *ContextBuilder) Workflow(from, to core.AgentType, stage core.WorkflowStage, hc core.HandoffContext) *ContextBuilder {
	hc.WorkflowInfo = &core.WorkflowInfo{IsPartOfWorkflow: true, WorkflowType: "video_creation", WorkflowStage: stage}
	return b.Handoff(from, to, "workflow", hc)
}

// Build returns the constructed context.
func (b *ContextBuilder) Build() *core.AgentContext { return b.actx }
