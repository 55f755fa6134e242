package core

import "fmt"

// HandoffRequest is the delegation directive produced by a handler's decision
// logic and consumed exactly once by the runner on the next iteration.
type HandoffRequest struct {
	TargetAgent       AgentType      `json:"targetAgent"`
	Reason            string         `json:"reason"`
	AdditionalContext HandoffContext `json:"additionalContext"`
}

// AgentResult is the uniform return contract of every handler. Response is
// always displayable, including on degraded paths.
type AgentResult struct {
	Response          string          `json:"response"`
	AgentType         AgentType       `json:"agentType,omitempty"`
	NextAgent         AgentType       `json:"nextAgent,omitempty"`
	HandoffReason     string          `json:"handoffReason,omitempty"`
	StructuredOutput  map[string]any  `json:"structuredOutput,omitempty"`
	AdditionalContext *HandoffContext `json:"additionalContext,omitempty"`
	Degraded          bool            `json:"degraded,omitempty"`
}

// NewResult builds a terminal result authored by agent t.
func NewResult(t AgentType, response string) AgentResult {
	return AgentResult{Response: response, AgentType: t}
}

// DegradedResult builds a terminal result flagged as a failure substitute.
func DegradedResult(t AgentType, response string) AgentResult {
	return AgentResult{Response: response, AgentType: t, Degraded: true}
}

// WithHandoff returns a copy of r delegating to target.
func (r AgentResult) WithHandoff(target AgentType, reason string, hc *HandoffContext) AgentResult {
	r.NextAgent = target
	r.HandoffReason = reason
	r.AdditionalContext = hc

	return r
}

// HasHandoff reports whether the result asks the runner to delegate.
func (r AgentResult) HasHandoff() bool { return r.NextAgent != AgentTypeNone }

// Terminal reports whether the run ends with this result.
func (r AgentResult) Terminal() bool { return !r.HasHandoff() }

// Handoff converts the result's delegation fields into a HandoffRequest.
// It returns nil when the result is terminal. A missing reason is filled in
// so every recorded handoff carries one.
func (r AgentResult) Handoff() *HandoffRequest {
	if !r.HasHandoff() {
		return nil
	}

	reason := r.HandoffReason
	if reason == "" {
		reason = fmt.Sprintf("handoff requested by %s agent", r.AgentType)
	}

	req := &HandoffRequest{TargetAgent: r.NextAgent, Reason: reason}
	if r.AdditionalContext != nil {
		req.AdditionalContext = r.AdditionalContext.Clone()
	}

	return req
}

// ClearHandoff returns a terminal copy of r.
func (r AgentResult) ClearHandoff() AgentResult {
	r.NextAgent = AgentTypeNone
	r.HandoffReason = ""
	r.AdditionalContext = nil

	return r
}
